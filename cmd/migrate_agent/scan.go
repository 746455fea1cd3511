package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/config"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/observability"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/scanner"
)

var (
	scanRepo   string
	scanBranch string
	scanToken  string
	scanParse  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inventory a COBOL repository without migrating it",
	Long:  "Fetches the repository and lists its COBOL compilation units, copybooks and JCL members. With --parse, each unit is also parsed and its structure printed.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRepo, "repo", "", "Repository URL or local path to scan (required)")
	scanCmd.Flags().StringVar(&scanBranch, "branch", "main", "Branch to check out")
	scanCmd.Flags().StringVar(&scanToken, "token", "", "Access token for private repositories")
	scanCmd.Flags().BoolVar(&scanParse, "parse", false, "Parse each unit and print its structure")
	_ = scanCmd.MarkFlagRequired("repo")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Config{Repo: scanRepo, Branch: scanBranch, Token: scanToken}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GIT_TOKEN")
	}

	snapshot, err := buildFetcher(cfg).Fetch(cmd.Context(), cfg.Repo, cfg.Branch)
	if err != nil {
		return err
	}

	inv, err := scanner.Scan(cfg.Repo, snapshot)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintInventory(inv)

	if !scanParse {
		return nil
	}
	for _, unit := range inv.Units {
		source, err := os.ReadFile(unit.AbsolutePath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", unit.Path, err)
		}
		program, err := cobol.Parse(unit.Name, string(source))
		if err != nil {
			fmt.Printf("✗ %s: %v\n", unit.Path, err)
			continue
		}
		printer.PrintProgram(program)
	}
	return nil
}
