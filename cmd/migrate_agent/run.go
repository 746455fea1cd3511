package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/config"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/db"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/llm"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/observability"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/orchestrator"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/repo"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/translate"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/validation"
)

var (
	runConfigPath     string
	runRepo           string
	runBranch         string
	runToken          string
	runTargetStack    string
	runJavaPackage    string
	runWorkers        int
	runAttemptCap     int
	runStageTimeout   int
	runReviewRequired bool
	runAPIKey         string
	runJUnitJar       string
	runStaticOnly     bool
	runVerbose        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate a COBOL repository end to end",
	Long:  "Fetches the repository, scans it for COBOL compilation units, then translates, tests and validates every unit. Blocks until the job reaches a terminal state and prints a per-unit summary.",
	RunE:  runMigration,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to JSON config file")
	runCmd.Flags().StringVar(&runRepo, "repo", "", "Repository URL or local path to migrate")
	runCmd.Flags().StringVar(&runBranch, "branch", "main", "Branch to check out")
	runCmd.Flags().StringVar(&runToken, "token", "", "Access token for private repositories")
	runCmd.Flags().StringVar(&runTargetStack, "target-stack", "java17", "Target platform (java17 or java21)")
	runCmd.Flags().StringVar(&runJavaPackage, "java-package", "", "Package for generated Java sources")
	runCmd.Flags().IntVar(&runWorkers, "workers", orchestrator.DefaultWorkers, "Concurrent units per job")
	runCmd.Flags().IntVar(&runAttemptCap, "attempt-cap", orchestrator.DefaultAttemptCap, "Max attempts per retryable stage")
	runCmd.Flags().IntVar(&runStageTimeout, "stage-timeout", 0, "Per-stage timeout in seconds (0 disables)")
	runCmd.Flags().BoolVar(&runReviewRequired, "review", false, "Pause passing units for human review")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API key for the translation oracle (or GEMINI_API_KEY)")
	runCmd.Flags().StringVar(&runJUnitJar, "junit-jar", "", "JUnit console launcher jar for test execution")
	runCmd.Flags().BoolVar(&runStaticOnly, "static-only", false, "Validate structurally without a JDK")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Print detailed progress information")

	rootCmd.AddCommand(runCmd)
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Repo == "" {
		return fmt.Errorf("repository is required: use --repo or set 'repo' in the config file")
	}

	ctx := cmd.Context()
	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	oracle, err := buildOracle(ctx, cfg)
	if err != nil {
		return err
	}

	orch := orchestrator.New(st, buildFetcher(cfg), oracle, buildRunner(cfg), orchestrator.Config{
		Workers:        cfg.Workers,
		AttemptCap:     cfg.AttemptCap,
		StageTimeout:   time.Duration(cfg.StageTimeoutSec) * time.Second,
		ReviewRequired: cfg.ReviewRequired,
		JavaPackage:    cfg.JavaPackage,
	})
	if cfg.Verbose {
		orch.OnProgress = func(ev orchestrator.Event) {
			if ev.Type == orchestrator.EventUnit {
				fmt.Printf("  [%s] unit %s -> %s\n", ev.At.Format("15:04:05"), ev.UnitID, ev.Status)
			} else {
				fmt.Printf("  [%s] job %s %d%%\n", ev.At.Format("15:04:05"), ev.Status, ev.Progress)
			}
		}
	}

	job, err := orch.SubmitJob(ctx, orchestrator.SubmitRequest{
		RepoRef:     cfg.Repo,
		Branch:      cfg.Branch,
		TargetStack: cfg.TargetStack,
	})
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}
	fmt.Printf("Submitted job %s for %s\n", job.ID, cfg.Repo)

	orch.Wait()

	job, err = orch.GetJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load finished job: %w", err)
	}
	units, err := orch.ListUnits(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load units: %w", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintJob(job)
	printer.PrintUnits(units)

	if job.Status == store.JobStatusFailed {
		return fmt.Errorf("migration failed: %s", job.LastError)
	}
	return nil
}

// resolveConfig loads the optional config file, applies CLI flag overrides for
// flags the user actually set, then fills remaining gaps from defaults and the
// environment.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var fileCfg config.Config
	if runConfigPath != "" {
		loaded, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		fileCfg = *loaded
	}

	if cmd.Flags().Changed("repo") || fileCfg.Repo == "" {
		fileCfg.Repo = runRepo
	}
	if cmd.Flags().Changed("branch") {
		fileCfg.Branch = runBranch
	}
	if cmd.Flags().Changed("token") {
		fileCfg.Token = runToken
	}
	if cmd.Flags().Changed("target-stack") {
		fileCfg.TargetStack = runTargetStack
	}
	if cmd.Flags().Changed("java-package") {
		fileCfg.JavaPackage = runJavaPackage
	}
	if cmd.Flags().Changed("workers") {
		fileCfg.Workers = runWorkers
	}
	if cmd.Flags().Changed("attempt-cap") {
		fileCfg.AttemptCap = runAttemptCap
	}
	if cmd.Flags().Changed("stage-timeout") {
		fileCfg.StageTimeoutSec = runStageTimeout
	}
	if cmd.Flags().Changed("review") {
		fileCfg.ReviewRequired = runReviewRequired
	}
	if cmd.Flags().Changed("api-key") {
		fileCfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("junit-jar") {
		fileCfg.JUnitJar = runJUnitJar
	}
	if cmd.Flags().Changed("static-only") {
		fileCfg.StaticOnly = runStaticOnly
	}
	if cmd.Flags().Changed("verbose") {
		fileCfg.Verbose = runVerbose
	}

	cfg := fileCfg.MergeWithDefaults(config.Config{
		Branch:      "main",
		TargetStack: "java17",
		Workers:     orchestrator.DefaultWorkers,
		AttemptCap:  orchestrator.DefaultAttemptCap,
	})

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GIT_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildStore returns Postgres-backed persistence when a database URL is
// configured, otherwise in-memory state for one-shot runs.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemory(), func() {}, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, database.Close, nil
}

func buildFetcher(cfg config.Config) repo.Fetcher {
	if isRemoteRef(cfg.Repo) {
		return repo.GitFetcher{
			WorkDir: filepath.Join(os.TempDir(), "migrate_agent"),
			Token:   cfg.Token,
		}
	}
	return repo.LocalFetcher{}
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "git@") ||
		strings.HasPrefix(ref, "ssh://")
}

// buildOracle constructs the LLM-backed translation oracle when an API key is
// available. Without one the translator runs in structural mode.
func buildOracle(ctx context.Context, cfg config.Config) (translate.Oracle, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oracle: %w", err)
	}
	return translate.NewGeminiOracle(client), nil
}

func buildRunner(cfg config.Config) validation.ToolRunner {
	if cfg.StaticOnly {
		return validation.StaticRunner{}
	}
	return validation.JavacRunner{JUnitJar: cfg.JUnitJar}
}
