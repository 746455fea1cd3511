package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/config"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/orchestrator"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/repo"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/server"
)

var (
	serveConfigPath  string
	serveAddr        string
	serveWorkers     int
	serveAttemptCap  int
	serveReview      bool
	serveJUnitJar    string
	serveStaticOnly  bool
	serveAPIKey      string
	serveDatabaseURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the migration REST API server",
	Long:  "Starts an HTTP server exposing job submission, progress streaming over SSE, unit review and artifact retrieval. Jobs persist to PostgreSQL when DATABASE_URL is set, otherwise to memory.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", orchestrator.DefaultWorkers, "Concurrent units per job")
	serveCmd.Flags().IntVar(&serveAttemptCap, "attempt-cap", orchestrator.DefaultAttemptCap, "Max attempts per retryable stage")
	serveCmd.Flags().BoolVar(&serveReview, "review", false, "Pause passing units for human review")
	serveCmd.Flags().StringVar(&serveJUnitJar, "junit-jar", "", "JUnit console launcher jar for test execution")
	serveCmd.Flags().BoolVar(&serveStaticOnly, "static-only", false, "Validate structurally without a JDK")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Gemini API key for the translation oracle (or GEMINI_API_KEY)")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "db-url", "", "PostgreSQL connection URL (or DATABASE_URL)")

	rootCmd.AddCommand(serveCmd)
}

// autoFetcher dispatches per reference so one server instance can accept jobs
// for both remote URLs and local paths.
type autoFetcher struct {
	workDir string
	token   string
}

func (f autoFetcher) Fetch(ctx context.Context, repoRef, branch string) (string, error) {
	if isRemoteRef(repoRef) {
		return repo.GitFetcher{WorkDir: f.workDir, Token: f.token}.Fetch(ctx, repoRef, branch)
	}
	return repo.LocalFetcher{}.Fetch(ctx, repoRef, branch)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveServeConfig(cmd)
	if err != nil {
		return err
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

	fetcher := autoFetcher{
		workDir: filepath.Join(os.TempDir(), "migrate_agent"),
		token:   cfg.Token,
	}
	orch := orchestrator.New(st, fetcher, oracle, buildRunner(cfg), orchestrator.Config{
		Workers:        cfg.Workers,
		AttemptCap:     cfg.AttemptCap,
		StageTimeout:   time.Duration(cfg.StageTimeoutSec) * time.Second,
		ReviewRequired: cfg.ReviewRequired,
		JavaPackage:    cfg.JavaPackage,
	})

	srv := server.New(server.Config{Addr: cfg.ListenAddr}, orch)
	return srv.Start()
}

func resolveServeConfig(cmd *cobra.Command) (config.Config, error) {
	var fileCfg config.Config
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		fileCfg = *loaded
	}

	if cmd.Flags().Changed("addr") {
		fileCfg.ListenAddr = serveAddr
	}
	if cmd.Flags().Changed("workers") {
		fileCfg.Workers = serveWorkers
	}
	if cmd.Flags().Changed("attempt-cap") {
		fileCfg.AttemptCap = serveAttemptCap
	}
	if cmd.Flags().Changed("review") {
		fileCfg.ReviewRequired = serveReview
	}
	if cmd.Flags().Changed("junit-jar") {
		fileCfg.JUnitJar = serveJUnitJar
	}
	if cmd.Flags().Changed("static-only") {
		fileCfg.StaticOnly = serveStaticOnly
	}
	if cmd.Flags().Changed("api-key") {
		fileCfg.APIKey = serveAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		fileCfg.DatabaseURL = serveDatabaseURL
	}

	cfg := fileCfg.MergeWithDefaults(config.Config{
		Workers:    orchestrator.DefaultWorkers,
		AttemptCap: orchestrator.DefaultAttemptCap,
		ListenAddr: ":8080",
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
