package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/triggerwatch/internal/classify"
	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/config"
	"github.com/TobiSchelling/triggerwatch/internal/database"
	"github.com/TobiSchelling/triggerwatch/internal/digest"
	"github.com/TobiSchelling/triggerwatch/internal/ingest"
	"github.com/TobiSchelling/triggerwatch/internal/llm"
	"github.com/TobiSchelling/triggerwatch/internal/server"
	"github.com/TobiSchelling/triggerwatch/internal/telemetry"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string
	cfg        *config.Config
	logger     *slog.Logger
	shutdown   func(context.Context) error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "triggerwatch",
	Short:   "B2B trigger-event ingestion",
	Long:    "triggerwatch pulls company news from configured providers, deduplicates it per tenant, and stores it as sales trigger events.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		setLogger(level)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := loadEnv(envFile); err != nil {
			return err
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !verbose {
			setLogger(cfg.Logging.SlogLevel())
		}

		if cfg.Tracing.Enabled {
			shutdown, err = telemetry.InitTracer("triggerwatch", version, os.Stderr, logger)
			if err != nil {
				return fmt.Errorf("initializing tracing: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown != nil {
			return shutdown(context.Background())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default .env if present)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(serveCmd)
}

func setLogger(level slog.Level) {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnv reads KEY=value pairs into the process environment without
// overriding variables that are already set. A missing default .env is fine.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("triggerwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/triggerwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to select providers and set API key variables (NEWSAPI_KEY, FINNHUB_API_KEY).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Events:")
		fmt.Printf("  Total stored: %d\n", stats.TotalEvents)
		fmt.Printf("  Tenants: %d\n", stats.Tenants)
		fmt.Printf("  Companies: %d\n", stats.Scopes)
		fmt.Println("\nLeads:")
		fmt.Printf("  Total: %d\n", stats.TotalLeads)
		fmt.Printf("  Active: %d\n", stats.ActiveLeads)
		fmt.Println("\nProviders:")
		printStatuses(collect.NewCollector(cfg.Providers, logger).Statuses())
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv := server.New(a.ingester, a.db, a.collector, digest.NewComposer(a.provider, logger), server.Options{
			Port:   port,
			Logger: logger,
		})
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// app holds the components shared by the ingest-facing commands.
type app struct {
	db        *database.DB
	collector *collect.Collector
	provider  llm.Provider
	ingester  *ingest.Ingester
}

func newApp(ctx context.Context) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	if cfg.Classify.LLMFallback {
		provider = llm.CreateProvider(ctx, cfg.Classify, logger)
	}

	collector := collect.NewCollector(cfg.Providers, logger)
	classifier := classify.New(provider, cfg.Ingest.DefaultEventType, cfg.Classify.MaxTokens, logger)
	ingester := ingest.New(collector, db, classifier, ingest.OptionsFromConfig(cfg.Ingest), logger)

	return &app{db: db, collector: collector, provider: provider, ingester: ingester}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "triggerwatch.db")
	return database.Open(dbPath)
}

func printStatuses(statuses []collect.Status) {
	for _, s := range statuses {
		if s.Enabled {
			fmt.Printf("  * %s\n", s.Name)
		} else {
			fmt.Printf("    %s (disabled: %s)\n", s.Name, s.SkipReason)
		}
	}
}
