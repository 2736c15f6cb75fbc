package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hession/searchbridge/internal/cli"
	"github.com/hession/searchbridge/internal/config"
	"github.com/hession/searchbridge/internal/history"
	"github.com/hession/searchbridge/internal/logger"
	"github.com/hession/searchbridge/internal/metrics"
	"github.com/hession/searchbridge/internal/server"
	"github.com/hession/searchbridge/internal/websearch"
)

var (
	version = "0.1.0"
)

var errSearchFailed = errors.New("search failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "searchbridge",
		Short: "SearchBridge - Unified Web Search API",
		Long: `SearchBridge puts Google Custom Search, Bing Web Search and DuckDuckGo
behind one request and response shape.

Run without a subcommand to start the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	rootCmd.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newREPLCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		engine     string
		num        int
		language   string
		country    string
		safeSearch bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single search and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()

			store := openHistory(cfg)
			if store != nil {
				defer store.Close()
			}

			req := websearch.NewRequest(joinArgs(args))
			req.Engine = cfg.Search.DefaultEngine
			if cmd.Flags().Changed("engine") {
				req.Engine = engine
			}
			req.NumResults = num
			req.Language = language
			req.Country = country
			req.SafeSearch = safeSearch

			resp := websearch.NewSearcher(cfg.SearchSettings()).Execute(cmd.Context(), req)
			if store != nil {
				if _, err := store.Record(resp); err != nil {
					logger.Warn("Failed to record search history: %v", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := cli.PrintJSON(out, resp); err != nil {
					return err
				}
			} else {
				cli.PrintResponse(out, resp)
			}
			if resp.Error != "" {
				return errSearchFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&engine, "engine", "e", websearch.DefaultEngine, "search engine: google, bing or duckduckgo")
	flags.IntVarP(&num, "num", "n", websearch.DefaultNumResults, "number of results")
	flags.StringVar(&language, "language", websearch.DefaultLanguage, "result language")
	flags.StringVar(&country, "country", websearch.DefaultCountry, "result country")
	flags.BoolVar(&safeSearch, "safe-search", true, "enable safe search")
	flags.BoolVar(&jsonOut, "json", false, "print the raw response envelope")
	return cmd
}

func newREPLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive search prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()

			store := openHistory(cfg)
			if store != nil {
				defer store.Close()
			}

			searcher := websearch.NewSearcher(cfg.SearchSettings())
			cli.NewSession(cmd.Context(), searcher, store, cfg.Search.DefaultEngine, version, cmd.OutOrStdout()).Run()
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("limit must be a positive integer")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.History.Enabled {
				return errors.New("search history is disabled")
			}

			store, err := history.NewSQLiteStore(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			cli.PrintHistory(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of entries to show")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(out, "\nConfig file path: %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "SearchBridge v%s\n", version)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer logger.Close()

	logConfigInfo(cfg)

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	srv := server.New(server.Options{
		Searcher:      websearch.NewSearcher(cfg.SearchSettings()),
		DefaultEngine: cfg.Search.DefaultEngine,
		History:       store,
		MaxHistory:    cfg.History.MaxEntries,
		Metrics:       metrics.NewCollector(version),
		CORSOrigins:   cfg.Server.CORSOrigins,
		GinMode:       cfg.Server.GinMode,
		Logger:        logger.Z(),
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx, cfg.Addr())
}

// loadConfig loads the configuration and initializes the default logger.
// quiet keeps log lines off the terminal for interactive commands.
func loadConfig(quiet bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		LogDir:     config.LogDir(),
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.Console && !quiet,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	return cfg, nil
}

// openHistory opens the history store, or returns nil when history is
// disabled or unavailable.
func openHistory(cfg *config.Config) history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		logger.Warn("Search history unavailable: %v", err)
		return nil
	}
	return store
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// logConfigInfo logs the effective configuration with credentials redacted.
func logConfigInfo(cfg *config.Config) {
	logger.Info("SearchBridge v%s starting", version)
	logger.Info("Listen address: %s", cfg.Addr())
	logger.Info("Default engine: %s, timeout: %ds", cfg.Search.DefaultEngine, cfg.Search.TimeoutSeconds)
	logger.Info("Google configured: %v, Bing configured: %v",
		cfg.Providers.Google.APIKey != "" && cfg.Providers.Google.CX != "",
		cfg.Providers.Bing.APIKey != "")
	if cfg.History.Enabled {
		logger.Info("Search history: %s (max %d entries)", cfg.History.DBPath, cfg.History.MaxEntries)
	} else {
		logger.Info("Search history: disabled")
	}
	logger.Debug("CORS origins: %v", cfg.Server.CORSOrigins)
}
