package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alienxp03/sparring/internal/config"
	"github.com/alienxp03/sparring/internal/engine"
	"github.com/alienxp03/sparring/internal/llm"
	"github.com/alienxp03/sparring/internal/prompt"
	"github.com/alienxp03/sparring/internal/quota"
	"github.com/alienxp03/sparring/internal/safety"
	"github.com/alienxp03/sparring/internal/storage"
	"github.com/alienxp03/sparring/web/handlers"
)

var version = "dev"

var (
	configPath string
	debugFlag  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sparring",
	Short: "Debate practice server for classrooms",
	Long: `sparring runs guided debate practice sessions against an AI
opponent, with per-turn argument labeling and an evaluation at the end
of each session.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.sparring/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.LoadFrom(path)
}

func setupLogger() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debugFlag {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debate API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dbPath := cfg.Storage.Path
		if dbPath == "" {
			dbPath = storage.DefaultDBPath()
		}
		slog.Info("initializing storage", "path", dbPath)
		store, err := storage.NewSQLiteStorage(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()
		if err := store.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		client, err := llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			if errors.Is(err, llm.ErrNoCredential) {
				return fmt.Errorf("no API key configured: set SPARRING_API_KEY or OPENAI_API_KEY")
			}
			return err
		}

		gate, err := safety.New(cfg.SafetyTerms(safety.DefaultTerms()), cfg.Safety.Patterns)
		if err != nil {
			return fmt.Errorf("invalid safety configuration: %w", err)
		}

		// Quota counters live in Redis when an address is configured,
		// otherwise in the primary store.
		var quotaStore quota.Store = store
		if cfg.Quota.Redis.Addr != "" {
			rs := quota.NewRedisStore(cfg.Quota.Redis.Addr, cfg.Quota.Redis.Password, cfg.Quota.Redis.DB)
			if err := rs.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Quota.Redis.Addr, err)
			}
			defer rs.Close()
			quotaStore = rs
			slog.Info("quota counters in redis", "addr", cfg.Quota.Redis.Addr)
		}
		guard := quota.NewGuard(quotaStore, cfg.Quota.DailyLimit)

		topics := cfg.TopicRegistry()
		personas := cfg.PersonaRegistry()
		eng := engine.New(store, client, gate, prompt.New(nil, personas), guard, topics, engine.Config{
			MaxTurns:        cfg.Debate.MaxTurns,
			MaxMessageChars: cfg.Debate.MaxMessageChars,
			HistoryWindow:   cfg.Debate.HistoryWindow,
		})

		h := handlers.New(eng, gate, topics, personas)
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: h.Routes(),
		}

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			slog.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), llm.DefaultTimeout)
			defer cancel()
			server.Shutdown(ctx)
		}()

		slog.Info("starting sparring server", "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List available debate topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("\nAvailable Topics:")
		fmt.Println(strings.Repeat("─", 60))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
		for _, t := range cfg.TopicRegistry().List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Title, t.Description)
		}
		return w.Flush()
	},
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available opponent personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("\nAvailable Personas:")
		fmt.Println(strings.Repeat("─", 60))

		for _, p := range cfg.PersonaRegistry().List() {
			fmt.Printf("\n%s (%s)\n", p.Name, p.ID)
			if p.Style != "" {
				fmt.Printf("  %s\n", p.Style)
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sparring", version)
	},
}
