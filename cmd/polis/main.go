// POLIS decision engine server: HTTP API, queue workers, department agent
// pipelines and the coordination workflow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"

	"github.com/polis-ai/polis/pkg/agent"
	"github.com/polis-ai/polis/pkg/api"
	"github.com/polis-ai/polis/pkg/bus"
	"github.com/polis-ai/polis/pkg/cleanup"
	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/coordination"
	"github.com/polis-ai/polis/pkg/database"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/dispatch"
	"github.com/polis-ai/polis/pkg/human"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/queue"
	"github.com/polis-ai/polis/pkg/tools"
	"github.com/polis-ai/polis/pkg/translog"
	"github.com/polis-ai/polis/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// approvalSource selects the desk's decision source from the configured mode.
// The pending source is returned separately when escalations resolve over the
// REST API, so the server can expose them.
func approvalSource(cfg *config.HumanConfig) (human.ApprovalSource, *human.PendingSource) {
	switch cfg.Mode {
	case config.ApprovalModeAuto:
		return &human.AutoSource{Approver: cfg.Approver}, nil
	case config.ApprovalModeAPI:
		pending := human.NewPendingSource()
		return pending, pending
	default:
		return human.NewInteractiveSource(), nil
	}
}

// buildNotifier returns the Slack sink stacked on the log sink when Slack
// notifications are enabled, nil otherwise (the desk falls back to the log
// sink on its own).
func buildNotifier(cfg *config.NotificationsConfig) human.Notifier {
	sc := cfg.Slack
	if sc == nil || !sc.Enabled {
		return nil
	}
	token := os.Getenv(sc.TokenEnv)
	if token == "" {
		slog.Warn("Slack notifications enabled but token is not set, using log sink only",
			"token_env", sc.TokenEnv)
		return nil
	}
	return human.NewMultiSink(human.NewLogSink(), human.NewSlackSink(token, sc.Channel))
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	// POLIS_STORAGE=memory runs on the builtin city fixtures without
	// PostgreSQL; nothing is persisted across restarts.
	storage := getEnv("POLIS_STORAGE", "postgres")

	slog.Info("Starting POLIS",
		"version", version.Full(),
		"config_dir", *configDir,
		"storage", storage)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Storage: PostgreSQL with embedded migrations, or in-memory fixtures
	var (
		dbClient *database.Client
		source   datasource.Source
		logStore translog.Store
	)
	switch storage {
	case "postgres":
		dbClient, err = database.NewClient(ctx, cfg.DB)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbClient.Close()
		source = datasource.NewPGSource(dbClient.Pool())
		logStore = translog.NewPGStore(dbClient.Pool())
	case "memory":
		source = datasource.NewMemoryStore()
		logStore = translog.NewMemoryStore()
	default:
		slog.Error("Unknown POLIS_STORAGE value, want postgres or memory", "storage", storage)
		os.Exit(1)
	}

	// 3. Transparency log; the similarity index is warmed from the store so
	// decision search survives restarts
	translogOpts := translog.Options{SearchLimit: cfg.Translog.SearchLimit}
	if cfg.Translog.EmbeddingModel != "" {
		translogOpts.Embedding = chromem.NewEmbeddingFuncOpenAICompat(
			cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.Translog.EmbeddingModel, nil)
	}
	tlog, err := translog.New(logStore, translogOpts)
	if err != nil {
		slog.Error("Failed to initialize transparency log", "error", err)
		os.Exit(1)
	}
	if n, err := tlog.Reindex(ctx); err != nil {
		slog.Warn("Transparency log reindex failed, similarity search starts cold", "error", err)
	} else if n > 0 {
		slog.Info("Transparency log reindexed", "entries", n)
	}

	// 4. LLM client (lazy: the first completion opens the connection)
	llmClient := llm.NewClient(cfg.LLM)
	slog.Info("LLM client initialized",
		"base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)

	// 5. Human approval desk and notification sinks
	decisionSource, pending := approvalSource(cfg.Human)
	desk := human.NewDesk(decisionSource, buildNotifier(cfg.Notifications),
		cfg.Coordination.HumanResponseTimeout)
	slog.Info("Approval desk initialized", "mode", string(cfg.Human.Mode))

	// 6. Coordinator: plan board plus the conflict workflow
	coordinator, err := coordination.New(coordination.Deps{
		Config:   cfg.Coordination,
		LLM:      llmClient,
		Desk:     desk,
		Recorder: tlog,
	})
	if err != nil {
		slog.Error("Failed to initialize coordinator", "error", err)
		os.Exit(1)
	}

	// 7. Dispatcher over the shared agent dependencies
	dispatcher := dispatch.New(dispatch.AgentFactory(agent.Deps{
		Config:   cfg,
		LLM:      llmClient,
		Source:   source,
		Tools:    tools.NewRegistry(),
		Checker:  coordinator,
		Recorder: tlog,
	}))
	defer dispatcher.CloseAll()

	// 8. Message bus
	msgBus := bus.New()

	// 9. Retention sweeper over the transparency log and the bus
	sweeper := cleanup.NewService(cfg.Retention, tlog, msgBus)
	sweeper.Start(ctx)

	// 10. Start worker pool (before HTTP server)
	pool := queue.NewPool(*cfg.Queue, dispatcher)
	pool.Start(ctx)

	// 11. Create HTTP server
	srv, err := api.NewServer(api.Deps{
		Config:      cfg,
		Dispatcher:  dispatcher,
		Queue:       pool,
		Coordinator: coordinator,
		TransLog:    tlog,
		Bus:         msgBus,
		Pending:     pending,
		DB:          dbClient,
	})
	if err != nil {
		slog.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// 12. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("POLIS started successfully",
		"agents", len(config.AllAgentTypes()),
		"workers", cfg.Queue.WorkerCount)

	// 13. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 14. Graceful shutdown: drain the workers first, then the HTTP server.
	// Submissions arriving during the drain are refused with 503.
	sweeper.Stop()
	pool.Stop()

	httpCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
