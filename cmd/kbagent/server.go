package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/spf13/cobra"

	"github.com/kalambet/kbagent/internal/agent"
	"github.com/kalambet/kbagent/internal/api"
	"github.com/kalambet/kbagent/internal/awsprov"
	"github.com/kalambet/kbagent/internal/bridge"
	"github.com/kalambet/kbagent/internal/config"
	"github.com/kalambet/kbagent/internal/engine"
	"github.com/kalambet/kbagent/internal/metrics"
	"github.com/kalambet/kbagent/internal/provision"
	"github.com/kalambet/kbagent/internal/retrieval"
	"github.com/kalambet/kbagent/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP facade (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the MCP tool bridge over stdio",
	Long: `Run the MCP tool bridge over stdio. Every tool call is forwarded to the
HTTP facade at bridge.backend_url. Logs go to stderr; stdout carries the
JSON-RPC stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBridge()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kbagent system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	printVersion()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(ctx, engine.Config{
		Provider:    engine.Provider(strings.ToLower(cfg.LLM.Provider)),
		Region:      cfg.AWS.Region,
		ModelID:     cfg.AWS.TextModelID,
		GeminiKey:   cfg.LLM.GeminiAPIKey,
		GeminiModel: cfg.LLM.GeminiModel,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initializing generation backend: %w", err)
	}
	logger.Info("generation backend ready", "backend", eng.Name())

	awsCfg, err := awsprov.LoadConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}
	kbID := resolveKnowledgeBaseID(cfg, logger)
	retriever := retrieval.NewKnowledgeBase(bedrockagentruntime.NewFromConfig(awsCfg), kbID, cfg.LLM.Timeout)

	var store agent.Store
	if cfg.Storage.Persist {
		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing storage", "error", err)
			}
		}()
		store = db
		migrations, err := db.AppliedMigrations()
		if err != nil {
			logger.Warn("reading schema version", "error", err)
		}
		logger.Info("conversations persisted", "dir", cfg.Storage.DataDir, "migrations", migrations)
	}

	m := metrics.New()
	svc := agent.New(eng, retriever, store,
		agent.WithLogger(logger),
		agent.WithObserver(m),
		agent.WithSampling(cfg.LLM.Temperature, cfg.LLM.TopP),
	)

	// The in-process bridge calls back into this facade for diagnostics.
	self := bridge.NewClient(selfURL(cfg), cfg.Bridge.Timeout).WithToken(cfg.Server.APIToken)
	mcpSrv := bridge.NewServer(bridge.Deps{Backend: self, Logger: logger})

	handler := api.NewHandler(api.Deps{
		Agent:       svc,
		Prober:      bridge.NewProber(mcpSrv),
		Metrics:     m,
		Token:       cfg.Server.APIToken,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})
	if cfg.Server.APIToken == "" {
		logger.Warn("no API token configured, agent routes are open", "env", "KBAGENT_API_TOKEN")
	}

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kbagent listening", "addr", addr, "knowledge_base", kbID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// resolveKnowledgeBaseID prefers aws.knowledge_base_id and falls back to the
// provisioning artifact. An empty id disables retrieval.
func resolveKnowledgeBaseID(cfg config.Config, logger *slog.Logger) string {
	if cfg.AWS.KnowledgeBaseID != "" {
		return cfg.AWS.KnowledgeBaseID
	}
	res, err := provision.ReadResult(cfg.AWS.KnowledgeBaseConfig)
	if err != nil {
		logger.Warn("no knowledge base configured, answering without retrieval", "error", err)
		return ""
	}
	return res.KnowledgeBaseID
}

// selfURL is the facade's own base URL as seen from this process.
func selfURL(cfg config.Config) string {
	host := cfg.Server.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func runBridge() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := bridge.NewClient(cfg.Bridge.BackendURL, cfg.Bridge.Timeout).WithToken(cfg.Server.APIToken)
	logger.Info("starting MCP bridge", "backend", backend.BaseURL(), "version", version)

	err = bridge.ServeStdio(ctx, bridge.NewServer(bridge.Deps{Backend: backend, Logger: logger}), logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := bridge.NewClient(cfg.Bridge.BackendURL, 5*time.Second).WithToken(cfg.Server.APIToken)
	health, err := client.Health(ctx)
	switch {
	case err != nil:
		printStatus("Server", "stopped (%s)", cfg.Bridge.BackendURL)
	case health.Status == agent.StatusHealthy:
		printStatus("Server", "running at %s", cfg.Bridge.BackendURL)
		printStatus("Backend", "%s", health.Backend)
	default:
		printStatus("Server", "running at %s", cfg.Bridge.BackendURL)
		printStatus("Backend", "%s unhealthy: %s", health.Backend, health.Error)
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	printStatus("Region", "%s", cfg.AWS.Region)
	printStatus("Text model", "%s", cfg.AWS.TextModelID)
	switch {
	case cfg.AWS.KnowledgeBaseID != "":
		printStatus("Knowledge base", "%s", cfg.AWS.KnowledgeBaseID)
	default:
		if res, err := provision.ReadResult(cfg.AWS.KnowledgeBaseConfig); err == nil {
			printStatus("Knowledge base", "%s (from %s)", res.KnowledgeBaseID, cfg.AWS.KnowledgeBaseConfig)
		} else {
			printStatus("Knowledge base", "not configured")
		}
	}
	if cfg.Storage.Persist {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	} else {
		printStatus("Conversations", "in memory")
	}
	if _, err := os.Stat(config.FilePath()); err == nil {
		printStatus("Config", "%s", config.FilePath())
	}
	return nil
}
