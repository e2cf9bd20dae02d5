package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/audit"
	"github.com/clinical-assistant-server/internal/config"
	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
	"github.com/clinical-assistant-server/internal/mcp"
	"github.com/clinical-assistant-server/internal/store"
	"github.com/clinical-assistant-server/internal/tools"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	logger.Info("Starting clinical assistant MCP server")

	searchClient, err := store.NewSearchClient(cfg.Elastic, nil, logger)
	if err != nil {
		log.Fatalf("Failed to create patient record client: %v", err)
	}

	checker, err := interactions.NewChecker()
	if err != nil {
		log.Fatalf("Failed to load interaction rules: %v", err)
	}

	patients := tools.NewPatientDataHandler(searchClient, logger)

	registry := tools.NewRegistry()
	registry.Register(patients)
	registry.Register(tools.NewSummaryHandler(patients, checker, logger))
	registry.Register(tools.NewInteractionHandler(checker, logger))
	registry.Register(tools.NewMedicationInfoHandler(patients, logger))

	auditStore, err := newAuditStore(cfg.Audit)
	if err != nil {
		log.Fatalf("Failed to open audit store: %v", err)
	}
	var recorder tools.Recorder
	if auditStore != nil {
		defer auditStore.Close()
		recorder = audit.NewRecorder(auditStore, logger)
	}

	cache := tools.NewResultCache(cfg.Cache.MaxEntries, cfg.Cache.TTL, nil, logger)
	executor := tools.NewExecutor(registry, cache, cfg.Tools, recorder, logger)

	mcpServer := mcp.NewServer(executor, registry, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := mcpServer.Run(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	logger.Info("MCP server stopped")
}

// Logs go to stderr by default, keeping stdout clear for the protocol.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func newAuditStore(cfg domain.AuditConfig) (audit.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return audit.NewPostgresStoreFromURL(cfg.PostgresURL)
	case "disabled":
		return nil, nil
	default:
		return audit.NewSQLiteStore(cfg.SQLitePath)
	}
}
