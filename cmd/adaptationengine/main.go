// adaptationengine is the control-loop process: it loads configuration,
// wires every component (pkg/engine.Build), hydrates the Active-Resource
// Registry from infrastructure state, and runs the broker consumer loop and
// introspection HTTP server until SIGTERM/SIGINT (spec.md §12). The one-shot
// --healthcheck/--clear-db-log/--clear-db-config flags are handled before
// the full pipeline (OpenStack auth, plugin discovery) is ever stood up.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/IntelLabsEurope/adaptationengine/pkg/broker"
	"github.com/IntelLabsEurope/adaptationengine/pkg/config"
	"github.com/IntelLabsEurope/adaptationengine/pkg/engine"
	"github.com/IntelLabsEurope/adaptationengine/pkg/healthcheck"
	"github.com/IntelLabsEurope/adaptationengine/pkg/store"
	"github.com/joho/godotenv"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfgFile := flag.String("cfg", getEnv("ADAPTATIONENGINE_CFG", "./deploy/config/adaptationengine.yaml"),
		"Path to adaptationengine.yaml")
	healthcheckFlag := flag.Bool("healthcheck", false, "Run a one-shot broker/database reachability probe and exit")
	clearDBLog := flag.Bool("clear-db-log", false, "Truncate the journal store and exit")
	clearDBConfig := flag.Bool("clear-db-config", false, "Truncate the registry store and exit")
	flag.Parse()

	envPath := filepath.Join(filepath.Dir(*cfgFile), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	}

	infraFile := filepath.Join(filepath.Dir(*cfgFile), "infra.yaml")
	cfg, err := config.Load(*cfgFile, infraFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *healthcheckFlag:
		runHealthcheck(ctx, cfg)
		return

	case *clearDBLog:
		runClearDBLog(ctx, cfg)
		return

	case *clearDBConfig:
		runClearDBConfig(ctx, cfg)
		return
	}

	eng, err := engine.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer eng.Close()

	slog.Info("Starting adaptationengine", "cfg", *cfgFile)
	if err := eng.Run(ctx); err != nil {
		slog.Error("Engine exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("adaptationengine stopped")
}

// runHealthcheck opens only the broker connection and the database pool —
// the two collaborators healthcheck.Run actually probes — without
// authenticating against OpenStack or discovering plugins (spec.md §12,
// grounded in original_source/healthcheck.py's HealthCheck, which needs
// only a message-queue interface).
func runHealthcheck(ctx context.Context, cfg *config.Config) {
	conn, err := broker.Dial(brokerConfig(cfg))
	if err != nil {
		log.Fatalf("failed to dial broker: %v", err)
	}
	defer conn.Close()

	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := healthcheck.Run(ctx, conn, st); err != nil {
		slog.Error("Healthcheck failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Healthcheck OK")
	os.Exit(0)
}

// runClearDBLog truncates the journal store without standing up the broker,
// OpenStack client, or plugin manager.
func runClearDBLog(ctx context.Context, cfg *config.Config) {
	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.ClearJournal(ctx); err != nil {
		log.Fatalf("failed to clear journal store: %v", err)
	}
	slog.Info("Journal store cleared")
	os.Exit(0)
}

// runClearDBConfig truncates the registry store without standing up the
// broker, OpenStack client, or plugin manager.
func runClearDBConfig(ctx context.Context, cfg *config.Config) {
	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.ClearConfig(ctx); err != nil {
		log.Fatalf("failed to clear registry store: %v", err)
	}
	slog.Info("Registry store cleared")
	os.Exit(0)
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
		URL:                    cfg.MQBroker.URL,
		InboundExchange:        cfg.MQBroker.InboundExchange,
		InboundQueue:           cfg.MQBroker.InboundQueue,
		InboundKey:             cfg.MQBroker.InboundKey,
		ReplyKeyTemplate:       cfg.MQBroker.ReplyKeyTemplate,
		ReplyExchange:          cfg.MQBroker.ReplyExchange,
		OpenStackEventExchange: cfg.MQBroker.OpenStackEventExchange,
		OpenStackEventKey:      cfg.MQBroker.OpenStackEventKey,
		AppFeedbackExchange:    cfg.MQBroker.AppFeedbackExchange,
		AppFeedbackKey:         cfg.MQBroker.AppFeedbackKey,
	}
}
