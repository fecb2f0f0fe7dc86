package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/audit"
	"github.com/trustmesh/agentmarket/internal/config"
	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/orchestrator"
	"github.com/trustmesh/agentmarket/internal/telemetry"
)

func main() {
	var (
		port  = flag.Int("port", 8090, "admin HTTP port")
		debug = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg := config.Load()

	logCfg := telemetry.DefaultConfig("orchestrator")
	if *debug || os.Getenv("LOG_LEVEL") == "debug" {
		logCfg.Level = "debug"
		logCfg.Format = "console"
		logCfg.Environment = "development"
	}
	logger, err := telemetry.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting orchestrator service",
		zap.Int("port", *port),
		zap.String("network", cfg.Network),
		zap.String("audit_topic", cfg.MeshLogTopic),
	)

	var publisher audit.Publisher
	if cfg.RedisAddr != "" {
		publisher = audit.NewRedisPublisher(cfg.RedisAddr, "", 0)
		logger.Info("audit events publish to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		publisher = audit.NewMemoryPublisher()
		logger.Info("audit events publish in-memory (no REDIS_ADDR configured)")
	}

	var mirror ledger.MirrorClient
	mirrorEndpoint := os.Getenv("LEDGER_MIRROR_ENDPOINT")
	if mirrorEndpoint != "" {
		wsClient, err := ledger.NewWSClient(mirrorEndpoint)
		if err != nil {
			logger.Fatal("failed to connect to ledger mirror node", zap.Error(err))
		}
		defer wsClient.Close()
		mirror = wsClient
		logger.Info("connected to ledger mirror node", zap.String("endpoint", mirrorEndpoint))
	} else {
		logger.Warn("LEDGER_MIRROR_ENDPOINT not set, payment receipts will never verify")
		mirror = noopMirror{}
	}

	orch := orchestrator.New(orchestrator.Config{
		ID:         "orchestrator-1",
		Dialer:     nil,
		Publisher:  publisher,
		AuditTopic: cfg.MeshLogTopic,
		Mirror:     mirror,
		Logger:     logger,
	})

	server := orchestrator.NewServer(orch, *port, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("orchestrator admin HTTP listening", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal("orchestrator server error", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error during orchestrator shutdown", zap.Error(err))
	}
	logger.Info("orchestrator shutdown complete")
}

// noopMirror stands in when no ledger mirror endpoint is configured; every
// receipt fails closed rather than panicking the process.
type noopMirror struct{}

func (noopMirror) GetTransaction(ctx context.Context, transactionID string) (ledger.MirrorTransaction, error) {
	return ledger.MirrorTransaction{}, ledger.ErrTransactionNotFound
}
