package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/analytics"
	"github.com/trustmesh/agentmarket/internal/config"
	"github.com/trustmesh/agentmarket/internal/producer"
	"github.com/trustmesh/agentmarket/internal/scoring"
	"github.com/trustmesh/agentmarket/internal/telemetry"
	"github.com/trustmesh/agentmarket/internal/types"
)

func main() {
	var (
		port             = flag.Int("port", 8080, "producer HTTP port")
		orchestratorAddr = flag.String("orchestrator", "http://localhost:8090", "orchestrator admin HTTP endpoint")
		analyticsURL     = flag.String("analytics-url", "https://mainnet.mirrornode.example/api", "mirror-node analytics base URL")
		debug            = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg := config.Load()

	logCfg := telemetry.DefaultConfig("producer")
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

	logger.Info("starting producer gateway",
		zap.Int("port", *port),
		zap.String("orchestrator", *orchestratorAddr),
		zap.String("network", cfg.Network),
	)

	provider := analytics.NewHTTPProvider(*analyticsURL, cfg.AnalyticsAPIKey)
	analyticsClient := analytics.NewClient(provider, logger)

	mesh := producer.NewMeshClient(*orchestratorAddr, logger)

	if cfg.ProducerAccount != "" {
		if err := registerWithOrchestrator(*orchestratorAddr, cfg.ProducerAccount); err != nil {
			logger.Warn("failed to register with orchestrator, continuing unregistered", zap.Error(err))
		} else {
			logger.Info("registered with orchestrator", zap.String("agent_id", cfg.ProducerAccount))
		}
	}

	products := []types.Product{
		{
			ProductID:       "trustscore.basic.v1",
			Version:         "1.0.0",
			HumanName:       "Basic Trust Score",
			Description:     "Deterministic reputation score computed from on-chain account analytics.",
			ProducerAgentID: cfg.ProducerAccount,
			EndpointPath:    "/trustscore",
			DefaultPrice:    cfg.TrustScoreDefaultPrice,
			Currency:        types.CurrencyStable,
			Network:         cfg.Network,
			RateLimit: types.RateLimit{
				Calls:         cfg.RateLimitDefaultCalls,
				PeriodSeconds: cfg.RateLimitDefaultPeriod,
			},
			SLA: types.SLA{Uptime: "99.9", ResponseTime: "2s"},
		},
	}

	scoringConfig := scoring.Config{
		TrustedTopics:     map[string]bool{},
		SuspiciousTopics:  map[string]bool{},
		MaliciousAccounts: map[string]bool{},
	}

	server := producer.New(producer.Config{
		Port:            *port,
		Products:        products,
		Mesh:            mesh,
		Analytics:       analyticsClient,
		ScoringConfig:   scoringConfig,
		StablecoinAsset: cfg.StablecoinAsset,
		TopicFilter:     nil,
		Logger:          logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("producer HTTP listening", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal("producer server error", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error during producer shutdown", zap.Error(err))
	}
	logger.Info("producer shutdown complete")
}

// registerWithOrchestrator announces the producer to the orchestrator's
// agent registry at startup. Failure is non-fatal: an unregistered producer
// still serves requests, it just never receives an A2A channel handshake.
func registerWithOrchestrator(orchestratorAddr, agentID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"agentId":      agentID,
		"role":         "producer",
		"capabilities": []string{"trust_score"},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orchestratorAddr+"/agents/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("registering with orchestrator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orchestrator registration returned status %d", resp.StatusCode)
	}
	return nil
}
