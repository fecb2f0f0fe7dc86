// Package producer implements C3: the HTTP gateway that negotiates offers,
// challenges unpaid requests, verifies settled payments, invokes the
// analytics client and scoring engine, enforces rate limits, and reports
// every lifecycle event to the orchestrator.
package producer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/scoring"
	"github.com/trustmesh/agentmarket/internal/types"
)

// Server is the producer's HTTP gateway.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger

	products    *ProductRegistry
	rateLimiter *RateLimiter
	offers      *OfferStore
	mesh        Mesh
	analytics   AnalyticsSource

	scoringConfig   scoring.Config
	stablecoinAsset string
	topicFilter     []string
}

// Config wires a Server's collaborators and product catalog.
type Config struct {
	Port            int
	Products        []types.Product
	Mesh            Mesh
	Analytics       AnalyticsSource
	ScoringConfig   scoring.Config
	StablecoinAsset string
	TopicFilter     []string
	Logger          *zap.Logger
}

// New builds a Server and registers every product's route.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:          router,
		logger:          logger,
		products:        NewProductRegistry(cfg.Products...),
		rateLimiter:     NewRateLimiter(),
		offers:          NewOfferStore(),
		mesh:            cfg.Mesh,
		analytics:       cfg.Analytics,
		scoringConfig:   cfg.ScoringConfig,
		stablecoinAsset: cfg.StablecoinAsset,
		topicFilter:     cfg.TopicFilter,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/products", s.handleListProducts)
	router.POST("/ap2/negotiate", s.handleNegotiate)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, p := range cfg.Products {
		router.GET(p.EndpointPath+"/:accountId", s.handleScoreRequest(p))
	}

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// Router exposes the underlying gin engine, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
