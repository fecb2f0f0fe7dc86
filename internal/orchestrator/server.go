package orchestrator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/types"
)

// Server exposes the orchestrator as the admin HTTP service a producer and
// consumer talk to over the network, so no agent ever holds an in-process
// reference to another (spec §9).
type Server struct {
	orch   *Orchestrator
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// NewServer wires an HTTP façade around orch listening on port.
func NewServer(orch *Orchestrator, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{orch: orch, router: router, logger: logger}

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/audit/dead-letters", s.handleDeadLetters)
	router.POST("/agents/register", s.handleRegisterAgent)
	router.POST("/tasks", s.handleIssueTask)
	router.POST("/tasks/:taskId/complete", s.handleCompleteTask)
	router.POST("/tasks/:taskId/fail", s.handleFailTask)
	router.POST("/payments/verify", s.handleVerifyReceipt)
	router.POST("/events/negotiation-started", s.handleLogNegotiationStarted)
	router.POST("/events/rate-limit-violation", s.handleLogRateLimitViolation)

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

// Router exposes the underlying gin engine, primarily for tests.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDeadLetters(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.DeadLetters())
}

type registerAgentRequest struct {
	AgentID      string          `json:"agentId"`
	Role         types.AgentRole `json:"role"`
	Capabilities []string        `json:"capabilities"`
}

func (s *Server) handleRegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	reg := s.orch.RegisterAgent(c.Request.Context(), req.AgentID, req.Role, req.Capabilities)
	c.JSON(http.StatusOK, reg)
}

type issueTaskRequest struct {
	ConsumerAgentID string          `json:"consumerAgentId"`
	AccountID       types.AccountId `json:"accountId"`
	TaskType        string          `json:"taskType"`
}

func (s *Server) handleIssueTask(c *gin.Context) {
	var req issueTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	task := s.orch.IssueTask(c.Request.Context(), req.ConsumerAgentID, req.AccountID, req.TaskType)
	c.JSON(http.StatusOK, task)
}

type completeTaskRequest struct {
	Result          types.TrustScore `json:"result"`
	BuyerAgentID    string           `json:"buyerAgentId"`
	ProducerAgentID string           `json:"producerAgentId"`
	AccountID       types.AccountId  `json:"accountId"`
	Score           int              `json:"score"`
	TransactionID   string           `json:"transactionId"`
	Amount          string           `json:"amount"`
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	delivery := types.ScoreDelivery{
		BuyerAgentID:    req.BuyerAgentID,
		ProducerAgentID: req.ProducerAgentID,
		AccountID:       req.AccountID,
		Score:           req.Score,
		TransactionID:   req.TransactionID,
		Amount:          req.Amount,
	}
	if err := s.orch.CompleteTask(c.Request.Context(), c.Param("taskId"), &req.Result, delivery); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorBody(types.CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) handleFailTask(c *gin.Context) {
	var req struct {
		Error string `json:"error"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	if err := s.orch.FailTask(c.Request.Context(), c.Param("taskId"), req.Error); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorBody(types.CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}

type verifyReceiptRequest struct {
	TransactionID     string `json:"transactionId"`
	ExpectedAmount    string `json:"expectedAmount"`
	ExpectedRecipient string `json:"expectedRecipient"`
}

func (s *Server) handleVerifyReceipt(c *gin.Context) {
	var req verifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	ok := s.orch.VerifyPaymentReceipt(c.Request.Context(), req.TransactionID, req.ExpectedAmount, req.ExpectedRecipient)
	c.JSON(http.StatusOK, gin.H{"verified": ok})
}

type negotiationStartedRequest struct {
	ProductID    string `json:"productId"`
	BuyerAgentID string `json:"buyerAgentId"`
}

func (s *Server) handleLogNegotiationStarted(c *gin.Context) {
	var req negotiationStartedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	s.orch.LogNegotiationStarted(c.Request.Context(), req.ProductID, req.BuyerAgentID)
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}

type rateLimitViolationRequest struct {
	AccountID types.AccountId `json:"accountId"`
	ProductID string          `json:"productId"`
}

func (s *Server) handleLogRateLimitViolation(c *gin.Context) {
	var req rateLimitViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}
	s.orch.LogRateLimitViolation(c.Request.Context(), req.AccountID, req.ProductID)
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}
