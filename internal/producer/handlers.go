package producer

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/scoring"
	"github.com/trustmesh/agentmarket/internal/types"
)

const defaultTopicFilter = ""

// agentIDHeader carries the calling consumer's agent id on every request
// against a product endpoint, used for rate-limit bucketing and as the
// negotiated-offer key; the distilled spec assumes this identity is known to
// the producer before the receipt header is even present (rate limiting
// happens at step 2, before receipt decoding at step 4).
const agentIDHeader = "X-Agent-ID"
const anonymousAgentID = "anonymous"

func callerAgentID(c *gin.Context) string {
	if id := c.GetHeader(agentIDHeader); id != "" {
		return id
	}
	return anonymousAgentID
}

// handleScoreRequest implements the per-product GET {endpointPath}/:accountId
// state machine (spec §4.3).
func (s *Server) handleScoreRequest(product types.Product) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := time.Now()

		accountID, err := types.ParseAccountId(c.Param("accountId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidAccountID, err.Error()))
			return
		}

		buyerAgentID := callerAgentID(c)

		limit := product.RateLimit
		if limit.Calls == 0 {
			limit = types.DefaultRateLimit
		}
		if offer, ok := s.offers.Get(buyerAgentID, product.ProductID, now); ok {
			limit = offer.RateLimit
		}

		allowed, retryAfter, consecutiveViolation := s.rateLimiter.Allow(buyerAgentID, product.ProductID, limit, now)
		if !allowed {
			if consecutiveViolation {
				s.mesh.LogRateLimitViolation(ctx, accountID, product.ProductID)
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, types.NewErrorBody(types.CodeRateLimitExceeded, "rate limit exceeded for this product"))
			return
		}

		price := product.DefaultPrice
		if offer, ok := s.offers.Get(buyerAgentID, product.ProductID, now); ok {
			price = offer.Price
		}

		requirements := types.PaymentRequirements{
			Scheme:            "exact",
			Network:           product.Network,
			Asset:             s.stablecoinAsset,
			PayTo:             product.ProducerAgentID,
			MaxAmountRequired: price,
			Resource:          c.Request.URL.Path,
			Description:       product.HumanName,
			MimeType:          "application/json",
			MaxTimeoutSeconds: 60,
		}

		rawHeader := c.GetHeader("X-PAYMENT")
		if rawHeader == "" {
			c.Header("Accepts-Payment", "x402")
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": gin.H{
					"code":    types.CodePaymentRequired,
					"message": "payment is required to access this resource",
					"payment": requirements,
				},
			})
			return
		}

		receiptHeader, err := decodePaymentHeader(rawHeader)
		if err != nil {
			c.JSON(http.StatusPaymentRequired, types.NewErrorBody(types.CodePaymentVerificationFailed, "malformed payment header"))
			return
		}

		if !receiptHeader.Receipt.Success {
			c.JSON(http.StatusPaymentRequired, types.NewErrorBody(types.CodePaymentVerificationFailed, "settlement was not successful"))
			return
		}

		if !s.mesh.VerifyPaymentReceipt(ctx, receiptHeader.Receipt.TransactionID, requirements.MaxAmountRequired, requirements.PayTo) {
			c.JSON(http.StatusPaymentRequired, types.NewErrorBody(types.CodePaymentVerificationFailed, "settled transaction does not match required amount and recipient"))
			return
		}

		task := s.mesh.IssueTask(ctx, buyerAgentID, accountID, "trust_score")

		bundle := assembleBundle(ctx, s.analytics, accountID, s.topicFilter)
		if allComponentsUnavailable(bundle) {
			err := firstUnavailableErr(ctx, s.analytics, accountID)
			if isUnavailable(err) {
				_ = s.mesh.FailTask(ctx, task.TaskID, "analytics upstream unavailable")
				c.JSON(http.StatusServiceUnavailable, types.NewErrorBody(types.CodeServiceUnavailable, "analytics provider is unavailable"))
				return
			}
		}

		score := scoring.Compute(accountID, bundle, s.scoringConfig, now)

		delivery := types.ScoreDelivery{
			BuyerAgentID:    buyerAgentID,
			ProducerAgentID: product.ProducerAgentID,
			AccountID:       accountID,
			Score:           score.Score,
			TransactionID:   receiptHeader.Receipt.TransactionID,
			Amount:          requirements.MaxAmountRequired,
		}
		if err := s.mesh.CompleteTask(ctx, task.TaskID, &score, delivery); err != nil {
			s.logger.Warn("failed to mark task completed", zap.String("task_id", task.TaskID), zap.Error(err))
		}

		s.logger.Info("score delivered",
			zap.String("buyer_agent_id", buyerAgentID),
			zap.String("producer_agent_id", product.ProducerAgentID),
			zap.String("account", string(accountID)),
			zap.Int("score", score.Score),
			zap.String("transaction_id", receiptHeader.Receipt.TransactionID),
			zap.String("amount", requirements.MaxAmountRequired),
		)

		c.JSON(http.StatusOK, score)
	}
}

// decodePaymentHeader decodes the opaque base64 JSON carried in X-PAYMENT.
func decodePaymentHeader(raw string) (types.PaymentReceiptHeader, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return types.PaymentReceiptHeader{}, err
	}
	var header types.PaymentReceiptHeader
	if err := json.Unmarshal(decoded, &header); err != nil {
		return types.PaymentReceiptHeader{}, err
	}
	return header, nil
}

// handleNegotiate implements POST /ap2/negotiate (spec §4.3).
func (s *Server) handleNegotiate(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	var req types.NegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, err.Error()))
		return
	}

	product, ok := s.products.Get(req.ProductID)
	if !ok {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeUnknownProduct, "unknown productId"))
		return
	}

	if !types.ValidAmount(req.MaxPrice) {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodeInvalidRequest, "maxPrice is not a valid integer amount"))
		return
	}

	if types.AmountLess(req.MaxPrice, product.DefaultPrice) {
		c.JSON(http.StatusBadRequest, types.NewErrorBody(types.CodePriceTooLow, "maxPrice is below the product's default price"))
		return
	}

	rl := product.RateLimit
	if req.RateLimit.Calls > 0 && req.RateLimit.Calls < rl.Calls {
		rl = req.RateLimit
	}

	offer := types.NewOffer(product.ProductID, product.DefaultPrice, product.Currency, rl, product.SLA, product.ProducerAgentID, now)
	s.offers.Put(req.BuyerAgentID, product.ProductID, offer)

	s.mesh.LogNegotiationStarted(ctx, product.ProductID, req.BuyerAgentID)

	c.JSON(http.StatusOK, offer)
}

// handleHealth implements GET /health: process-liveness only.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListProducts serves the consumer's discoverProducts() call with the
// producer's own non-deprecated catalog.
func (s *Server) handleListProducts(c *gin.Context) {
	all := s.products.List()
	out := make([]types.Product, 0, len(all))
	for _, p := range all {
		if !p.Deprecated {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, out)
}
