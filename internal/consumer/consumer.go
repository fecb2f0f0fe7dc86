// Package consumer implements C4: product discovery, AP2 negotiation, and
// the 402-challenge-and-pay retry loop a consumer agent runs against a
// producer's HTTP gateway.
package consumer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/facilitator"
	"github.com/trustmesh/agentmarket/internal/types"
)

// ErrScoreRequestFailed wraps a non-2xx producer response whose body carried
// a machine-readable error envelope.
type ErrScoreRequestFailed struct {
	Code    string
	Message string
}

func (e *ErrScoreRequestFailed) Error() string {
	return fmt.Sprintf("score request failed: %s: %s", e.Code, e.Message)
}

// Consumer discovers producer products, negotiates offers, and pays for
// scored responses. It owns its negotiated-offer cache and wallet; it never
// holds a direct reference to a producer or orchestrator process, only HTTP
// endpoints (spec §9).
type Consumer struct {
	httpClient   *http.Client
	facilitator  *facilitator.Facilitator
	wallet       facilitator.Wallet
	buyerAgentID string
	logger       *zap.Logger

	mu     sync.RWMutex
	offers map[string]types.Offer // keyed by productId
}

// New builds a Consumer that signs with wallet and settles payments through
// fac, identifying itself as buyerAgentID.
func New(fac *facilitator.Facilitator, wallet facilitator.Wallet, buyerAgentID string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		facilitator:  fac,
		wallet:       wallet,
		buyerAgentID: buyerAgentID,
		logger:       logger,
		offers:       make(map[string]types.Offer),
	}
}

// DiscoverProducts fetches the product catalog from a registry endpoint
// (conventionally the producer's own GET /products, a superset of the
// single-product GET surface §4.3 specifies explicitly).
func (c *Consumer) DiscoverProducts(ctx context.Context, registryEndpoint string) ([]types.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryEndpoint+"/products", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovering products: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product discovery returned status %d", resp.StatusCode)
	}

	var products []types.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decoding product catalog: %w", err)
	}
	return products, nil
}

// Negotiate posts a NegotiationRequest to endpoint and caches the resulting
// Offer under productID.
func (c *Consumer) Negotiate(ctx context.Context, productID, endpoint, maxPrice string, rl types.RateLimit) (types.Offer, error) {
	if maxPrice == "" {
		maxPrice = "0"
	}
	reqBody := types.NewNegotiationRequest(productID, maxPrice, types.CurrencyNative, rl, c.buyerAgentID)
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return types.Offer{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/ap2/negotiate", bytes.NewReader(payload))
	if err != nil {
		return types.Offer{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.Offer{}, fmt.Errorf("negotiating: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Offer{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return types.Offer{}, errorFromBody(body)
	}

	var offer types.Offer
	if err := json.Unmarshal(body, &offer); err != nil {
		return types.Offer{}, fmt.Errorf("decoding offer: %w", err)
	}
	if offer.Type != "OFFER" || offer.ProductID != productID {
		return types.Offer{}, fmt.Errorf("malformed offer from producer")
	}
	if offer.Expired(time.Now()) {
		return types.Offer{}, types.ErrOfferExpired
	}

	c.mu.Lock()
	c.offers[productID] = offer
	c.mu.Unlock()

	return offer, nil
}

func (c *Consumer) cachedOffer(productID string) (types.Offer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	offer, ok := c.offers[productID]
	if !ok || offer.Expired(time.Now()) {
		return types.Offer{}, false
	}
	return offer, true
}

// RequestScore implements the discover-once/negotiate-if-needed/402-retry
// loop (spec §4.4).
func (c *Consumer) RequestScore(ctx context.Context, accountID types.AccountId, productID, endpoint string) (types.TrustScore, error) {
	if !types.ValidateAccountId(string(accountID)) {
		return types.TrustScore{}, fmt.Errorf("%w: %s", types.ErrInvalidAccountId, accountID)
	}

	if _, ok := c.cachedOffer(productID); !ok {
		if _, err := c.Negotiate(ctx, productID, endpoint, "0", types.DefaultRateLimit); err != nil {
			return types.TrustScore{}, fmt.Errorf("negotiating before score request: %w", err)
		}
	}

	score, status, body, err := c.getScore(ctx, accountID, endpoint, "")
	if err != nil {
		return types.TrustScore{}, err
	}

	switch status {
	case http.StatusOK:
		return score, nil
	case http.StatusPaymentRequired:
		requirements, err := requirementsFromBody(body)
		if err != nil {
			return types.TrustScore{}, fmt.Errorf("parsing payment requirements: %w", err)
		}

		header, err := c.payForAccess(ctx, requirements)
		if err != nil {
			return types.TrustScore{}, fmt.Errorf("paying for access: %w", err)
		}

		score, status, body, err := c.getScore(ctx, accountID, endpoint, header)
		if err != nil {
			return types.TrustScore{}, err
		}
		if status != http.StatusOK {
			return types.TrustScore{}, errorFromBody(body)
		}
		return score, nil
	default:
		return types.TrustScore{}, errorFromBody(body)
	}
}

func (c *Consumer) getScore(ctx context.Context, accountID types.AccountId, endpoint, paymentHeader string) (types.TrustScore, int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/trustscore/"+string(accountID), nil)
	if err != nil {
		return types.TrustScore{}, 0, nil, err
	}
	req.Header.Set("X-Agent-ID", c.buyerAgentID)
	if paymentHeader != "" {
		req.Header.Set("X-PAYMENT", paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.TrustScore{}, 0, nil, fmt.Errorf("requesting score: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TrustScore{}, 0, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return types.TrustScore{}, resp.StatusCode, body, nil
	}

	var score types.TrustScore
	if err := json.Unmarshal(body, &score); err != nil {
		return types.TrustScore{}, 0, nil, fmt.Errorf("decoding score: %w", err)
	}
	return score, resp.StatusCode, body, nil
}

// payForAccess builds a scheme-appropriate authorization, verifies then
// settles it through the facilitator, and encodes the signed authorization
// and settlement receipt as the opaque X-PAYMENT header value.
func (c *Consumer) payForAccess(ctx context.Context, req types.PaymentRequirements) (string, error) {
	payload := types.PaymentAuthorizationPayload{
		From:        c.buyerAgentID,
		To:          req.PayTo,
		Value:       req.MaxAmountRequired,
		ValidBefore: time.Now().Add(time.Duration(req.MaxTimeoutSeconds) * time.Second).Unix(),
	}

	sig, err := c.wallet.Sign(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("signing authorization: %w", err)
	}

	auth := types.PaymentAuthorization{
		Version:   1,
		Scheme:    req.Scheme,
		Network:   req.Network,
		Payload:   payload,
		Signature: sig,
	}

	verify := c.facilitator.Verify(ctx, auth, req, time.Now())
	if !verify.IsValid {
		return "", fmt.Errorf("authorization invalid: %s", verify.Reason)
	}

	receipt := c.facilitator.Settle(ctx, auth, req)
	if !receipt.Success {
		return "", fmt.Errorf("settlement failed: %s", receipt.Error)
	}

	c.logger.Info("payment settled",
		zap.String("transaction_id", receipt.TransactionID),
		zap.String("amount", req.MaxAmountRequired),
		zap.String("pay_to", req.PayTo),
	)

	header := types.PaymentReceiptHeader{Authorization: auth, Receipt: receipt}
	raw, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func requirementsFromBody(body []byte) (types.PaymentRequirements, error) {
	var envelope struct {
		Error struct {
			Code    string                     `json:"code"`
			Message string                     `json:"message"`
			Payment types.PaymentRequirements `json:"payment"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.PaymentRequirements{}, err
	}
	return envelope.Error.Payment, nil
}

func errorFromBody(body []byte) error {
	var envelope types.ErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("producer returned an unparseable error: %s", string(body))
	}
	return &ErrScoreRequestFailed{Code: envelope.Error.Code, Message: envelope.Error.Message}
}
