package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/agentmarket/internal/facilitator"
	"github.com/trustmesh/agentmarket/internal/types"
)

// stubSubmitter stands in for the ledger.TransferSubmitter the wallet would
// otherwise call through a live JSON-RPC connection.
type stubSubmitter struct {
	txID string
	err  error
}

func (s *stubSubmitter) SubmitTransfer(ctx context.Context, from, to, amount, network string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.txID, nil
}

// stubWallet implements facilitator.Wallet without a live ed25519 key or
// ledger connection.
type stubWallet struct {
	submitter *stubSubmitter
}

func (w *stubWallet) Sign(ctx context.Context, payload types.PaymentAuthorizationPayload) (string, error) {
	return "stub-signature", nil
}

func (w *stubWallet) SubmitTransfer(ctx context.Context, auth types.PaymentAuthorization) (string, error) {
	return w.submitter.SubmitTransfer(ctx, auth.Payload.From, auth.Payload.To, auth.Payload.Value, auth.Network)
}

func newTestConsumer(submitter *stubSubmitter) *Consumer {
	wallet := &stubWallet{submitter: submitter}
	fac := facilitator.New(wallet)
	return New(fac, wallet, "0.0.7304745", nil)
}

// mockProducer implements negotiate and the 402-then-200 trustscore flow
// for S1's happy path.
func mockProducer(requiredAmount string) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/ap2/negotiate", func(w http.ResponseWriter, r *http.Request) {
		var req types.NegotiationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		offer := types.NewOffer(req.ProductID, requiredAmount, types.CurrencyNative, req.RateLimit, types.SLA{Uptime: "99.9"}, "0.0.5000", time.Now())
		_ = json.NewEncoder(w).Encode(offer)
	})

	mux.HandleFunc("/trustscore/0.0.2", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-PAYMENT") == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"code":    types.CodePaymentRequired,
					"message": "payment required",
					"payment": types.PaymentRequirements{
						Scheme:            "exact",
						Network:           "testnet",
						PayTo:             "0.0.5000",
						MaxAmountRequired: requiredAmount,
						MaxTimeoutSeconds: 60,
					},
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(types.TrustScore{Account: "0.0.2", Score: 72})
	})

	return httptest.NewServer(mux)
}

// S1 happy path: negotiate, 402, pay, retry, 200 with a valid score.
func TestRequestScore_HappyPath(t *testing.T) {
	srv := mockProducer("30000")
	defer srv.Close()

	c := newTestConsumer(&stubSubmitter{txID: "tx-1"})

	score, err := c.RequestScore(context.Background(), "0.0.2", "trustscore.basic.v1", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 72, score.Score)
}

// S2 invalid account id never reaches the network.
func TestRequestScore_InvalidAccountId(t *testing.T) {
	c := newTestConsumer(&stubSubmitter{})
	_, err := c.RequestScore(context.Background(), "not-an-id", "trustscore.basic.v1", "http://unused")
	assert.ErrorIs(t, err, types.ErrInvalidAccountId)
}

// Settlement failure propagates as an error rather than a silent retry.
func TestRequestScore_SettlementFailurePropagates(t *testing.T) {
	srv := mockProducer("30000")
	defer srv.Close()

	c := newTestConsumer(&stubSubmitter{err: errSubmitFailed})
	_, err := c.RequestScore(context.Background(), "0.0.2", "trustscore.basic.v1", srv.URL)
	assert.Error(t, err)
}

var errSubmitFailed = assertError("submit failed")

type assertError string

func (e assertError) Error() string { return string(e) }

// Property 8: an expired offer from the producer is rejected outright, not
// retried.
func TestNegotiate_RejectsExpiredOffer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ap2/negotiate", func(w http.ResponseWriter, r *http.Request) {
		offer := types.Offer{Type: "OFFER", ProductID: "p1", Price: "1", ValidUntil: 1}
		_ = json.NewEncoder(w).Encode(offer)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestConsumer(&stubSubmitter{})
	_, err := c.Negotiate(context.Background(), "p1", srv.URL, "0", types.DefaultRateLimit)
	assert.ErrorIs(t, err, types.ErrOfferExpired)
}

func TestNegotiate_RejectsProductMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ap2/negotiate", func(w http.ResponseWriter, r *http.Request) {
		offer := types.NewOffer("other-product", "1", types.CurrencyNative, types.DefaultRateLimit, types.SLA{}, "0.0.5000", time.Now())
		_ = json.NewEncoder(w).Encode(offer)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestConsumer(&stubSubmitter{})
	_, err := c.Negotiate(context.Background(), "p1", srv.URL, "0", types.DefaultRateLimit)
	assert.Error(t, err)
}
