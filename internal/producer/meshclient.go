package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/types"
)

// MeshClient implements Mesh over the orchestrator's admin HTTP surface, so
// the producer process holds only an endpoint, never a reference to the
// orchestrator's internal state (spec §9).
type MeshClient struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// NewMeshClient builds a Mesh client against the orchestrator's endpoint.
func NewMeshClient(endpoint string, logger *zap.Logger) *MeshClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeshClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (m *MeshClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling orchestrator %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("orchestrator %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IssueTask asks the orchestrator to issue a task, logging a best-effort
// warning and returning a locally-synthesized pending task on transport
// failure — the score pipeline must not stall waiting on the orchestrator.
func (m *MeshClient) IssueTask(ctx context.Context, consumerAgentID string, accountID types.AccountId, taskType string) *types.Task {
	var task types.Task
	reqBody := map[string]interface{}{
		"consumerAgentId": consumerAgentID,
		"accountId":       accountID,
		"taskType":        taskType,
	}
	if err := m.post(ctx, "/tasks", reqBody, &task); err != nil {
		m.logger.Warn("issue task failed, continuing with a synthesized task", zap.Error(err))
		return &types.Task{
			TaskID:          fmt.Sprintf("local-%d", time.Now().UnixNano()),
			Type:            taskType,
			ConsumerAgentID: consumerAgentID,
			AccountID:       accountID,
			State:           types.TaskPending,
			CreatedAt:       time.Now(),
		}
	}
	return &task
}

// CompleteTask reports a task's result to the orchestrator along with the
// delivery context (buyer, producer, account, score, and settlement) the
// resulting SCORE_DELIVERED audit event records.
func (m *MeshClient) CompleteTask(ctx context.Context, taskID string, result *types.TrustScore, delivery types.ScoreDelivery) error {
	reqBody := map[string]interface{}{
		"result":          result,
		"buyerAgentId":    delivery.BuyerAgentID,
		"producerAgentId": delivery.ProducerAgentID,
		"accountId":       delivery.AccountID,
		"score":           delivery.Score,
		"transactionId":   delivery.TransactionID,
		"amount":          delivery.Amount,
	}
	return m.post(ctx, "/tasks/"+taskID+"/complete", reqBody, nil)
}

// FailTask reports a task's failure to the orchestrator.
func (m *MeshClient) FailTask(ctx context.Context, taskID string, taskErr string) error {
	return m.post(ctx, "/tasks/"+taskID+"/fail", map[string]interface{}{"error": taskErr}, nil)
}

// VerifyPaymentReceipt asks the orchestrator to verify a settled payment
// against the ledger mirror node. Any transport failure is treated as
// verification failure — a producer must never grant access it could not
// confirm was paid for.
func (m *MeshClient) VerifyPaymentReceipt(ctx context.Context, transactionID, expectedAmount, expectedRecipient string) bool {
	var out struct {
		Verified bool `json:"verified"`
	}
	reqBody := map[string]interface{}{
		"transactionId":     transactionID,
		"expectedAmount":    expectedAmount,
		"expectedRecipient": expectedRecipient,
	}
	if err := m.post(ctx, "/payments/verify", reqBody, &out); err != nil {
		m.logger.Warn("verify payment receipt failed", zap.Error(err))
		return false
	}
	return out.Verified
}

// LogNegotiationStarted reports a negotiation start to the orchestrator's
// audit log. Failures are logged and otherwise swallowed — audit logging
// never blocks the negotiation flow.
func (m *MeshClient) LogNegotiationStarted(ctx context.Context, productID, buyerAgentID string) {
	reqBody := map[string]interface{}{"productId": productID, "buyerAgentId": buyerAgentID}
	if err := m.post(ctx, "/events/negotiation-started", reqBody, nil); err != nil {
		m.logger.Warn("log negotiation started failed", zap.Error(err))
	}
}

// LogRateLimitViolation reports a consecutive-window rate-limit violation.
func (m *MeshClient) LogRateLimitViolation(ctx context.Context, accountID types.AccountId, productID string) {
	reqBody := map[string]interface{}{"accountId": accountID, "productId": productID}
	if err := m.post(ctx, "/events/rate-limit-violation", reqBody, nil); err != nil {
		m.logger.Warn("log rate limit violation failed", zap.Error(err))
	}
}
