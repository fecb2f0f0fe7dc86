package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/types"
)

type failNPublisher struct {
	mu        sync.Mutex
	failCount int
	calls     int
	events    []types.AuditEvent
}

func (p *failNPublisher) Publish(ctx context.Context, topic string, event types.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failCount {
		return errors.New("publish unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

type mockMirror struct {
	transactions map[string]ledger.MirrorTransaction
	err          error
}

func (m *mockMirror) GetTransaction(ctx context.Context, transactionID string) (ledger.MirrorTransaction, error) {
	if m.err != nil {
		return ledger.MirrorTransaction{}, m.err
	}
	tx, ok := m.transactions[transactionID]
	if !ok {
		return ledger.MirrorTransaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

func TestAuditLog_RetriesOnceThenDeadLetters(t *testing.T) {
	pub := &failNPublisher{failCount: 2}
	log := NewAuditLog(pub, "audit-topic", "orch-1", nil)

	log.LogEvent(context.Background(), types.EventScoreDelivered, map[string]interface{}{"task_id": "t1"})

	assert.Equal(t, 2, pub.calls)
	dead := log.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, types.EventScoreDelivered, dead[0].Type)
	assert.Equal(t, "orch-1", dead[0].OrchestratorID)
	assert.NotEmpty(t, dead[0].EventID)
}

func TestAuditLog_SucceedsOnRetry(t *testing.T) {
	pub := &failNPublisher{failCount: 1}
	log := NewAuditLog(pub, "audit-topic", "orch-1", nil)

	log.LogEvent(context.Background(), types.EventNegotiationStarted, nil)

	assert.Equal(t, 2, pub.calls)
	assert.Empty(t, log.DeadLetters())
	require.Len(t, pub.events, 1)
}

// Property 15: events published through a single orchestrator call site
// preserve submission order on the topic.
func TestAuditLog_PreservesSubmissionOrder(t *testing.T) {
	pub := &failNPublisher{}
	log := NewAuditLog(pub, "audit-topic", "orch-1", nil)

	for i := 0; i < 20; i++ {
		log.LogEvent(context.Background(), types.EventComputationRequested, map[string]interface{}{"i": i})
	}

	require.Len(t, pub.events, 20)
	for i, ev := range pub.events {
		assert.Equal(t, i, ev.Data["i"])
	}
}

// Property 14: verifyPaymentReceipt only accepts an exact-amount,
// exact-recipient SUCCESS transfer; it never errors.
func TestVerifyPaymentReceipt_Property(t *testing.T) {
	mirror := &mockMirror{transactions: map[string]ledger.MirrorTransaction{
		"tx-ok": {
			TransactionID: "tx-ok",
			Status:        "SUCCESS",
			Transfers:     []ledger.TransferEntry{{Account: "0.0.1001", Amount: "5000"}},
		},
		"tx-wrong-amount": {
			TransactionID: "tx-wrong-amount",
			Status:        "SUCCESS",
			Transfers:     []ledger.TransferEntry{{Account: "0.0.1001", Amount: "1"}},
		},
		"tx-wrong-recipient": {
			TransactionID: "tx-wrong-recipient",
			Status:        "SUCCESS",
			Transfers:     []ledger.TransferEntry{{Account: "0.0.9999", Amount: "5000"}},
		},
		"tx-pending": {
			TransactionID: "tx-pending",
			Status:        "PENDING",
			Transfers:     []ledger.TransferEntry{{Account: "0.0.1001", Amount: "5000"}},
		},
	}}
	v := NewReceiptVerifier(mirror, nil)

	assert.True(t, v.VerifyPaymentReceipt(context.Background(), "tx-ok", "5000", "0.0.1001"))
	assert.False(t, v.VerifyPaymentReceipt(context.Background(), "tx-wrong-amount", "5000", "0.0.1001"))
	assert.False(t, v.VerifyPaymentReceipt(context.Background(), "tx-wrong-recipient", "5000", "0.0.1001"))
	assert.False(t, v.VerifyPaymentReceipt(context.Background(), "tx-pending", "5000", "0.0.1001"))
	assert.False(t, v.VerifyPaymentReceipt(context.Background(), "tx-missing", "5000", "0.0.1001"))
}

func TestVerifyPaymentReceipt_TransportErrorNeverPanics(t *testing.T) {
	mirror := &mockMirror{err: errors.New("connection reset")}
	v := NewReceiptVerifier(mirror, nil)

	assert.NotPanics(t, func() {
		ok := v.VerifyPaymentReceipt(context.Background(), "tx-1", "5000", "0.0.1001")
		assert.False(t, ok)
	})
}

func TestOrchestrator_TaskLifecycleEmitsAuditEvents(t *testing.T) {
	pub := &failNPublisher{}
	mirror := &mockMirror{transactions: map[string]ledger.MirrorTransaction{
		"tx-1": {TransactionID: "tx-1", Status: "SUCCESS", Transfers: []ledger.TransferEntry{{Account: "0.0.500", Amount: "100"}}},
	}}
	orch := New(Config{ID: "orch-1", Publisher: pub, AuditTopic: "audit", Mirror: mirror})

	accountID, err := types.ParseAccountId("0.0.777")
	require.NoError(t, err)

	task := orch.IssueTask(context.Background(), "consumer-1", accountID, "trust_score")
	require.NotEmpty(t, task.TaskID)

	score := types.TrustScore{Account: accountID, Score: 80}
	delivery := types.ScoreDelivery{
		BuyerAgentID:    "consumer-1",
		ProducerAgentID: "0.0.500",
		AccountID:       accountID,
		Score:           score.Score,
		TransactionID:   "tx-1",
		Amount:          "100",
	}
	require.NoError(t, orch.CompleteTask(context.Background(), task.TaskID, &score, delivery))

	got, ok := orch.Tasks.Get(task.TaskID)
	require.True(t, ok)
	assert.Equal(t, types.TaskCompleted, got.State)
	assert.NotNil(t, got.CompletedAt)

	assert.True(t, orch.VerifyPaymentReceipt(context.Background(), "tx-1", "100", "0.0.500"))

	events := pub.events
	require.Len(t, events, 3)
	assert.Equal(t, types.EventComputationRequested, events[0].Type)
	assert.Equal(t, types.EventScoreDelivered, events[1].Type)
	assert.Equal(t, "consumer-1", events[1].Data["buyer_agent_id"])
	assert.Equal(t, "tx-1", events[1].Data["transaction_id"])
	assert.Equal(t, types.EventPaymentVerified, events[2].Type)
}

func TestOrchestrator_IllegalTransitionDoesNotEmitEvent(t *testing.T) {
	pub := &failNPublisher{}
	orch := New(Config{ID: "orch-1", Publisher: pub, AuditTopic: "audit"})

	accountID, _ := types.ParseAccountId("0.0.1")
	task := orch.IssueTask(context.Background(), "consumer-1", accountID, "trust_score")

	require.NoError(t, orch.FailTask(context.Background(), task.TaskID, "boom"))
	err := orch.CompleteTask(context.Background(), task.TaskID, &types.TrustScore{}, types.ScoreDelivery{})
	assert.Error(t, err)
	require.Len(t, pub.events, 1, "only IssueTask's event is published")
	assert.Equal(t, types.EventComputationRequested, pub.events[0].Type)
}
