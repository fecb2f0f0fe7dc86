package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/types"
)

// ReceiptVerifier checks a settled payment against the mirror node before a
// producer releases a scored response.
type ReceiptVerifier struct {
	mirror ledger.MirrorClient
	logger *zap.Logger
}

// NewReceiptVerifier builds a verifier against the given mirror-node client.
func NewReceiptVerifier(mirror ledger.MirrorClient, logger *zap.Logger) *ReceiptVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptVerifier{mirror: mirror, logger: logger}
}

// VerifyPaymentReceipt confirms that transactionID is a SUCCESS transaction
// carrying a transfer entry that exactly matches expectedAmount and
// expectedRecipient. It never returns an error: a mirror-node miss or
// transport failure is reported as an unverified receipt (false), not raised
// to the caller.
func (v *ReceiptVerifier) VerifyPaymentReceipt(ctx context.Context, transactionID, expectedAmount, expectedRecipient string) bool {
	txn, err := v.mirror.GetTransaction(ctx, transactionID)
	if err != nil {
		v.logger.Warn("receipt verification: mirror lookup failed",
			zap.String("transaction_id", transactionID), zap.Error(err))
		return false
	}

	if txn.Status != "SUCCESS" {
		return false
	}

	for _, t := range txn.Transfers {
		if t.Account == expectedRecipient && types.AmountEqual(t.Amount, expectedAmount) {
			return true
		}
	}
	return false
}
