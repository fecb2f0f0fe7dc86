package facilitator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/types"
)

type stubSubmitter struct {
	txID string
	err  error
}

func (s *stubSubmitter) SubmitTransfer(ctx context.Context, from, to, amount, network string) (string, error) {
	return s.txID, s.err
}

func requirements(amount string) types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            "exact",
		Network:           "testnet",
		PayTo:             "0.0.5000",
		MaxAmountRequired: amount,
		MaxTimeoutSeconds: 60,
	}
}

func TestFacilitator_Verify_NativeScheme(t *testing.T) {
	req := requirements("30000")
	auth := types.PaymentAuthorization{
		Scheme:  "exact",
		Network: "testnet",
		Payload: types.PaymentAuthorizationPayload{From: "0.0.1", To: "0.0.5000", Value: "30000", ValidBefore: time.Now().Add(time.Minute).Unix()},
	}
	f := New(nil)
	result := f.Verify(context.Background(), auth, req, time.Now())
	assert.True(t, result.IsValid, result.Reason)
}

func TestFacilitator_Verify_RejectsAmountMismatch(t *testing.T) {
	req := requirements("30000")
	auth := types.PaymentAuthorization{
		Scheme:  "exact",
		Network: "testnet",
		Payload: types.PaymentAuthorizationPayload{From: "0.0.1", To: "0.0.5000", Value: "29999", ValidBefore: time.Now().Add(time.Minute).Unix()},
	}
	f := New(nil)
	result := f.Verify(context.Background(), auth, req, time.Now())
	assert.False(t, result.IsValid)
}

func TestFacilitator_Verify_EVMExactScheme(t *testing.T) {
	secret := []byte("test-secret")
	wallet := ledger.NewStablecoinWallet(secret, "testnet", &stubSubmitter{txID: "tx-1"})

	payload := types.PaymentAuthorizationPayload{From: "0xabc", To: "0xdef", Value: "500", ValidBefore: time.Now().Add(time.Minute).Unix()}
	sig, err := wallet.Sign(context.Background(), payload)
	require.NoError(t, err)

	auth := types.PaymentAuthorization{
		Scheme:    "evm-exact",
		Network:   "testnet",
		Payload:   payload,
		Signature: sig,
	}
	req := types.PaymentRequirements{Scheme: "evm-exact", Network: "testnet", PayTo: "0xdef", MaxAmountRequired: "500"}

	f := New(wallet, WithEVMJWTSecret(secret))
	result := f.Verify(context.Background(), auth, req, time.Now())
	assert.True(t, result.IsValid, result.Reason)
}

func TestFacilitator_Verify_EVMExactScheme_WrongSecretFails(t *testing.T) {
	wallet := ledger.NewStablecoinWallet([]byte("real-secret"), "testnet", &stubSubmitter{txID: "tx-1"})

	payload := types.PaymentAuthorizationPayload{From: "0xabc", To: "0xdef", Value: "500", ValidBefore: time.Now().Add(time.Minute).Unix()}
	sig, err := wallet.Sign(context.Background(), payload)
	require.NoError(t, err)

	auth := types.PaymentAuthorization{Scheme: "evm-exact", Network: "testnet", Payload: payload, Signature: sig}
	req := types.PaymentRequirements{Scheme: "evm-exact", Network: "testnet", PayTo: "0xdef", MaxAmountRequired: "500"}

	f := New(wallet, WithEVMJWTSecret([]byte("wrong-secret")))
	result := f.Verify(context.Background(), auth, req, time.Now())
	assert.False(t, result.IsValid)
}

func TestFacilitator_Settle_ReportsFailureWithoutError(t *testing.T) {
	wallet := ledger.NewStablecoinWallet([]byte("s"), "testnet", &stubSubmitter{err: assertErr("submit failed")})
	f := New(wallet)
	auth := types.PaymentAuthorization{Scheme: "evm-exact", Network: "testnet", Payload: types.PaymentAuthorizationPayload{From: "0xabc", To: "0xdef", Value: "500"}}
	receipt := f.Settle(context.Background(), auth, types.PaymentRequirements{Network: "testnet"})
	assert.False(t, receipt.Success)
	assert.NotEmpty(t, receipt.Error)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
