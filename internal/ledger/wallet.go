package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ed25519"

	"github.com/trustmesh/agentmarket/internal/types"
)

// NativeWallet signs payment authorization payloads with an ed25519 key and
// submits native-ledger transfers through a TransferSubmitter. It implements
// facilitator.Wallet.
type NativeWallet struct {
	privateKey ed25519.PrivateKey
	network    string
	submitter  TransferSubmitter
}

// NewNativeWallet builds a wallet around an existing ed25519 private key
// (hex-encoded, as the consumer/producer key environment variables carry
// it) and a transfer submitter.
func NewNativeWallet(hexPrivateKey, network string, submitter TransferSubmitter) (*NativeWallet, error) {
	raw, err := hex.DecodeString(hexPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decoding wallet key: %w", err)
	}
	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("wallet key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
	return &NativeWallet{privateKey: key, network: network, submitter: submitter}, nil
}

// GenerateNativeWallet creates a fresh ed25519 key pair, useful for tests
// and local development.
func GenerateNativeWallet(network string, submitter TransferSubmitter) (*NativeWallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &NativeWallet{privateKey: priv, network: network, submitter: submitter}, nil
}

// Sign signs payload with the wallet's ed25519 key and returns the
// hex-encoded signature. For the native-ledger scheme this signature is
// informational — the facilitator itself authorizes the submitted transfer
// — but EVM-style schemes treat it as the binding authorization.
func (w *NativeWallet) Sign(ctx context.Context, payload types.PaymentAuthorizationPayload) (string, error) {
	msg := fmt.Sprintf("%s:%s:%s:%d", payload.From, payload.To, payload.Value, payload.ValidBefore)
	sig := ed25519.Sign(w.privateKey, []byte(msg))
	return hex.EncodeToString(sig), nil
}

// SubmitTransfer submits the authorized transfer to the ledger.
func (w *NativeWallet) SubmitTransfer(ctx context.Context, auth types.PaymentAuthorization) (string, error) {
	return w.submitter.SubmitTransfer(ctx, auth.Payload.From, auth.Payload.To, auth.Payload.Value, w.network)
}
