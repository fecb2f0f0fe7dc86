// Package facilitator implements the stateless helper (C6) that verifies a
// payment authorization and submits the resulting on-ledger transfer.
package facilitator

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustmesh/agentmarket/internal/types"
)

// evmExactScheme is the EVM-stablecoin counterpart to the native-ledger
// "exact" scheme; its Signature carries a JWT over the authorization
// payload rather than the native scheme's implicit facilitator signing.
const evmExactScheme = "evm-exact"

// Wallet is the two-operation interface every payment scheme implements:
// sign an authorization, submit a transfer. Sharing this interface lets the
// native-ledger and EVM-stablecoin schemes reuse one payment loop.
type Wallet interface {
	Sign(ctx context.Context, payload types.PaymentAuthorizationPayload) (signature string, err error)
	SubmitTransfer(ctx context.Context, auth types.PaymentAuthorization) (transactionID string, err error)
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	IsValid bool
	Reason  string
}

// Facilitator verifies payment authorizations and settles them on-ledger.
// It holds no state of its own beyond the wallet it settles through and,
// for the EVM-stablecoin scheme, the shared secret its JWT signatures
// verify against.
type Facilitator struct {
	wallet    Wallet
	jwtSecret []byte
}

// Option configures optional Facilitator behavior.
type Option func(*Facilitator)

// WithEVMJWTSecret enables evm-exact scheme verification: authorizations
// for that scheme carry a JWT signature validated against secret.
func WithEVMJWTSecret(secret []byte) Option {
	return func(f *Facilitator) { f.jwtSecret = secret }
}

// New builds a Facilitator that settles through wallet.
func New(wallet Wallet, opts ...Option) *Facilitator {
	f := &Facilitator{wallet: wallet}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Verify checks an authorization against the requirements it is meant to
// satisfy: scheme/network match, recipient match, exact-amount match
// (integer-string comparison, never float), a not-yet-expired validBefore,
// and — for schemes that carry one — a valid signature.
func (f *Facilitator) Verify(ctx context.Context, auth types.PaymentAuthorization, req types.PaymentRequirements, now time.Time) VerifyResult {
	if auth.Scheme != req.Scheme {
		return VerifyResult{Reason: fmt.Sprintf("scheme mismatch: got %q want %q", auth.Scheme, req.Scheme)}
	}
	if auth.Network != req.Network {
		return VerifyResult{Reason: fmt.Sprintf("network mismatch: got %q want %q", auth.Network, req.Network)}
	}
	if auth.Payload.To != req.PayTo {
		return VerifyResult{Reason: "recipient does not match payment requirements"}
	}
	if !types.AmountEqual(auth.Payload.Value, req.MaxAmountRequired) {
		return VerifyResult{Reason: "authorized value does not match required amount"}
	}
	if auth.Payload.ValidBefore <= now.Unix() {
		return VerifyResult{Reason: "authorization has already expired"}
	}
	if auth.Signature != "" || auth.Scheme == evmExactScheme {
		if err := f.verifySignature(auth); err != nil {
			return VerifyResult{Reason: err.Error()}
		}
	}
	return VerifyResult{IsValid: true}
}

// evmAuthClaims is the JWT claim set an evm-exact authorization's signature
// carries: the transfer intent plus a standard expiry bound to ValidBefore.
type evmAuthClaims struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	jwt.RegisteredClaims
}

// verifySignature validates a scheme-specific signature. A native-ledger
// signature is not checked, because the facilitator signs the submitted
// transfer itself; evm-exact authorizations must carry a signature, which is
// parsed and validated as a JWT bound to the same payload and expiry.
func (f *Facilitator) verifySignature(auth types.PaymentAuthorization) error {
	if len(auth.Signature) == 0 {
		return fmt.Errorf("missing signature")
	}
	if auth.Scheme != evmExactScheme {
		return nil
	}
	if len(f.jwtSecret) == 0 {
		return fmt.Errorf("evm-exact scheme requires a configured JWT secret")
	}

	var claims evmAuthClaims
	token, err := jwt.ParseWithClaims(auth.Signature, &claims, func(t *jwt.Token) (interface{}, error) {
		return f.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return fmt.Errorf("invalid authorization signature: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("authorization signature failed validation")
	}
	if claims.From != auth.Payload.From || claims.To != auth.Payload.To || claims.Value != auth.Payload.Value {
		return fmt.Errorf("signature claims do not match authorization payload")
	}
	return nil
}

// Settle submits the transfer described by auth and returns the resulting
// receipt. On submission failure the receipt reports success=false with the
// failure reason, never an error return — callers inspect Receipt.Success.
func (f *Facilitator) Settle(ctx context.Context, auth types.PaymentAuthorization, req types.PaymentRequirements) types.PaymentReceipt {
	txID, err := f.wallet.SubmitTransfer(ctx, auth)
	if err != nil {
		return types.PaymentReceipt{Success: false, Network: req.Network, Error: err.Error()}
	}
	return types.PaymentReceipt{Success: true, TransactionID: txID, Network: req.Network}
}
