package ledger

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustmesh/agentmarket/internal/types"
)

// evmAuthClaims mirrors facilitator's evm-exact claim set; duplicated here
// rather than imported to keep the wallet independent of the facilitator's
// verification internals — only the claim field names and scheme need to
// agree, which the evm-exact scheme constant pins down.
type evmAuthClaims struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	jwt.RegisteredClaims
}

// StablecoinWallet signs payment authorizations as an HS256 JWT over the
// authorization payload, the EVM-stablecoin counterpart to NativeWallet's
// ed25519 signing. It implements facilitator.Wallet.
type StablecoinWallet struct {
	secret    []byte
	network   string
	submitter TransferSubmitter
}

// NewStablecoinWallet builds a wallet that signs with secret and submits
// transfers through submitter.
func NewStablecoinWallet(secret []byte, network string, submitter TransferSubmitter) *StablecoinWallet {
	return &StablecoinWallet{secret: secret, network: network, submitter: submitter}
}

// Sign returns a compact HS256 JWT binding payload.From/To/Value and an
// expiry at payload.ValidBefore.
func (w *StablecoinWallet) Sign(ctx context.Context, payload types.PaymentAuthorizationPayload) (string, error) {
	claims := evmAuthClaims{
		From:  payload.From,
		To:    payload.To,
		Value: payload.Value,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Unix(payload.ValidBefore, 0)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(w.secret)
}

// SubmitTransfer submits the authorized transfer to the ledger.
func (w *StablecoinWallet) SubmitTransfer(ctx context.Context, auth types.PaymentAuthorization) (string, error) {
	return w.submitter.SubmitTransfer(ctx, auth.Payload.From, auth.Payload.To, auth.Payload.Value, w.network)
}
