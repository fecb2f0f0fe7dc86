package types

// PaymentRequirements describes what a producer demands before it will
// compute a score, returned on every unpaid 402 response.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"` // always "exact"
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"` // integer smallest-unit string
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MimeType          string `json:"mimeType"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// PaymentAuthorizationPayload carries the signed transfer intent.
type PaymentAuthorizationPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidBefore int64  `json:"validBefore"` // absolute epoch seconds
}

// PaymentAuthorization is the client-constructed authorization handed to the
// facilitator. For on-ledger native transfers the signature is implicit —
// the facilitator signs the submitted transfer on the payer's behalf using
// the payer's registered key; for EVM-style stablecoins Signature carries
// the wallet's pre-signature over Payload.
type PaymentAuthorization struct {
	Version   int                         `json:"version"`
	Scheme    string                      `json:"scheme"`
	Network   string                      `json:"network"`
	Payload   PaymentAuthorizationPayload `json:"payload"`
	Signature string                      `json:"signature,omitempty"`
}

// PaymentReceipt is returned by the facilitator once a transfer has been
// submitted to the ledger.
type PaymentReceipt struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Network       string `json:"network,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PaymentReceiptHeader is the opaque payload the consumer base64-encodes
// into the X-PAYMENT header on retry. It carries both the authorization the
// facilitator verified and the settlement receipt it produced, so the
// producer can re-verify the settled transaction against the ledger mirror
// node out-of-band without a second round trip to the facilitator (the
// distilled spec names "a base64-encoded JSON PaymentAuthorization" as the
// header's contents but the receipt's transaction id is required to call
// verifyPaymentReceipt, so the header carries both).
type PaymentReceiptHeader struct {
	Authorization PaymentAuthorization `json:"authorization"`
	Receipt       PaymentReceipt       `json:"receipt"`
}
