package types

import (
	"errors"
	"time"
)

// Default lifetime granted to a freshly synthesized Offer.
const DefaultOfferTTL = 300 * time.Second

// ErrOfferExpired is returned by NewAcceptance when validUntil has already
// passed; accepting an expired offer is a hard error, never a retry.
var ErrOfferExpired = errors.New("offer has expired")

// NegotiationRequest is the one-shot AP2 NEGOTIATE message. Immutable once
// constructed.
type NegotiationRequest struct {
	Type          string    `json:"type"` // always "NEGOTIATE"
	ProductID     string    `json:"productId"`
	MaxPrice      string    `json:"maxPrice"`
	Currency      Currency  `json:"currency"`
	RateLimit     RateLimit `json:"rateLimit"`
	BuyerAgentID  string    `json:"buyerAgentId"`
	Timestamp     int64     `json:"timestamp"` // epoch-ms
}

// NewNegotiationRequest builds an immutable NEGOTIATE message.
func NewNegotiationRequest(productID, maxPrice string, currency Currency, rl RateLimit, buyerAgentID string) NegotiationRequest {
	return NegotiationRequest{
		Type:         "NEGOTIATE",
		ProductID:    productID,
		MaxPrice:     maxPrice,
		Currency:     currency,
		RateLimit:    rl,
		BuyerAgentID: buyerAgentID,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// Offer is the AP2 OFFER message: an enforceable, expiring set of terms.
// Immutable once constructed.
type Offer struct {
	Type            string    `json:"type"` // always "OFFER"
	ProductID       string    `json:"productId"`
	Price           string    `json:"price"`
	Currency        Currency  `json:"currency"`
	Slippage        string    `json:"slippage,omitempty"`
	RateLimit       RateLimit `json:"rateLimit"`
	SLA             SLA       `json:"sla"`
	ValidUntil      int64     `json:"validUntil"` // absolute epoch-ms
	ProducerAgentID string    `json:"producerAgentId"`
	Timestamp       int64     `json:"timestamp"`
}

// NewOffer synthesizes an Offer that expires DefaultOfferTTL after now,
// satisfying the invariant validUntil > createdAt.
func NewOffer(productID, price string, currency Currency, rl RateLimit, sla SLA, producerAgentID string, now time.Time) Offer {
	return Offer{
		Type:            "OFFER",
		ProductID:       productID,
		Price:           price,
		Currency:        currency,
		RateLimit:       rl,
		SLA:             sla,
		ValidUntil:      now.Add(DefaultOfferTTL).UnixMilli(),
		ProducerAgentID: producerAgentID,
		Timestamp:       now.UnixMilli(),
	}
}

// Expired reports whether the offer's validUntil is at or before now.
func (o Offer) Expired(now time.Time) bool {
	return o.ValidUntil <= now.UnixMilli()
}

// Acceptance is a buyer's ACCEPT of a still-valid Offer.
type Acceptance struct {
	Offer        Offer `json:"offer"`
	BuyerAgentID string `json:"buyerAgentId"`
	AcceptedAt   int64  `json:"acceptedAt"`
}

// NewAcceptance constructs an Acceptance, failing if the offer has already
// expired as of now.
func NewAcceptance(offer Offer, buyerAgentID string, now time.Time) (Acceptance, error) {
	if offer.Expired(now) {
		return Acceptance{}, ErrOfferExpired
	}
	return Acceptance{
		Offer:        offer,
		BuyerAgentID: buyerAgentID,
		AcceptedAt:   now.UnixMilli(),
	}, nil
}

// EnforceTerms reports whether a candidate (price, calls, uptime) still
// satisfies an accepted offer. It returns false iff price exceeds the
// offer's price, calls exceed the offer's rate limit, or uptime falls below
// the offer's SLA uptime.
//
// price and the offer's price are integer-smallest-unit strings compared as
// integers, never as floats. Uptimes are percentage strings (e.g. "99.9")
// that EnforceTerms parses as float64 for that one comparison; if either
// fails to parse, the uptime check is skipped.
func EnforceTerms(offer Offer, price string, calls int, uptime string) bool {
	offerAmount, err1 := parseAmount(offer.Price)
	candidateAmount, err2 := parseAmount(price)
	if err1 != nil || err2 != nil {
		return false
	}
	if candidateAmount.Cmp(offerAmount) > 0 {
		return false
	}
	if calls > offer.RateLimit.Calls {
		return false
	}
	offerUptime, err3 := parseFloat(offer.SLA.Uptime)
	candidateUptime, err4 := parseFloat(uptime)
	if err3 == nil && err4 == nil && candidateUptime < offerUptime {
		return false
	}
	return true
}
