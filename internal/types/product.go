package types

import "time"

// Currency identifies the settlement asset for a product.
type Currency string

const (
	CurrencyNative Currency = "NATIVE"
	CurrencyStable Currency = "STABLE"
)

// RateLimit bounds calls per fixed window of PeriodSeconds for a negotiated
// product.
type RateLimit struct {
	Calls          int `json:"calls"`
	PeriodSeconds  int `json:"periodSeconds"`
}

// SLA describes the service-level terms offered alongside a product.
type SLA struct {
	Uptime       string `json:"uptime"`
	ResponseTime string `json:"responseTime"`
}

// Product is a sellable capability a producer advertises. Products are
// created by a producer at startup, mutated only by that producer, and are
// never destroyed — they may only be marked deprecated.
type Product struct {
	ProductID        string    `json:"productId"`
	Version          string    `json:"version"`
	HumanName        string    `json:"humanName"`
	Description      string    `json:"description"`
	ProducerAgentID  string    `json:"producerAgentId"`
	EndpointPath     string    `json:"endpointPath"`
	DefaultPrice     string    `json:"defaultPrice"` // nonnegative decimal, smallest-unit integer string
	Currency         Currency  `json:"currency"`
	Network          string    `json:"network"`
	RateLimit        RateLimit `json:"rateLimit"`
	SLA              SLA       `json:"sla"`
	Deprecated       bool      `json:"deprecated"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Deprecate marks the product deprecated in place; products are never deleted.
func (p *Product) Deprecate() {
	p.Deprecated = true
	p.UpdatedAt = time.Now()
}
