package types

// Severity is the urgency of a detected RiskFlag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFlag records one detected risk condition and the penalty it implies.
type RiskFlag struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	DetectedAt  int64    `json:"detectedAt"` // epoch-ms
}

// ScoreComponents is the bounded, named breakdown that sums to the raw score
// before clamping.
type ScoreComponents struct {
	AccountAge  int `json:"accountAge"`  // [0,20]
	Diversity   int `json:"diversity"`   // [0,20]
	Volatility  int `json:"volatility"`  // [0,20]
	TokenHealth int `json:"tokenHealth"` // [0,10]
	HcsQuality  int `json:"hcsQuality"`  // [-10,10]
	RiskPenalty int `json:"riskPenalty"` // [-20,0]
}

// Sum returns the raw, pre-clamp total of all components.
func (c ScoreComponents) Sum() int {
	return c.AccountAge + c.Diversity + c.Volatility + c.TokenHealth + c.HcsQuality + c.RiskPenalty
}

// TrustScore is the final, bounded reputation score for an account.
type TrustScore struct {
	Account    AccountId       `json:"account"`
	Score      int             `json:"score"` // [0,100]
	Components ScoreComponents `json:"components"`
	RiskFlags  []RiskFlag      `json:"riskFlags"`
	Timestamp  int64           `json:"timestamp"` // epoch-ms, computation time
	Stale      bool            `json:"stale,omitempty"`
	Partial    []string        `json:"partial,omitempty"` // names of components that used degraded/missing input
}

// ScoreDelivery carries the context a SCORE_DELIVERED audit event records
// alongside the task id: who asked, who computed it, which account, the
// resulting score, and the payment that funded it (spec §4.3 step 6).
type ScoreDelivery struct {
	BuyerAgentID    string
	ProducerAgentID string
	AccountID       AccountId
	Score           int
	TransactionID   string
	Amount          string
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
