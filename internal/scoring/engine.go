// Package scoring implements the pure, deterministic reputation scoring
// engine: a function from an analytics bundle to a bounded score, component
// breakdown, and risk flags. No I/O, no randomness.
package scoring

import (
	"math"
	"time"

	"github.com/trustmesh/agentmarket/internal/analytics"
	"github.com/trustmesh/agentmarket/internal/types"
)

const day = 24 * time.Hour

// Config holds the externally-configured topic sets and malicious-actor
// set that the source leaves abstract (spec §9 Open Question c).
type Config struct {
	TrustedTopics    map[string]bool
	SuspiciousTopics map[string]bool
	MaliciousAccounts map[string]bool
}

// Bundle is the full set of analytics inputs to Compute. A false *Available
// flag marks a component that failed upstream: it contributes 0 and is listed
// in the result's Partial set. A nil slice with its flag set is empty data.
type Bundle struct {
	AccountInfo   *analytics.AccountInfo
	Transactions  []analytics.Transaction
	TokenBalances []analytics.TokenBalance
	TopicMessages []analytics.TopicMessage

	AccountInfoAvailable   bool
	TransactionsAvailable  bool
	TokenBalancesAvailable bool
	TopicMessagesAvailable bool

	// AnyStale is true when any input came from a stale cache fallback.
	AnyStale bool
}

// Compute is the pure scoring function. now is the reference time used for
// all age and volatility calculations; callers pass max(timestamps seen) or
// wall-clock time (the producer's score handler passes wall-clock time).
func Compute(account types.AccountId, bundle Bundle, cfg Config, now time.Time) types.TrustScore {
	var partial []string
	components := types.ScoreComponents{}
	var riskFlags []types.RiskFlag

	if bundle.AccountInfoAvailable && bundle.AccountInfo != nil {
		components.AccountAge = accountAgeScore(*bundle.AccountInfo, now)
	} else {
		partial = append(partial, "accountAge")
	}

	if bundle.TransactionsAvailable {
		components.Diversity = diversityScore(bundle.Transactions)
		components.Volatility = volatilityScore(bundle.Transactions, now)
	} else {
		partial = append(partial, "diversity", "volatility")
	}

	if bundle.TokenBalancesAvailable {
		components.TokenHealth = tokenHealthScore(bundle.TokenBalances)
	} else {
		partial = append(partial, "tokenHealth")
	}

	if bundle.TopicMessagesAvailable {
		components.HcsQuality = hcsQualityScore(bundle.TopicMessages, cfg)
	} else {
		partial = append(partial, "hcsQuality")
	}

	if bundle.AccountInfoAvailable && bundle.TransactionsAvailable {
		riskFlags, components.RiskPenalty = riskAssessment(*bundle.AccountInfo, bundle.Transactions, cfg, now)
	} else {
		partial = append(partial, "riskPenalty")
	}

	raw := components.Sum()
	score := types.Clamp(raw, 0, 100)

	return types.TrustScore{
		Account:    account,
		Score:      score,
		Components: components,
		RiskFlags:  riskFlags,
		Timestamp:  now.UnixMilli(),
		Stale:      bundle.AnyStale,
		Partial:    partial,
	}
}

func ageMonths(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Hours() / 24 / 30
}

// accountAgeScore: >6mo -> 20, [1,6]mo -> 10, else 3. Boundaries favor the
// upper bin (exactly 6 months scores 20, exactly 1 month scores 10).
func accountAgeScore(info analytics.AccountInfo, now time.Time) int {
	months := ageMonths(info.CreatedAt, now)
	switch {
	case months > 6:
		return 20
	case months == 6:
		return 20
	case months >= 1:
		return 10
	default:
		return 3
	}
}

// diversityScore: unique counterparties >=25 -> 20, [10,25) -> 10, else 5.
// Exactly 25 and exactly 10 both land in the upper of their respective bins.
func diversityScore(txs []analytics.Transaction) int {
	seen := make(map[string]bool)
	for _, tx := range txs {
		if tx.Counterparty != "" {
			seen[tx.Counterparty] = true
		}
	}
	u := len(seen)
	switch {
	case u >= 25:
		return 20
	case u >= 10:
		return 10
	default:
		return 5
	}
}

// volatilityScore: coefficient of variation of absolute transfer amounts
// over the trailing 30 days. Low (<0.5) -> 20, Medium ([0.5,1.5)) -> 10,
// High or empty -> 3.
func volatilityScore(txs []analytics.Transaction, now time.Time) int {
	cv, ok := coefficientOfVariation(txs, now)
	if !ok {
		return 3
	}
	switch {
	case cv < 0.5:
		return 20
	case cv < 1.5:
		return 10
	default:
		return 3
	}
}

func coefficientOfVariation(txs []analytics.Transaction, now time.Time) (float64, bool) {
	var amounts []float64
	cutoff := now.Add(-30 * day)
	for _, tx := range txs {
		if tx.Timestamp.Before(cutoff) {
			continue
		}
		amt := float64(tx.Amount)
		if amt < 0 {
			amt = -amt
		}
		amounts = append(amounts, amt)
	}
	if len(amounts) == 0 {
		return 0, false
	}

	mean := 0.0
	for _, a := range amounts {
		mean += a
	}
	mean /= float64(len(amounts))
	if mean == 0 {
		return 0, false
	}

	variance := 0.0
	for _, a := range amounts {
		variance += (a - mean) * (a - mean)
	}
	variance /= float64(len(amounts))
	stddev := math.Sqrt(variance)

	return stddev / mean, true
}

// tokenHealthScore: holder of >=1 token, and no single token exceeds 50% of
// the combined balance (weighted by balance alone, ignoring decimals) -> 10;
// else 0.
func tokenHealthScore(balances []analytics.TokenBalance) int {
	if len(balances) == 0 {
		return 0
	}
	var total uint64
	var max uint64
	for _, b := range balances {
		total += b.Balance
		if b.Balance > max {
			max = b.Balance
		}
	}
	if total == 0 {
		return 0
	}
	if float64(max)/float64(total) > 0.5 {
		return 0
	}
	return 10
}

// hcsQualityScore: +10 for any message on a trusted topic, -10 for any on a
// suspicious topic; both present cancel to 0; neither present is 0.
func hcsQualityScore(messages []analytics.TopicMessage, cfg Config) int {
	trusted := false
	suspicious := false
	for _, m := range messages {
		if cfg.TrustedTopics[m.TopicID] {
			trusted = true
		}
		if cfg.SuspiciousTopics[m.TopicID] {
			suspicious = true
		}
	}
	switch {
	case trusted && suspicious:
		return 0
	case trusted:
		return 10
	case suspicious:
		return -10
	default:
		return 0
	}
}

// riskAssessment detects the configured risk conditions, returning the
// ordered RiskFlag set and the clamped riskPenalty component.
func riskAssessment(info analytics.AccountInfo, txs []analytics.Transaction, cfg Config, now time.Time) ([]types.RiskFlag, int) {
	var flags []types.RiskFlag
	penalty := 0

	if flag, deduct, ok := detectRapidOutflow(txs, now); ok {
		flags = append(flags, flag)
		penalty += deduct
	}

	if flag, deduct, ok := detectNewAccountLargeTransfer(info, txs, now); ok {
		flags = append(flags, flag)
		penalty += deduct
	}

	if flag, deduct, ok := detectMaliciousInteraction(txs, cfg, now); ok {
		flags = append(flags, flag)
		penalty += deduct
	}

	return flags, types.Clamp(penalty, -20, 0)
}

func detectRapidOutflow(txs []analytics.Transaction, now time.Time) (types.RiskFlag, int, bool) {
	maxBalance := maxObservedBalance(txs)
	if maxBalance <= 0 {
		return types.RiskFlag{}, 0, false
	}

	for i := range txs {
		windowEnd := txs[i].Timestamp.Add(time.Hour)
		var outflow float64
		for _, tx := range txs {
			if tx.Amount >= 0 {
				continue
			}
			if tx.Timestamp.Before(txs[i].Timestamp) || tx.Timestamp.After(windowEnd) {
				continue
			}
			outflow += -float64(tx.Amount)
		}
		if outflow > 0.5*maxBalance {
			return types.RiskFlag{
				Type:        "rapid_outflow",
				Severity:    types.SeverityHigh,
				Description: "outflows in a one-hour window exceeded 50% of the account's observed maximum balance",
				DetectedAt:  now.UnixMilli(),
			}, -10, true
		}
	}
	return types.RiskFlag{}, 0, false
}

// maxObservedBalance reconstructs a running balance from signed transaction
// amounts and returns the maximum observed. With no reliable starting
// balance, this approximates magnitude using the running sum of signed
// amounts from zero — sufficient to gauge relative outflow scale.
func maxObservedBalance(txs []analytics.Transaction) float64 {
	sorted := append([]analytics.Transaction(nil), txs...)
	sortByTime(sorted)

	running := 0.0
	max := 0.0
	for _, tx := range sorted {
		running += float64(tx.Amount)
		if running > max {
			max = running
		}
	}
	return max
}

func sortByTime(txs []analytics.Transaction) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && txs[j].Timestamp.Before(txs[j-1].Timestamp); j-- {
			txs[j], txs[j-1] = txs[j-1], txs[j]
		}
	}
}

func detectNewAccountLargeTransfer(info analytics.AccountInfo, txs []analytics.Transaction, now time.Time) (types.RiskFlag, int, bool) {
	if ageMonths(info.CreatedAt, now) >= 1 {
		return types.RiskFlag{}, 0, false
	}
	if len(txs) == 0 {
		return types.RiskFlag{}, 0, false
	}

	magnitudes := make([]float64, 0, len(txs))
	for _, tx := range txs {
		m := float64(tx.Amount)
		if m < 0 {
			m = -m
		}
		magnitudes = append(magnitudes, m)
	}
	med := median(magnitudes)
	if med == 0 {
		return types.RiskFlag{}, 0, false
	}

	for _, m := range magnitudes {
		if m > 10*med {
			return types.RiskFlag{
				Type:        "new_account_large_transfer",
				Severity:    types.SeverityMedium,
				Description: "account under one month old made a transfer over 10x the median observed magnitude",
				DetectedAt:  now.UnixMilli(),
			}, -5, true
		}
	}
	return types.RiskFlag{}, 0, false
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func detectMaliciousInteraction(txs []analytics.Transaction, cfg Config, now time.Time) (types.RiskFlag, int, bool) {
	for _, tx := range txs {
		if cfg.MaliciousAccounts[tx.Counterparty] {
			return types.RiskFlag{
				Type:        "malicious_interaction",
				Severity:    types.SeverityHigh,
				Description: "account transacted with a counterparty on the configured malicious set",
				DetectedAt:  now.UnixMilli(),
			}, -10, true
		}
	}
	return types.RiskFlag{}, 0, false
}
