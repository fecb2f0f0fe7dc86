package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/agentmarket/internal/analytics"
	"github.com/trustmesh/agentmarket/internal/types"
)

func fullBundle(createdAt time.Time, txs []analytics.Transaction, balances []analytics.TokenBalance, msgs []analytics.TopicMessage) Bundle {
	info := analytics.AccountInfo{CreatedAt: createdAt}
	return Bundle{
		AccountInfo:            &info,
		Transactions:           txs,
		TokenBalances:          balances,
		TopicMessages:          msgs,
		AccountInfoAvailable:   true,
		TransactionsAvailable:  true,
		TokenBalancesAvailable: true,
		TopicMessagesAvailable: true,
	}
}

// TestScoreBounds_Property covers spec §8 property 2 over randomized inputs.
func TestScoreBounds_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	for i := 0; i < 200; i++ {
		bundle := randomBundle(rng, now)
		result := Compute("0.0.1", bundle, Config{}, now)
		require.GreaterOrEqual(t, result.Score, 0)
		require.LessOrEqual(t, result.Score, 100)
	}
}

func randomBundle(rng *rand.Rand, now time.Time) Bundle {
	createdAt := now.Add(-time.Duration(rng.Intn(400)) * day)

	n := rng.Intn(40)
	var txs []analytics.Transaction
	for i := 0; i < n; i++ {
		txs = append(txs, analytics.Transaction{
			Timestamp:    now.Add(-time.Duration(rng.Intn(60)) * day),
			Counterparty: randCounterparty(rng),
			Amount:       int64(rng.Intn(200000) - 100000),
		})
	}

	var balances []analytics.TokenBalance
	for i := 0; i < rng.Intn(5); i++ {
		balances = append(balances, analytics.TokenBalance{TokenID: randCounterparty(rng), Balance: uint64(rng.Intn(100000))})
	}

	var msgs []analytics.TopicMessage
	for i := 0; i < rng.Intn(3); i++ {
		msgs = append(msgs, analytics.TopicMessage{TopicID: randCounterparty(rng), Timestamp: now})
	}

	return fullBundle(createdAt, txs, balances, msgs)
}

func randCounterparty(rng *rand.Rand) string {
	return string(rune('a' + rng.Intn(30)))
}

func TestAccountAge_Monotonicity(t *testing.T) {
	now := time.Now()
	young := fullBundle(now.Add(-15*day), nil, nil, nil)
	old := fullBundle(now.Add(-200*day), nil, nil, nil)

	youngScore := Compute("0.0.1", young, Config{}, now)
	oldScore := Compute("0.0.1", old, Config{}, now)

	assert.GreaterOrEqual(t, oldScore.Components.AccountAge, youngScore.Components.AccountAge)
}

func TestAccountAge_Boundaries(t *testing.T) {
	now := time.Now()
	exactlySixMonths := fullBundle(now.Add(-6*30*day), nil, nil, nil)
	exactlyOneMonth := fullBundle(now.Add(-1*30*day), nil, nil, nil)

	assert.Equal(t, 20, Compute("0.0.1", exactlySixMonths, Config{}, now).Components.AccountAge)
	assert.Equal(t, 10, Compute("0.0.1", exactlyOneMonth, Config{}, now).Components.AccountAge)
}

func TestDiversity_Monotonicity(t *testing.T) {
	now := time.Now()
	few := fullBundle(now, []analytics.Transaction{
		{Counterparty: "a"}, {Counterparty: "b"},
	}, nil, nil)
	many := fullBundle(now, counterpartyTxs(30), nil, nil)

	fewScore := Compute("0.0.1", few, Config{}, now)
	manyScore := Compute("0.0.1", many, Config{}, now)

	assert.GreaterOrEqual(t, manyScore.Components.Diversity, fewScore.Components.Diversity)
}

func counterpartyTxs(n int) []analytics.Transaction {
	var txs []analytics.Transaction
	for i := 0; i < n; i++ {
		txs = append(txs, analytics.Transaction{Counterparty: string(rune('a' + i))})
	}
	return txs
}

func TestDiversity_Boundaries(t *testing.T) {
	now := time.Now()
	exactly25 := fullBundle(now, counterpartyTxs(25), nil, nil)
	exactly10 := fullBundle(now, counterpartyTxs(10), nil, nil)

	assert.Equal(t, 20, Compute("0.0.1", exactly25, Config{}, now).Components.Diversity)
	assert.Equal(t, 10, Compute("0.0.1", exactly10, Config{}, now).Components.Diversity)
}

func TestVolatility_Antitonicity(t *testing.T) {
	now := time.Now()
	low := fullBundle(now, []analytics.Transaction{
		{Timestamp: now, Amount: 100}, {Timestamp: now, Amount: 105}, {Timestamp: now, Amount: 98},
	}, nil, nil)
	high := fullBundle(now, []analytics.Transaction{
		{Timestamp: now, Amount: 1}, {Timestamp: now, Amount: 100000}, {Timestamp: now, Amount: 5},
	}, nil, nil)

	lowScore := Compute("0.0.1", low, Config{}, now)
	highScore := Compute("0.0.1", high, Config{}, now)

	assert.LessOrEqual(t, highScore.Components.Volatility, lowScore.Components.Volatility)
}

func TestRiskPenalty_Bounds_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Now()
	cfg := Config{MaliciousAccounts: map[string]bool{"bad": true}}

	for i := 0; i < 150; i++ {
		bundle := randomBundle(rng, now)
		for idx := range bundle.Transactions {
			if rng.Intn(5) == 0 {
				bundle.Transactions[idx].Counterparty = "bad"
			}
		}
		result := Compute("0.0.1", bundle, cfg, now)
		require.GreaterOrEqual(t, result.Components.RiskPenalty, -20)
		require.LessOrEqual(t, result.Components.RiskPenalty, 0)
	}
}

func TestPartialScore_MissingComponentsContributeZero(t *testing.T) {
	now := time.Now()
	bundle := Bundle{} // every *Available flag false

	result := Compute("0.0.1", bundle, Config{}, now)
	assert.Equal(t, 0, result.Score)
	assert.ElementsMatch(t, []string{"accountAge", "diversity", "volatility", "tokenHealth", "hcsQuality", "riskPenalty"}, result.Partial)
}

func TestHcsQuality_TrustedAndSuspiciousCancel(t *testing.T) {
	now := time.Now()
	cfg := Config{
		TrustedTopics:    map[string]bool{"t1": true},
		SuspiciousTopics: map[string]bool{"t2": true},
	}
	bundle := fullBundle(now, nil, nil, []analytics.TopicMessage{{TopicID: "t1"}, {TopicID: "t2"}})
	result := Compute("0.0.1", bundle, cfg, now)
	assert.Equal(t, 0, result.Components.HcsQuality)
}

func TestTokenHealth_ConcentrationPenalized(t *testing.T) {
	now := time.Now()
	concentrated := fullBundle(now, nil, []analytics.TokenBalance{
		{TokenID: "a", Balance: 900}, {TokenID: "b", Balance: 100},
	}, nil)
	diversified := fullBundle(now, nil, []analytics.TokenBalance{
		{TokenID: "a", Balance: 500}, {TokenID: "b", Balance: 500},
	}, nil)

	assert.Equal(t, 0, Compute("0.0.1", concentrated, Config{}, now).Components.TokenHealth)
	assert.Equal(t, 10, Compute("0.0.1", diversified, Config{}, now).Components.TokenHealth)
}

func TestMaliciousInteraction_Flagged(t *testing.T) {
	now := time.Now()
	cfg := Config{MaliciousAccounts: map[string]bool{"evil": true}}
	bundle := fullBundle(now, []analytics.Transaction{{Counterparty: "evil", Amount: 10}}, nil, nil)

	result := Compute("0.0.1", bundle, cfg, now)
	require.Len(t, result.RiskFlags, 1)
	assert.Equal(t, "malicious_interaction", result.RiskFlags[0].Type)
	assert.Equal(t, types.SeverityHigh, result.RiskFlags[0].Severity)
	assert.Equal(t, -10, result.Components.RiskPenalty)
}
