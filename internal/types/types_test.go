package types

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateAccountId_Property checks property 1 of spec §8: the
// validator accepts a string iff it matches ^0\.0\.[0-9]+$.
func TestValidateAccountId_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			s := fmt.Sprintf("0.0.%d", rng.Intn(1_000_000_000))
			assert.True(t, ValidateAccountId(s), "expected %q to validate", s)
		} else {
			s := randomGarbage(rng)
			if accountIdPattern.MatchString(s) {
				continue // collided with a valid shape, not interesting
			}
			assert.False(t, ValidateAccountId(s), "expected %q to be rejected", s)
		}
	}
}

func randomGarbage(rng *rand.Rand) string {
	choices := []string{
		"abc", "0.0.", "0.1.5", "0.0.-5", "", "0.0.5.6", " 0.0.5", "0.0.5 ",
		"1.0.0", "0.0.0x5",
	}
	return choices[rng.Intn(len(choices))]
}

func TestParseAccountId(t *testing.T) {
	_, err := ParseAccountId("not-an-id")
	require.ErrorIs(t, err, ErrInvalidAccountId)

	id, err := ParseAccountId("0.0.2")
	require.NoError(t, err)
	assert.Equal(t, AccountId("0.0.2"), id)
}

func TestOfferExpiry_Property(t *testing.T) {
	now := time.Now()
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		offer := NewOffer("p1", "100", CurrencyNative, RateLimit{Calls: 10, PeriodSeconds: 60}, SLA{Uptime: "99.9"}, "0.0.99", now)

		driftMs := rng.Int63n(int64(DefaultOfferTTL/time.Millisecond) * 2)
		checkAt := now.Add(time.Duration(driftMs) * time.Millisecond)

		_, err := NewAcceptance(offer, "0.0.5", checkAt)
		if offer.Expired(checkAt) {
			assert.ErrorIs(t, err, ErrOfferExpired)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestEnforceTerms(t *testing.T) {
	offer := Offer{
		Price:     "1000",
		RateLimit: RateLimit{Calls: 5},
		SLA:       SLA{Uptime: "99.9"},
	}

	assert.True(t, EnforceTerms(offer, "1000", 5, "99.9"))
	assert.True(t, EnforceTerms(offer, "500", 3, "100"))
	assert.False(t, EnforceTerms(offer, "1001", 5, "99.9"), "price above offer must fail")
	assert.False(t, EnforceTerms(offer, "1000", 6, "99.9"), "calls above offer must fail")
	assert.False(t, EnforceTerms(offer, "1000", 5, "99.8"), "uptime below offer must fail")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 100))
	assert.Equal(t, 100, Clamp(150, 0, 100))
	assert.Equal(t, 42, Clamp(42, 0, 100))
}

func TestAmountEqual(t *testing.T) {
	assert.True(t, AmountEqual("30000", "30000"))
	assert.False(t, AmountEqual("30000", "29999"))
	assert.False(t, AmountEqual("abc", "30000"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(TaskPending, TaskInProgress))
	assert.True(t, CanTransition(TaskInProgress, TaskCompleted))
	assert.True(t, CanTransition(TaskPending, TaskFailed))
	assert.True(t, CanTransition(TaskPending, TaskPending), "same-state transition is a no-op, not an error")
	assert.False(t, CanTransition(TaskCompleted, TaskInProgress))
	assert.False(t, CanTransition(TaskFailed, TaskCompleted))
}
