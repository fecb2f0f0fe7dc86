package types

import (
	"fmt"
	"math/big"
	"strconv"
)

// AmountEqual compares two smallest-unit integer amount strings for exact
// equality. Amounts are never parsed as floats: a naive float comparison of
// "30000" and "30000.0" masks precision loss on oversized values, so every
// comparison in the payment path goes through math/big.
func AmountEqual(a, b string) bool {
	ai, ok1 := new(big.Int).SetString(a, 10)
	bi, ok2 := new(big.Int).SetString(b, 10)
	if !ok1 || !ok2 {
		return false
	}
	return ai.Cmp(bi) == 0
}

// AmountLess reports whether a < b as smallest-unit integers. Malformed
// input on either side is treated as not-less, so callers comparing a
// request's maxPrice against a product's defaultPrice never reject a
// well-formed price because of an upstream parsing bug masquerading as a
// comparison failure; validation of input shape happens before this call.
func AmountLess(a, b string) bool {
	ai, ok1 := new(big.Int).SetString(a, 10)
	bi, ok2 := new(big.Int).SetString(b, 10)
	if !ok1 || !ok2 {
		return false
	}
	return ai.Cmp(bi) < 0
}

// ValidAmount reports whether s parses as a nonnegative smallest-unit
// integer amount.
func ValidAmount(s string) bool {
	i, ok := new(big.Int).SetString(s, 10)
	return ok && i.Sign() >= 0
}

func parseAmount(s string) (*big.Int, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a valid integer", s)
	}
	return i, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
