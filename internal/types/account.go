// Package types holds the wire types shared by every component of the
// reputation marketplace: accounts, products, negotiation messages, payment
// structures, scores, tasks and audit events.
package types

import (
	"errors"
	"regexp"
)

// AccountId is an opaque dotted-integer identifier for an account on the
// distributed ledger, e.g. "0.0.7304745".
type AccountId string

var accountIdPattern = regexp.MustCompile(`^0\.0\.[0-9]+$`)

// ErrInvalidAccountId is returned whenever a candidate string does not match
// the AccountId shape.
var ErrInvalidAccountId = errors.New("invalid account id")

// ValidateAccountId reports whether s matches the AccountId shape.
func ValidateAccountId(s string) bool {
	return accountIdPattern.MatchString(s)
}

// ParseAccountId validates and wraps s as an AccountId.
func ParseAccountId(s string) (AccountId, error) {
	if !ValidateAccountId(s) {
		return "", ErrInvalidAccountId
	}
	return AccountId(s), nil
}

func (a AccountId) String() string { return string(a) }
