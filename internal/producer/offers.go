package producer

import (
	"sync"
	"time"

	"github.com/trustmesh/agentmarket/internal/types"
)

// OfferStore remembers the Offer most recently synthesized for a
// (buyerAgentId, productId) pair, so a later GET against the scored
// endpoint can charge the negotiated price instead of falling back to the
// product default.
type OfferStore struct {
	mu     sync.RWMutex
	offers map[string]types.Offer
}

// NewOfferStore builds an empty offer store.
func NewOfferStore() *OfferStore {
	return &OfferStore{offers: make(map[string]types.Offer)}
}

// Put records offer for (buyerAgentID, productID).
func (s *OfferStore) Put(buyerAgentID, productID string, offer types.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[bucketKey(buyerAgentID, productID)] = offer
}

// Get returns the offer for (buyerAgentID, productID) if one exists and has
// not expired as of now; expired entries are treated as absent.
func (s *OfferStore) Get(buyerAgentID, productID string, now time.Time) (types.Offer, bool) {
	s.mu.RLock()
	offer, ok := s.offers[bucketKey(buyerAgentID, productID)]
	s.mu.RUnlock()
	if !ok || offer.Expired(now) {
		return types.Offer{}, false
	}
	return offer, true
}
