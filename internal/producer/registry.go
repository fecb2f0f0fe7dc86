package producer

import (
	"sync"

	"github.com/trustmesh/agentmarket/internal/types"
)

// ProductRegistry is the producer's exclusively-owned product catalog: a
// small set read on every request and mutated rarely. Reads take a
// snapshot under a read lock so they never observe a torn write (spec §5).
type ProductRegistry struct {
	mu       sync.RWMutex
	products map[string]types.Product
}

// NewProductRegistry builds a registry seeded with the given products.
func NewProductRegistry(products ...types.Product) *ProductRegistry {
	r := &ProductRegistry{products: make(map[string]types.Product, len(products))}
	for _, p := range products {
		r.products[p.ProductID] = p
	}
	return r
}

// Get returns a copy of the product with productID.
func (r *ProductRegistry) Get(productID string) (types.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	return p, ok
}

// ByEndpoint returns a non-deprecated product registered at path, if any.
// When several match, which one is returned is not defined.
func (r *ProductRegistry) ByEndpoint(path string) (types.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.EndpointPath == path && !p.Deprecated {
			return p, true
		}
	}
	return types.Product{}, false
}

// List returns a snapshot of every product.
func (r *ProductRegistry) List() []types.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out
}

// Put adds or replaces a product (startup-time registration only).
func (r *ProductRegistry) Put(p types.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ProductID] = p
}

// Deprecate marks a product deprecated in place; products are never deleted.
func (r *ProductRegistry) Deprecate(productID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[productID]; ok {
		p.Deprecate()
		r.products[productID] = p
	}
}
