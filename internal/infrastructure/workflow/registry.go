package workflow

import (
	"sync"

	"github.com/titledesk/backend/internal/domain/integration"
)

// Registry manages workflow strategy registrations by product type.
// It is populated once at startup and read on every push request.
type Registry struct {
	mu         sync.RWMutex
	strategies map[integration.ProductType]integration.WorkflowStrategy
	order      []integration.ProductType // registration order, drives execution order
}

// NewRegistry creates a new strategy registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[integration.ProductType]integration.WorkflowStrategy),
	}
}

// Register adds a strategy for its product type, replacing any previous
// registration for the same type
func (r *Registry) Register(strategy integration.WorkflowStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	productType := strategy.Type()
	if _, exists := r.strategies[productType]; !exists {
		r.order = append(r.order, productType)
	}
	r.strategies[productType] = strategy
}

// Get returns the strategy registered for a product type
func (r *Registry) Get(productType integration.ProductType) (integration.WorkflowStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, ok := r.strategies[productType]
	return strategy, ok
}

// All returns every registered strategy in registration order
func (r *Registry) All() []integration.WorkflowStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]integration.WorkflowStrategy, 0, len(r.order))
	for _, productType := range r.order {
		result = append(result, r.strategies[productType])
	}
	return result
}
