// Package registry holds the fixed set of provider adapters. Providers
// are registered once at process start; the registry is read-only
// afterwards and shared by all concurrent requests.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbz/howl/internal/domain"
)

// Registry implements the domain.ProviderRegistry interface.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.Provider
	order     []string
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(_ context.Context, provider domain.Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	r.order = append(r.order, name)

	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	if providerName == "" {
		return nil, errors.New("provider name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}

	return provider, nil
}

// List returns all registered provider names in registration order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...), nil
}

// Available returns descriptors of providers that can serve calls now,
// in registration order.
func (r *Registry) Available(_ context.Context) []domain.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]domain.ProviderDescriptor, 0, len(r.order))
	for _, name := range r.order {
		if provider := r.providers[name]; provider.Available() {
			descs = append(descs, provider.Descriptor())
		}
	}

	return descs
}
