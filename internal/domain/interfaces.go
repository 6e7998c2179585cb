package domain

import (
	"context"
	"time"
)

// Provider represents any text-generation backend.
type Provider interface {
	// Complete sends a completion request and returns the raw response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider can currently serve calls
	// (typically: its credential is configured).
	Available() bool

	// Descriptor returns the provider's static routing characteristics.
	Descriptor() ProviderDescriptor
}

// ProviderRegistry manages the fixed set of registered providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (Provider, error)

	// List returns the names of all registered providers.
	List(ctx context.Context) ([]string, error)

	// Available returns descriptors of providers that can serve calls now.
	Available(ctx context.Context) []ProviderDescriptor
}

// Router produces the ordered fallback chain for a request.
type Router interface {
	// BuildChain selects providers for a feature given the input profile,
	// raw input length, and an optional explicit provider override.
	BuildChain(ctx context.Context, feature Feature, profile *ComplexityProfile, inputLen int, override string) *RoutingDecision
}

// LedgerEntry is the accumulated usage for one (provider, feature) pair.
type LedgerEntry struct {
	Provider    string  `json:"provider"`
	Feature     Feature `json:"feature"`
	Requests    int64   `json:"requests"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	InputUnits  int64   `json:"input_units"`
	OutputUnits int64   `json:"output_units"`
}

// UsageLedger accumulates per-attempt cost/size metrics. Appends must be
// safe under concurrent requests; reads are eventually consistent.
type UsageLedger interface {
	// Record appends one attempt's usage, regardless of outcome.
	Record(ctx context.Context, feature Feature, attempt Attempt, usage Usage)

	// Snapshot returns a copy of all accumulated entries.
	Snapshot() []LedgerEntry
}

// ResultCache stores terminal generation results keyed by request
// identity. Implementations return ErrCacheMiss when absent.
type ResultCache interface {
	Get(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
	Set(ctx context.Context, req *GenerationRequest, result *GenerationResult, ttl time.Duration) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
