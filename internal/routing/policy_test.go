package routing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/routing"
)

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers map[string]domain.Provider
	order     []string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{providers: make(map[string]domain.Provider)}
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers[provider.Name()] = provider
	m.order = append(m.order, provider.Name())
	return nil
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	provider, exists := m.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}
	return provider, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	return append([]string(nil), m.order...), nil
}

func (m *mockRegistry) Available(_ context.Context) []domain.ProviderDescriptor {
	descs := make([]domain.ProviderDescriptor, 0, len(m.order))
	for _, name := range m.order {
		if provider := m.providers[name]; provider.Available() {
			descs = append(descs, provider.Descriptor())
		}
	}
	return descs
}

// mockProvider is a mock implementation of Provider for testing.
type mockProvider struct {
	desc      domain.ProviderDescriptor
	available bool
}

func (m *mockProvider) Complete(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	return nil, nil
}

func (m *mockProvider) Name() string                        { return m.desc.ID }
func (m *mockProvider) Available() bool                     { return m.available }
func (m *mockProvider) Descriptor() domain.ProviderDescriptor { return m.desc }

func premiumDesc() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               "openai",
		ContextCharLimit: 512_000,
		CostTier:         domain.CostTierPremium,
		LatencyClass:     domain.LatencyMedium,
	}
}

func standardDesc() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               "gemini",
		ContextCharLimit: 4_000_000,
		CostTier:         domain.CostTierStandard,
		LatencyClass:     domain.LatencyMedium,
	}
}

func baselineDesc() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               "naive",
		ContextCharLimit: 1 << 31,
		CostTier:         domain.CostTierFree,
		LatencyClass:     domain.LatencyFast,
	}
}

func fullRegistry() *mockRegistry {
	registry := newMockRegistry()
	ctx := context.Background()
	registry.Register(ctx, &mockProvider{desc: premiumDesc(), available: true})
	registry.Register(ctx, &mockProvider{desc: standardDesc(), available: true})
	registry.Register(ctx, &mockProvider{desc: baselineDesc(), available: true})
	return registry
}

func chainIDs(decision *domain.RoutingDecision) []string {
	ids := make([]string, 0, len(decision.Chain))
	for _, desc := range decision.Chain {
		ids = append(ids, desc.ID)
	}
	return ids
}

func TestPolicy_BuildChain(t *testing.T) {
	ctx := context.Background()

	t.Run("should return empty chain when no providers are available", func(t *testing.T) {
		policy := routing.NewPolicy(newMockRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureSummary, nil, 100, "")

		require.Empty(t, decision.Chain)
	})

	t.Run("should never return empty chain when a provider is available", func(t *testing.T) {
		registry := newMockRegistry()
		registry.Register(ctx, &mockProvider{desc: baselineDesc(), available: true})
		policy := routing.NewPolicy(registry, routing.DefaultConfig())

		for _, feature := range []domain.Feature{
			domain.FeatureStudyCards, domain.FeatureSummary, domain.FeatureOutline,
			domain.FeatureDiagram, domain.FeatureQuiz,
		} {
			decision := policy.BuildChain(ctx, feature, nil, 5_000, "")
			require.NotEmpty(t, decision.Chain, "feature %s", feature)
		}
	})

	t.Run("should honor an available explicit override exactly", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureSummary, nil, 100, "gemini")

		require.Equal(t, []string{"gemini"}, chainIDs(decision))
	})

	t.Run("should ignore an unavailable override", func(t *testing.T) {
		registry := newMockRegistry()
		registry.Register(ctx, &mockProvider{desc: premiumDesc(), available: false})
		registry.Register(ctx, &mockProvider{desc: standardDesc(), available: true})
		registry.Register(ctx, &mockProvider{desc: baselineDesc(), available: true})
		policy := routing.NewPolicy(registry, routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureSummary, nil, 100, "openai")

		require.NotContains(t, chainIDs(decision), "openai")
		require.NotEmpty(t, decision.Chain)
	})

	t.Run("should route small inputs to the cheapest remote tier first", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureStudyCards, nil, 5_000, "")

		require.Equal(t, []string{"gemini", "openai", "naive"}, chainIDs(decision))
	})

	t.Run("should route very large inputs to the widest context regardless of feature", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureDiagram, nil, 900_000, "")

		// The premium provider cannot fit 900k characters, so the chain
		// starts at the large-context provider.
		require.Equal(t, []string{"gemini", "naive"}, chainIDs(decision))
	})

	t.Run("should pin diagram generation to the premium tier on small inputs", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureDiagram, nil, 5_000, "")

		require.Equal(t, "openai", decision.Chain[0].ID)
	})

	t.Run("should always end the chain with the baseline provider", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureQuiz, nil, 50_000, "")

		ids := chainIDs(decision)
		require.Equal(t, "naive", ids[len(ids)-1])
	})

	t.Run("should exclude the baseline from adjudication chains", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())

		decision := policy.BuildChain(ctx, domain.FeatureStructureAdjudication, nil, 1_000, "")

		require.NotContains(t, chainIDs(decision), "naive")
		require.NotEmpty(t, decision.Chain)
	})

	t.Run("should bump a small but very complex input to the medium tier", func(t *testing.T) {
		policy := routing.NewPolicy(fullRegistry(), routing.DefaultConfig())
		profile := &domain.ComplexityProfile{Bucket: domain.BucketVeryComplex}

		decision := policy.BuildChain(ctx, domain.FeatureSummary, profile, 5_000, "")

		// Medium tier prefers the strongest provider.
		require.Equal(t, "openai", decision.Chain[0].ID)
	})
}
