package orchestrator_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/characterize"
	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/engine"
	"github.com/davidbz/howl/internal/ledger"
	"github.com/davidbz/howl/internal/normalize"
	"github.com/davidbz/howl/internal/orchestrator"
	"github.com/davidbz/howl/internal/routing"
	"github.com/davidbz/howl/internal/structure"
)

const summaryJSON = `{"summary": "Cells are the basic unit of life.", "key_points": ["cells"]}`

// stubProvider returns a fixed text for every completion and records the
// prompts it received.
type stubProvider struct {
	desc    domain.ProviderDescriptor
	text    string
	prompts []string
}

func (s *stubProvider) Complete(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	s.prompts = append(s.prompts, req.Prompt)
	return &domain.CompletionResponse{
		Provider:   s.desc.ID,
		Text:       s.text,
		Usage:      domain.Usage{InputUnits: len(req.Prompt), OutputUnits: len(s.text)},
		FinishTime: time.Now(),
	}, nil
}

func (s *stubProvider) Name() string                          { return s.desc.ID }
func (s *stubProvider) Available() bool                       { return true }
func (s *stubProvider) Descriptor() domain.ProviderDescriptor { return s.desc }

type mockRegistry struct {
	providers map[string]domain.Provider
	order     []string
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	registry := &mockRegistry{providers: make(map[string]domain.Provider)}
	for _, provider := range providers {
		registry.providers[provider.Name()] = provider
		registry.order = append(registry.order, provider.Name())
	}
	return registry
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

// mockCache is an in-memory ResultCache keyed by input text.
type mockCache struct {
	entries map[string]*domain.GenerationResult
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.GenerationResult)}
}

func (m *mockCache) Get(_ context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	result, ok := m.entries[req.InputText]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	copied := *result
	copied.Cached = true
	return &copied, nil
}

func (m *mockCache) Set(_ context.Context, req *domain.GenerationRequest, result *domain.GenerationResult, _ time.Duration) error {
	m.entries[req.InputText] = result
	m.sets++
	return nil
}

func standardDesc() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               "gemini",
		ContextCharLimit: 4_000_000,
		CostTier:         domain.CostTierStandard,
		LatencyClass:     domain.LatencyMedium,
	}
}

func newOrchestrator(registry domain.ProviderRegistry, cache domain.ResultCache) *orchestrator.Orchestrator {
	usage := ledger.NewLedger()
	normalizer := normalize.NewNormalizer()
	policy := routing.NewPolicy(registry, routing.DefaultConfig())
	eng := engine.NewEngine(registry, usage, nil, engine.Config{
		AttemptTimeout: 200 * time.Millisecond,
		RetryBackoff:   5 * time.Millisecond,
	})
	completer := orchestrator.NewChainCompleter(policy, eng)
	scorer := structure.NewScorer(completer, normalizer, nil, structure.DefaultConfig())

	return orchestrator.NewOrchestrator(
		characterize.NewCharacterizer(),
		scorer,
		policy,
		eng,
		normalizer,
		cache,
		usage,
		orchestrator.DefaultConfig(),
	)
}

func TestOrchestrator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("should fail with provider_unavailable and no attempts when zero providers exist", func(t *testing.T) {
		svc := newOrchestrator(newMockRegistry(), nil)

		result, genErr := svc.Generate(ctx, &domain.GenerationRequest{
			Feature:   domain.FeatureSummary,
			InputText: "some text",
		})

		require.Nil(t, result)
		require.NotNil(t, genErr)
		require.Equal(t, domain.ErrKindProviderUnavailable, genErr.Kind)
		require.Empty(t, genErr.Attempts)
	})

	t.Run("should reject an unknown feature", func(t *testing.T) {
		svc := newOrchestrator(newMockRegistry(), nil)

		_, genErr := svc.Generate(ctx, &domain.GenerationRequest{
			Feature:   "poetry",
			InputText: "some text",
		})

		require.NotNil(t, genErr)
		require.Equal(t, domain.ErrKindValidation, genErr.Kind)
	})

	t.Run("should reject empty input text", func(t *testing.T) {
		svc := newOrchestrator(newMockRegistry(), nil)

		_, genErr := svc.Generate(ctx, &domain.GenerationRequest{Feature: domain.FeatureSummary})

		require.NotNil(t, genErr)
		require.Equal(t, domain.ErrKindValidation, genErr.Kind)
	})

	t.Run("should return a normalized payload from the first successful provider", func(t *testing.T) {
		provider := &stubProvider{desc: standardDesc(), text: summaryJSON}
		svc := newOrchestrator(newMockRegistry(provider), nil)

		result, genErr := svc.Generate(ctx, &domain.GenerationRequest{
			Feature:   domain.FeatureSummary,
			InputText: "Cells are the basic unit of life. They divide by mitosis.",
		})

		require.Nil(t, genErr)
		require.Equal(t, "gemini", result.Provider)
		require.False(t, result.Cached)
		require.Len(t, result.Attempts, 1)

		summary := result.Payload.(domain.Summary)
		require.Equal(t, "Cells are the basic unit of life.", summary.Summary)
	})

	t.Run("should honor an explicit shape hint in the rendered prompt", func(t *testing.T) {
		provider := &stubProvider{desc: standardDesc(), text: `{"cards": [{"front": "q", "back": "a"}]}`}
		svc := newOrchestrator(newMockRegistry(provider), nil)

		_, genErr := svc.Generate(ctx, &domain.GenerationRequest{
			Feature:   domain.FeatureStudyCards,
			InputText: "Cells are the basic unit of life.",
			Options: domain.GenerationOptions{
				Shape: &domain.ShapeHint{NodeCount: 12, Depth: 3},
			},
		})

		require.Nil(t, genErr)
		require.Len(t, provider.prompts, 1)
		require.Contains(t, provider.prompts[0], "Create 12 study cards")
	})

	t.Run("should store successful results in the cache and serve repeats from it", func(t *testing.T) {
		provider := &stubProvider{desc: standardDesc(), text: summaryJSON}
		cache := newMockCache()
		svc := newOrchestrator(newMockRegistry(provider), cache)

		req := &domain.GenerationRequest{
			Feature:   domain.FeatureSummary,
			InputText: "Cells are the basic unit of life.",
		}

		first, genErr := svc.Generate(ctx, req)
		require.Nil(t, genErr)
		require.False(t, first.Cached)
		require.Equal(t, 1, cache.sets)

		second, genErr := svc.Generate(ctx, req)
		require.Nil(t, genErr)
		require.True(t, second.Cached)
		require.Len(t, provider.prompts, 1, "second request must not reach the provider")
	})

	t.Run("should surface chain exhaustion with the full attempt log", func(t *testing.T) {
		bad := &stubProvider{desc: standardDesc(), text: "not json at all"}
		svc := newOrchestrator(newMockRegistry(bad), nil)

		result, genErr := svc.Generate(ctx, &domain.GenerationRequest{
			Feature:   domain.FeatureSummary,
			InputText: "some text",
		})

		require.Nil(t, result)
		require.Equal(t, domain.ErrKindAllProvidersExhausted, genErr.Kind)
		require.Len(t, genErr.Attempts, 1)
		require.Equal(t, domain.ErrKindProviderMalformedResponse, genErr.Attempts[0].ErrorKind)
	})
}

func TestOrchestrator_GenerateChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("should generate one result per chunk in order", func(t *testing.T) {
		provider := &stubProvider{desc: standardDesc(), text: summaryJSON}
		svc := newOrchestrator(newMockRegistry(provider), nil)

		chunks := []string{"Chapter one text.", "Chapter two text.", "Chapter three text."}
		results, err := svc.GenerateChunks(ctx, domain.FeatureSummary, chunks, domain.GenerationOptions{})

		require.NoError(t, err)
		require.Len(t, results, len(chunks))
		for i, result := range results {
			require.NotNil(t, result, "chunk %d", i)
			require.Equal(t, domain.FeatureSummary, result.Feature)
		}
		require.Len(t, provider.prompts, len(chunks))
	})

	t.Run("should fail the batch when a chunk cannot be generated", func(t *testing.T) {
		svc := newOrchestrator(newMockRegistry(), nil)

		_, err := svc.GenerateChunks(ctx, domain.FeatureSummary, []string{"a", "b"}, domain.GenerationOptions{})

		require.Error(t, err)
		require.Contains(t, err.Error(), "provider_unavailable")
	})
}

func TestOrchestrator_AnalyzeStructure(t *testing.T) {
	t.Run("should adjudicate close calls through the provider chain", func(t *testing.T) {
		provider := &stubProvider{
			desc: standardDesc(),
			text: `{"recommended": "toc", "reasoning": "chapter list maps directly to navigation"}`,
		}
		svc := newOrchestrator(newMockRegistry(provider), nil)

		analysis := svc.AnalyzeStructure(context.Background(), []domain.StructureCandidate{
			{Type: domain.StructureTOC, Detected: true, ItemCount: 20, MaxDepth: 2},
			{Type: domain.StructureBookmarks, Detected: true, ItemCount: 10, MaxDepth: 2},
		})

		require.True(t, analysis.Adjudicated)
		require.Equal(t, domain.StructureTOC, analysis.Recommended)
		require.Len(t, provider.prompts, 1)
		require.True(t, strings.Contains(provider.prompts[0], "toc"))
	})
}
