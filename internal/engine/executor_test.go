package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/engine"
	"github.com/davidbz/howl/internal/normalize"
)

// scriptedProvider returns queued outcomes in order, repeating the last.
type scriptedProvider struct {
	name  string
	steps []func(ctx context.Context) (*domain.CompletionResponse, error)
	calls int
}

func (p *scriptedProvider) Complete(ctx context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	step := p.steps[len(p.steps)-1]
	if p.calls < len(p.steps) {
		step = p.steps[p.calls]
	}
	p.calls++
	return step(ctx)
}

func (p *scriptedProvider) Name() string     { return p.name }
func (p *scriptedProvider) Available() bool  { return true }
func (p *scriptedProvider) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{ID: p.name, ContextCharLimit: 1 << 20, CostTier: domain.CostTierStandard}
}

// mockRegistry is a minimal registry over scripted providers.
type mockRegistry struct {
	providers map[string]domain.Provider
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	m := &mockRegistry{providers: make(map[string]domain.Provider)}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers[provider.Name()] = provider
	return nil
}

func (m *mockRegistry) Get(_ context.Context, name string) (domain.Provider, error) {
	provider, exists := m.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) { return nil, nil }

func (m *mockRegistry) Available(_ context.Context) []domain.ProviderDescriptor { return nil }

// recordingLedger captures every recorded attempt.
type recordingLedger struct {
	mu      sync.Mutex
	records []domain.Attempt
}

func (l *recordingLedger) Record(_ context.Context, _ domain.Feature, attempt domain.Attempt, _ domain.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, attempt)
}

func (l *recordingLedger) Snapshot() []domain.LedgerEntry { return nil }

func succeed(text string) func(ctx context.Context) (*domain.CompletionResponse, error) {
	return func(_ context.Context) (*domain.CompletionResponse, error) {
		return &domain.CompletionResponse{
			Text:  text,
			Usage: domain.Usage{InputUnits: 10, OutputUnits: 5},
		}, nil
	}
}

func fail(err error) func(ctx context.Context) (*domain.CompletionResponse, error) {
	return func(_ context.Context) (*domain.CompletionResponse, error) {
		return nil, err
	}
}

func chainOf(providers ...domain.Provider) *domain.RoutingDecision {
	decision := &domain.RoutingDecision{Reason: "test chain"}
	for _, p := range providers {
		decision.Chain = append(decision.Chain, p.Descriptor())
	}
	return decision
}

func testConfig() engine.Config {
	return engine.Config{
		AttemptTimeout: 200 * time.Millisecond,
		RetryBackoff:   5 * time.Millisecond,
	}
}

func summaryNormalizer(t *testing.T) engine.NormalizeFunc {
	t.Helper()
	n := normalize.NewNormalizer()
	return func(text string) (domain.Payload, error) {
		return n.Parse(domain.FeatureSummary, text)
	}
}

func summaryRequest() *domain.CompletionRequest {
	return &domain.CompletionRequest{Feature: domain.FeatureSummary, Prompt: "summarize"}
}

func TestEngine_Execute(t *testing.T) {
	validJSON := `{"summary": "cells are the unit of life"}`

	t.Run("should succeed on the first provider", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		ledger := &recordingLedger{}
		e := engine.NewEngine(newMockRegistry(primary), ledger, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, "primary", result.Provider)
		require.Len(t, result.Attempts, 1)
		require.Equal(t, domain.OutcomeSuccess, result.Attempts[0].Outcome)
		require.Len(t, ledger.records, 1)
	})

	t.Run("should retry the same provider once on timeout", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){
			fail(domain.ErrTimeout),
			succeed(validJSON),
		}}
		e := engine.NewEngine(newMockRegistry(primary), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, 2, primary.calls)
		require.Len(t, result.Attempts, 1)
		require.Equal(t, 1, result.Attempts[0].Retries)
		require.Equal(t, domain.OutcomeSuccess, result.Attempts[0].Outcome)
	})

	t.Run("should exhaust the chain with one timeout attempt per provider", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){fail(domain.ErrTimeout)}}
		secondary := &scriptedProvider{name: "secondary", steps: []func(context.Context) (*domain.CompletionResponse, error){fail(domain.ErrTimeout)}}
		ledger := &recordingLedger{}
		e := engine.NewEngine(newMockRegistry(primary, secondary), ledger, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary, secondary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, result)
		require.Equal(t, domain.ErrKindAllProvidersExhausted, genErr.Kind)
		require.Len(t, genErr.Attempts, 2)
		for _, attempt := range genErr.Attempts {
			require.Equal(t, domain.ErrKindProviderTimeout, attempt.ErrorKind)
		}
		// One call plus one retry per provider, never more.
		require.Equal(t, 2, primary.calls)
		require.Equal(t, 2, secondary.calls)
		require.Len(t, ledger.records, 2)
	})

	t.Run("should advance immediately on malformed output without retrying", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed("not structured output")}}
		secondary := &scriptedProvider{name: "secondary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		e := engine.NewEngine(newMockRegistry(primary, secondary), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary, secondary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, 1, primary.calls)
		require.Equal(t, "secondary", result.Provider)
		require.Len(t, result.Attempts, 2)
		require.Equal(t, domain.ErrKindProviderMalformedResponse, result.Attempts[0].ErrorKind)
		require.Equal(t, domain.OutcomeFatalFailure, result.Attempts[0].Outcome)
	})

	t.Run("should advance immediately on unauthorized without retrying", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){fail(domain.ErrUnauthorized)}}
		secondary := &scriptedProvider{name: "secondary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		e := engine.NewEngine(newMockRegistry(primary, secondary), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary, secondary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, 1, primary.calls)
		require.Equal(t, domain.ErrKindProviderUnavailable, result.Attempts[0].ErrorKind)
	})

	t.Run("should retry rate limits once then advance", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){fail(domain.ErrRateLimited)}}
		secondary := &scriptedProvider{name: "secondary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		e := engine.NewEngine(newMockRegistry(primary, secondary), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary, secondary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, 2, primary.calls)
		require.Equal(t, domain.ErrKindProviderRateLimited, result.Attempts[0].ErrorKind)
		require.Equal(t, 1, result.Attempts[0].Retries)
	})

	t.Run("should return provider unavailable on an empty chain", func(t *testing.T) {
		e := engine.NewEngine(newMockRegistry(), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), &domain.RoutingDecision{}, summaryRequest(), summaryNormalizer(t))

		require.Nil(t, result)
		require.Equal(t, domain.ErrKindProviderUnavailable, genErr.Kind)
		require.Empty(t, genErr.Attempts)
	})

	t.Run("should return cancelled when the context is already done", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		e := engine.NewEngine(newMockRegistry(primary), nil, nil, testConfig())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, genErr := e.Execute(ctx, chainOf(primary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, result)
		require.Equal(t, domain.ErrKindCancelled, genErr.Kind)
		require.Zero(t, primary.calls)
	})

	t.Run("should halt chain advancement when cancelled mid-flight", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){
			func(_ context.Context) (*domain.CompletionResponse, error) {
				cancel()
				return nil, context.Canceled
			},
		}}
		secondary := &scriptedProvider{name: "secondary", steps: []func(context.Context) (*domain.CompletionResponse, error){succeed(validJSON)}}
		e := engine.NewEngine(newMockRegistry(primary, secondary), nil, nil, testConfig())

		result, genErr := e.Execute(ctx, chainOf(primary, secondary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, result)
		require.Equal(t, domain.ErrKindCancelled, genErr.Kind)
		require.Len(t, genErr.Attempts, 1)
		require.Zero(t, secondary.calls)
	})

	t.Run("should fold retry usage into a single attempt record", func(t *testing.T) {
		primary := &scriptedProvider{name: "primary", steps: []func(context.Context) (*domain.CompletionResponse, error){
			fail(domain.ErrTimeout),
			succeed(validJSON),
		}}
		e := engine.NewEngine(newMockRegistry(primary), nil, nil, testConfig())

		result, genErr := e.Execute(context.Background(), chainOf(primary), summaryRequest(), summaryNormalizer(t))

		require.Nil(t, genErr)
		require.Equal(t, domain.Usage{InputUnits: 10, OutputUnits: 5}, result.Usage)
	})
}
