// Package orchestrator is the top-level service facade: it characterizes
// input, resolves a routing chain, drives the execution engine, and
// consults the result cache around the whole pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davidbz/howl/internal/characterize"
	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/engine"
	"github.com/davidbz/howl/internal/metrics"
	"github.com/davidbz/howl/internal/normalize"
	"github.com/davidbz/howl/internal/observability"
	"github.com/davidbz/howl/internal/structure"
)

const (
	DefaultCacheTTL          = 24 * time.Hour
	DefaultMaxParallelChunks = 4
)

// Config holds the orchestrator's knobs.
type Config struct {
	CacheTTL          time.Duration
	MaxParallelChunks int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:          DefaultCacheTTL,
		MaxParallelChunks: DefaultMaxParallelChunks,
	}
}

// Orchestrator coordinates the full generation pipeline.
type Orchestrator struct {
	characterizer *characterize.Characterizer
	scorer        *structure.Scorer
	router        domain.Router
	engine        *engine.Engine
	normalizer    *normalize.Normalizer
	cache         domain.ResultCache
	ledger        domain.UsageLedger
	cfg           Config
}

// NewOrchestrator creates the service facade. cache may be nil, which
// disables result caching entirely.
func NewOrchestrator(
	characterizer *characterize.Characterizer,
	scorer *structure.Scorer,
	router domain.Router,
	eng *engine.Engine,
	normalizer *normalize.Normalizer,
	cache domain.ResultCache,
	ledger domain.UsageLedger,
	cfg Config,
) *Orchestrator {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxParallelChunks == 0 {
		cfg.MaxParallelChunks = DefaultMaxParallelChunks
	}
	return &Orchestrator{
		characterizer: characterizer,
		scorer:        scorer,
		router:        router,
		engine:        eng,
		normalizer:    normalizer,
		cache:         cache,
		ledger:        ledger,
		cfg:           cfg,
	}
}

// Characterize profiles a source text without generating anything.
func (o *Orchestrator) Characterize(_ context.Context, text string) domain.ComplexityProfile {
	return o.characterizer.Characterize(text)
}

// AnalyzeStructure scores navigational structure candidates.
func (o *Orchestrator) AnalyzeStructure(ctx context.Context, candidates []domain.StructureCandidate) domain.StructureAnalysis {
	return o.scorer.Analyze(ctx, candidates)
}

// UsageSnapshot returns the accumulated per-provider usage entries.
func (o *Orchestrator) UsageSnapshot() []domain.LedgerEntry {
	return o.ledger.Snapshot()
}

// Generate runs one full generation: cache lookup, characterization,
// routing, chain execution, and cache store. Exactly one of the result
// or the error is non-nil.
func (o *Orchestrator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, *domain.GenerationError) {
	logger := observability.FromContext(ctx)

	if !req.Feature.IsValid() {
		return nil, &domain.GenerationError{
			Kind:    domain.ErrKindValidation,
			Message: fmt.Sprintf("unknown feature %q", req.Feature),
		}
	}
	if req.InputText == "" {
		return nil, &domain.GenerationError{
			Kind:    domain.ErrKindValidation,
			Message: "input text is empty",
		}
	}

	if cached := o.lookupCache(ctx, req); cached != nil {
		return cached, nil
	}

	profile := o.characterizer.Characterize(req.InputText)

	shape := profile.RecommendedShape
	if req.Options.Shape != nil {
		shape = *req.Options.Shape
	}

	decision := o.router.BuildChain(ctx, req.Feature, &profile, len(req.InputText), req.Options.ProviderOverride)
	if len(decision.Chain) == 0 {
		return nil, &domain.GenerationError{
			Kind:    domain.ErrKindProviderUnavailable,
			Message: decision.Reason,
		}
	}

	logger.Info("routing decision",
		observability.String("feature", string(req.Feature)),
		observability.String("reason", decision.Reason),
		observability.Int("chain_length", len(decision.Chain)),
		observability.String("bucket", string(profile.Bucket)),
	)

	completion := &domain.CompletionRequest{
		Feature:     req.Feature,
		Prompt:      BuildPrompt(req.Feature, req.InputText, shape),
		SourceText:  req.InputText,
		Temperature: req.Options.Temperature,
	}

	execution, execErr := o.engine.Execute(ctx, decision, completion, func(text string) (domain.Payload, error) {
		return o.normalizer.Parse(req.Feature, text)
	})
	if execErr != nil {
		return nil, execErr
	}

	result := &domain.GenerationResult{
		Feature:  req.Feature,
		Payload:  execution.Payload,
		Provider: execution.Provider,
		Attempts: execution.Attempts,
		Usage:    execution.Usage,
	}

	o.storeCache(ctx, req, result)
	return result, nil
}

// GenerateChunks runs one generation per chunk with bounded parallelism,
// preserving chunk order in the results. The first hard failure cancels
// the remaining chunks.
func (o *Orchestrator) GenerateChunks(ctx context.Context, feature domain.Feature, chunks []string, opts domain.GenerationOptions) ([]*domain.GenerationResult, error) {
	results := make([]*domain.GenerationResult, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.MaxParallelChunks)

	for i, chunk := range chunks {
		group.Go(func() error {
			result, genErr := o.Generate(groupCtx, &domain.GenerationRequest{
				Feature:   feature,
				InputText: chunk,
				Options:   opts,
			})
			if genErr != nil {
				return fmt.Errorf("chunk %d: %w", i, genErr)
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) lookupCache(ctx context.Context, req *domain.GenerationRequest) *domain.GenerationResult {
	if o.cache == nil {
		return nil
	}

	metrics.CacheLookupsTotal.Inc()

	cached, err := o.cache.Get(ctx, req)
	if err != nil {
		if err != domain.ErrCacheMiss {
			observability.FromContext(ctx).Warn("result cache lookup failed", observability.Error(err))
		}
		return nil
	}

	metrics.CacheHitsTotal.Inc()
	return cached
}

// storeCache writes the result through; cache failures never fail the
// request.
func (o *Orchestrator) storeCache(ctx context.Context, req *domain.GenerationRequest, result *domain.GenerationResult) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, req, result, o.cfg.CacheTTL); err != nil {
		observability.FromContext(ctx).Warn("result cache store failed", observability.Error(err))
	}
}
