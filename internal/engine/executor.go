// Package engine walks a routing decision's fallback chain, issuing one
// provider call at a time until one succeeds or the chain is exhausted.
//
// Per provider the state machine is: one call under an attempt-scoped
// timeout; timeout and rate-limit get a single retry on the same provider
// after a short jittered backoff; every other failure advances the chain
// immediately. One Attempt is recorded per provider tried, with in-place
// retries folded into the entry. Cancellation is checked before each
// retry and before advancing, so a caller abort never leaves an attempt
// half-recorded.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/metrics"
	"github.com/davidbz/howl/internal/observability"
)

const (
	// One extra call on the same provider for retryable failures.
	maxSameProviderRetries = 1

	DefaultAttemptTimeout = 60 * time.Second
	DefaultRetryBackoff   = 750 * time.Millisecond
)

// Config holds the engine's timing knobs.
type Config struct {
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// DefaultConfig returns the default timing configuration.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: DefaultAttemptTimeout,
		RetryBackoff:   DefaultRetryBackoff,
	}
}

// NormalizeFunc validates raw provider text into a canonical payload.
// A failure counts as a malformed response from that provider.
type NormalizeFunc func(text string) (domain.Payload, error)

// ExecutionResult is the engine's terminal success value.
type ExecutionResult struct {
	Payload  domain.Payload
	RawText  string
	Provider string
	Attempts []domain.Attempt
	Usage    domain.Usage
}

// Engine executes routing decisions against registered providers.
type Engine struct {
	registry domain.ProviderRegistry
	ledger   domain.UsageLedger
	events   domain.EventPublisher
	cfg      Config
}

// NewEngine creates a new execution engine. ledger and events may be nil.
func NewEngine(registry domain.ProviderRegistry, ledger domain.UsageLedger, events domain.EventPublisher, cfg Config) *Engine {
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Engine{
		registry: registry,
		ledger:   ledger,
		events:   events,
		cfg:      cfg,
	}
}

// Execute walks the chain until one provider yields a normalizable
// response. It returns exactly one of a result or a generation error.
func (e *Engine) Execute(
	ctx context.Context,
	decision *domain.RoutingDecision,
	req *domain.CompletionRequest,
	normalizeFn NormalizeFunc,
) (*ExecutionResult, *domain.GenerationError) {
	if decision == nil || len(decision.Chain) == 0 {
		return nil, &domain.GenerationError{
			Kind:    domain.ErrKindProviderUnavailable,
			Message: "no provider available for this request",
		}
	}

	logger := observability.FromContext(ctx)
	attempts := make([]domain.Attempt, 0, len(decision.Chain))

	for _, desc := range decision.Chain {
		if ctx.Err() != nil {
			return nil, cancelled(attempts)
		}

		result, attempt := e.tryProvider(ctx, desc, req, normalizeFn)
		attempts = append(attempts, attempt)
		e.record(ctx, req.Feature, attempt, result)

		if attempt.Outcome == domain.OutcomeSuccess {
			result.Attempts = attempts
			return result, nil
		}

		logger.Warn("provider attempt failed",
			observability.String("provider", desc.ID),
			observability.String("error_kind", string(attempt.ErrorKind)),
			observability.Int("retries", attempt.Retries),
		)

		if attempt.ErrorKind == domain.ErrKindCancelled {
			return nil, cancelled(attempts)
		}
	}

	return nil, &domain.GenerationError{
		Kind:     domain.ErrKindAllProvidersExhausted,
		Message:  fmt.Sprintf("all %d providers in the chain failed", len(decision.Chain)),
		Attempts: attempts,
	}
}

// tryProvider runs one provider through its per-provider state machine:
// a first call, plus at most one in-place retry on a retryable failure.
// It returns a single folded Attempt with the provider's final outcome.
func (e *Engine) tryProvider(
	ctx context.Context,
	desc domain.ProviderDescriptor,
	req *domain.CompletionRequest,
	normalizeFn NormalizeFunc,
) (*ExecutionResult, domain.Attempt) {
	start := time.Now()
	attempt := domain.Attempt{Provider: desc.ID}

	finalize := func() domain.Attempt {
		attempt.LatencyMs = time.Since(start).Milliseconds()
		return attempt
	}

	provider, err := e.registry.Get(ctx, desc.ID)
	if err != nil {
		attempt.Outcome = domain.OutcomeFatalFailure
		attempt.ErrorKind = domain.ErrKindProviderUnavailable
		attempt.ErrorDetail = err.Error()
		return &ExecutionResult{}, finalize()
	}

	var usage domain.Usage

	for {
		result, callErr := e.callOnce(ctx, provider, req, normalizeFn)
		usage.Add(result.Usage)
		result.Usage = usage

		outcome, kind := domain.Classify(callErr)
		attempt.Outcome = outcome
		attempt.ErrorKind = kind
		if callErr != nil {
			attempt.ErrorDetail = callErr.Error()
		}

		if outcome == domain.OutcomeSuccess {
			return result, finalize()
		}

		if outcome != domain.OutcomeRetryableFailure || attempt.Retries >= maxSameProviderRetries {
			return result, finalize()
		}

		// Cancellation is checked before the retry: an abort during the
		// backoff finalizes the attempt with its last failure.
		select {
		case <-ctx.Done():
			attempt.ErrorKind = domain.ErrKindCancelled
			return result, finalize()
		case <-time.After(jitter(e.cfg.RetryBackoff)):
			attempt.Retries++
		}
	}
}

// callOnce issues a single provider call under the attempt-scoped timeout
// and normalizes its output.
func (e *Engine) callOnce(
	ctx context.Context,
	provider domain.Provider,
	req *domain.CompletionRequest,
	normalizeFn NormalizeFunc,
) (*ExecutionResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	resp, err := provider.Complete(attemptCtx, req)
	if err != nil || resp == nil {
		if err == nil {
			err = fmt.Errorf("%w: empty response", domain.ErrUnavailable)
		}
		return &ExecutionResult{}, err
	}

	result := &ExecutionResult{
		RawText:  resp.Text,
		Provider: provider.Name(),
		Usage:    resp.Usage,
	}

	if normalizeFn != nil {
		payload, normErr := normalizeFn(resp.Text)
		if normErr != nil {
			return result, normErr
		}
		result.Payload = payload
	}

	return result, nil
}

func (e *Engine) record(ctx context.Context, feature domain.Feature, attempt domain.Attempt, result *ExecutionResult) {
	var usage domain.Usage
	if result != nil {
		usage = result.Usage
	}

	if e.ledger != nil {
		e.ledger.Record(ctx, feature, attempt, usage)
	}

	metrics.ObserveAttempt(attempt.Provider, string(feature), string(attempt.Outcome), float64(attempt.LatencyMs)/1000)
	metrics.AddUsage(attempt.Provider, string(feature), usage.InputUnits, usage.OutputUnits)

	if e.events != nil {
		e.events.Publish(ctx, "generation.attempt", map[string]interface{}{
			"provider":   attempt.Provider,
			"feature":    string(feature),
			"outcome":    string(attempt.Outcome),
			"error_kind": string(attempt.ErrorKind),
			"retries":    attempt.Retries,
			"latency_ms": attempt.LatencyMs,
		})
	}
}

func cancelled(attempts []domain.Attempt) *domain.GenerationError {
	return &domain.GenerationError{
		Kind:     domain.ErrKindCancelled,
		Message:  "request cancelled by caller",
		Attempts: attempts,
	}
}

// jitter spreads the fixed backoff uniformly over (0, d] so concurrent
// retries don't synchronize.
func jitter(d time.Duration) time.Duration {
	jittered := time.Duration(rand.Float64() * float64(d))
	if jittered < time.Millisecond {
		jittered = time.Millisecond
	}
	return jittered
}
