package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of orchestrator failures.
type ErrorKind string

const (
	// ErrKindProviderUnavailable means no usable provider (no credential,
	// unauthorized, or transport-level refusal).
	ErrKindProviderUnavailable ErrorKind = "provider_unavailable"

	// ErrKindProviderTimeout means the attempt-scoped deadline elapsed.
	ErrKindProviderTimeout ErrorKind = "provider_timeout"

	// ErrKindProviderRateLimited means the backend signalled throttling.
	ErrKindProviderRateLimited ErrorKind = "provider_rate_limited"

	// ErrKindProviderMalformedResponse means the provider answered but its
	// output could not be normalized into the canonical shape.
	ErrKindProviderMalformedResponse ErrorKind = "provider_malformed_response"

	// ErrKindValidation means a shape mismatch survived the repair pass.
	ErrKindValidation ErrorKind = "validation_error"

	// ErrKindAllProvidersExhausted means the full fallback chain was tried.
	ErrKindAllProvidersExhausted ErrorKind = "all_providers_exhausted"

	// ErrKindCancelled means the caller aborted the request.
	ErrKindCancelled ErrorKind = "cancelled"
)

// Sentinel errors adapters wrap so the engine can classify failures
// without inspecting vendor-specific types.
var (
	ErrTimeout      = errors.New("provider timed out")
	ErrRateLimited  = errors.New("provider rate limited")
	ErrUnauthorized = errors.New("provider rejected credentials")
	ErrUnavailable  = errors.New("provider unavailable")

	// ErrCacheMiss indicates no cached result exists for a request.
	ErrCacheMiss = errors.New("cache miss")
)

// ValidationError reports canonical-shape violations from the normalizer.
type ValidationError struct {
	Feature Feature
	Reason  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Feature, e.Reason)
}

// GenerationError is the terminal failure value of a generation call.
// It always carries the accumulated attempt log and never wraps a raw
// transport error directly.
type GenerationError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Attempts []Attempt `json:"attempts"`
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
}

// Classify maps an attempt error to its outcome and error kind. Timeout
// and rate-limit are the only retryable-in-place conditions.
func Classify(err error) (AttemptOutcome, ErrorKind) {
	var validationErr *ValidationError

	switch {
	case err == nil:
		return OutcomeSuccess, ""
	case errors.Is(err, context.Canceled):
		return OutcomeFatalFailure, ErrKindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeRetryableFailure, ErrKindProviderTimeout
	case errors.Is(err, ErrRateLimited):
		return OutcomeRetryableFailure, ErrKindProviderRateLimited
	case errors.As(err, &validationErr):
		return OutcomeFatalFailure, ErrKindProviderMalformedResponse
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnavailable):
		return OutcomeFatalFailure, ErrKindProviderUnavailable
	default:
		return OutcomeFatalFailure, ErrKindProviderUnavailable
	}
}
