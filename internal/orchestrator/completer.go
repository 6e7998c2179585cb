package orchestrator

import (
	"context"
	"time"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/engine"
)

// ChainCompleter adapts the routing policy and execution engine into the
// single-call Completer surface the structure scorer needs. Adjudication
// requests route like any other feature, minus the baseline provider.
type ChainCompleter struct {
	router domain.Router
	engine *engine.Engine
}

// NewChainCompleter creates a chain-backed completer.
func NewChainCompleter(router domain.Router, eng *engine.Engine) *ChainCompleter {
	return &ChainCompleter{router: router, engine: eng}
}

// Complete routes and executes one completion request, returning the raw
// text of the first provider that answers.
func (c *ChainCompleter) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	decision := c.router.BuildChain(ctx, req.Feature, nil, len(req.Prompt), "")

	result, execErr := c.engine.Execute(ctx, decision, req, nil)
	if execErr != nil {
		return nil, execErr
	}

	return &domain.CompletionResponse{
		Provider:   result.Provider,
		Text:       result.RawText,
		Usage:      result.Usage,
		FinishTime: time.Now(),
	}, nil
}
