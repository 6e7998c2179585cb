// Package openai adapts the OpenAI API to the domain.Provider contract
// using the official SDK. All vendor-specific request/response handling
// and error classification lives here.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const (
	providerName = "openai"

	// Roughly 128k tokens expressed in characters.
	contextCharLimit = 512_000
)

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	client    sdk.Client
	model     string
	available bool
}

// NewProvider creates a new OpenAI provider. A missing API key yields a
// registered-but-unavailable provider so routing can skip it without
// special cases.
func NewProvider(config Config) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Provider{
		client:    sdk.NewClient(opts...),
		model:     config.Model,
		available: config.APIKey != "",
	}
}

// Complete sends a completion request and returns the raw response.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if !p.available {
		return nil, fmt.Errorf("%w: no API key configured", domain.ErrUnavailable)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{sdk.UserMessage(req.Prompt)},
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxOutputUnits > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxOutputUnits))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		classified := classify(err)
		logger.Error("OpenAI API call failed", observability.Error(classified))
		return nil, classified
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return &domain.CompletionResponse{
		Provider: providerName,
		Text:     content,
		Usage: domain.Usage{
			InputUnits:  int(resp.Usage.PromptTokens),
			OutputUnits: int(resp.Usage.CompletionTokens),
		},
		FinishTime: time.Now(),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Available reports whether an API key is configured.
func (p *Provider) Available() bool {
	return p.available
}

// Descriptor returns the provider's static routing characteristics.
func (p *Provider) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               providerName,
		ContextCharLimit: contextCharLimit,
		CostTier:         domain.CostTierPremium,
		LatencyClass:     domain.LatencyMedium,
	}
}

// classify maps SDK errors onto the domain sentinels the engine
// understands. Raw transport errors never leave this package unwrapped.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		default:
			return fmt.Errorf("%w: status %d: %v", domain.ErrUnavailable, apiErr.StatusCode, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
