// Package gemini adapts Google's Gemini API to the domain.Provider
// contract. Its long context window makes it the large-input tier.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const (
	providerName = "gemini"

	// Roughly 1M tokens expressed in characters.
	contextCharLimit = 4_000_000
)

// Provider implements the domain.Provider interface for Gemini.
type Provider struct {
	client    *genai.Client
	model     string
	available bool
}

// NewProvider creates a new Gemini provider. A missing API key yields a
// registered-but-unavailable provider.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	p := &Provider{
		model:     config.Model,
		available: config.APIKey != "",
	}
	if !p.available {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client

	return p, nil
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
	logger.Debug("calling Gemini API")

	genConfig := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxOutputUnits > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxOutputUnits)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
	if err != nil {
		classified := classify(err)
		logger.Error("Gemini API call failed", observability.Error(classified))
		return nil, classified
	}

	usage := domain.Usage{}
	if resp.UsageMetadata != nil {
		usage.InputUnits = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputUnits = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	logger.Debug("Gemini API call succeeded",
		observability.Int("input_units", usage.InputUnits),
		observability.Int("output_units", usage.OutputUnits),
	)

	return &domain.CompletionResponse{
		Provider:   providerName,
		Text:       resp.Text(),
		Usage:      usage,
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
		CostTier:         domain.CostTierStandard,
		LatencyClass:     domain.LatencyMedium,
	}
}

// classify maps SDK errors onto the domain sentinels the engine
// understands.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		default:
			return fmt.Errorf("%w: status %d: %v", domain.ErrUnavailable, apiErr.Code, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
