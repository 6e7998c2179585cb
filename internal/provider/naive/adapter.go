// Package naive provides the guaranteed-available baseline provider. It
// generates canonical payloads extractively from the source text, with
// no network calls, so every fallback chain has a terminal provider that
// cannot be unconfigured. Output quality is deliberately modest; the
// point is a deterministic floor, not a good study aid.
package naive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

const (
	providerName = "naive"

	// Effectively unbounded: the baseline never rejects on size.
	contextCharLimit = 1 << 31

	maxItems      = 10
	charsPerUnit  = 4
	titleWordSpan = 6
)

// Provider implements the domain.Provider interface with local
// extractive heuristics.
type Provider struct{}

// NewProvider creates a new baseline provider. No configuration is
// required; it operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{}
}

// Complete generates a canonical payload extractively from the request's
// source text and returns it serialized, like any remote backend would.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("generating baseline payload", observability.String("feature", string(req.Feature)))

	payload, err := build(req.Feature, req.SourceText)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize baseline payload: %w", err)
	}

	return &domain.CompletionResponse{
		Provider: providerName,
		Text:     string(data),
		Usage: domain.Usage{
			InputUnits:  len(req.SourceText) / charsPerUnit,
			OutputUnits: len(data) / charsPerUnit,
		},
		FinishTime: time.Now(),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Available always reports true: the baseline needs no credential.
func (p *Provider) Available() bool {
	return true
}

// Descriptor returns the provider's static routing characteristics.
func (p *Provider) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               providerName,
		ContextCharLimit: contextCharLimit,
		CostTier:         domain.CostTierFree,
		LatencyClass:     domain.LatencyFast,
	}
}

func build(feature domain.Feature, source string) (domain.Payload, error) {
	sentences := splitSentences(source)

	switch feature {
	case domain.FeatureStudyCards:
		return buildCards(sentences), nil
	case domain.FeatureSummary:
		return buildSummary(sentences), nil
	case domain.FeatureOutline:
		return buildOutline(sentences), nil
	case domain.FeatureDiagram:
		return buildDiagram(sentences), nil
	case domain.FeatureQuiz:
		return buildQuiz(sentences), nil
	default:
		// Adjudication and unknown features need real reasoning; the
		// baseline refuses rather than inventing an answer.
		return nil, fmt.Errorf("%w: baseline cannot serve feature %s", domain.ErrUnavailable, feature)
	}
}

func buildCards(sentences []string) domain.CardSet {
	set := domain.CardSet{}
	for _, sentence := range firstN(sentences, maxItems) {
		set.Cards = append(set.Cards, domain.Card{
			Front: fmt.Sprintf("What does the material say about %q?", leadWords(sentence, titleWordSpan)),
			Back:  sentence,
		})
	}
	if len(set.Cards) == 0 {
		set.Cards = append(set.Cards, domain.Card{
			Front: "What is the main idea of this material?",
			Back:  "The source text contained no extractable statements.",
		})
	}
	return set
}

func buildSummary(sentences []string) domain.Summary {
	lead := firstN(sentences, 3)
	summary := strings.Join(lead, " ")
	if summary == "" {
		summary = "The source text contained no extractable statements."
	}

	var keyPoints []string
	for _, sentence := range firstN(sentences, maxItems) {
		keyPoints = append(keyPoints, leadWords(sentence, titleWordSpan))
	}

	return domain.Summary{Summary: summary, KeyPoints: keyPoints}
}

func buildOutline(sentences []string) domain.Outline {
	title := "Overview"
	if len(sentences) > 0 {
		title = leadWords(sentences[0], titleWordSpan)
	}

	outline := domain.Outline{Title: title}
	for _, sentence := range firstN(sentences, maxItems) {
		outline.Nodes = append(outline.Nodes, domain.OutlineNode{Label: leadWords(sentence, titleWordSpan)})
	}
	if len(outline.Nodes) == 0 {
		outline.Nodes = append(outline.Nodes, domain.OutlineNode{Label: "No content"})
	}
	return outline
}

func buildDiagram(sentences []string) domain.Diagram {
	diagram := domain.Diagram{}
	for i, sentence := range firstN(sentences, maxItems) {
		diagram.Nodes = append(diagram.Nodes, domain.DiagramNode{
			ID:    fmt.Sprintf("n%d", i+1),
			Label: leadWords(sentence, titleWordSpan),
		})
		if i > 0 {
			diagram.Edges = append(diagram.Edges, domain.DiagramEdge{
				From:  fmt.Sprintf("n%d", i),
				To:    fmt.Sprintf("n%d", i+1),
				Label: "leads to",
			})
		}
	}
	if len(diagram.Nodes) == 0 {
		diagram.Nodes = append(diagram.Nodes, domain.DiagramNode{ID: "n1", Label: "No content"})
	}
	return diagram
}

func buildQuiz(sentences []string) domain.Quiz {
	quiz := domain.Quiz{}
	for _, sentence := range firstN(sentences, maxItems) {
		quiz.Questions = append(quiz.Questions, domain.QuizQuestion{
			Question: fmt.Sprintf("Which statement about %q matches the material?", leadWords(sentence, titleWordSpan)),
			Options: []string{
				sentence,
				"The material does not discuss this.",
				"The opposite is stated in the material.",
			},
			Answer: 0,
		})
	}
	if len(quiz.Questions) == 0 {
		quiz.Questions = append(quiz.Questions, domain.QuizQuestion{
			Question: "Does the source text contain study material?",
			Options:  []string{"No", "Yes"},
			Answer:   0,
		})
	}
	return quiz
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); len(s) > 3 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) > 3 {
		sentences = append(sentences, s)
	}

	return sentences
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func leadWords(sentence string, n int) string {
	words := strings.Fields(sentence)
	if len(words) > n {
		words = words[:n]
	}
	return strings.TrimRight(strings.Join(words, " "), ".!?,;:")
}
