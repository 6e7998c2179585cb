// Package structure scores detected navigational structure candidates
// (table of contents, index, bookmarks, headings) and recommends the one
// to build navigation from. Close calls may be adjudicated by a backend;
// every other path is deterministic.
package structure

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/normalize"
	"github.com/davidbz/howl/internal/observability"
)

const (
	// Heuristic rubric: base points for detection, capped quantity points,
	// and bonuses for hierarchy and cross-referencing.
	detectionBasePoints = 40
	quantityMaxPoints   = 30
	quantityScale       = 0.75
	nestingBonus        = 15
	crossRefBonus       = 15

	// DefaultWeakHeadingsScore is the cutoff below which a headings-only
	// detection is treated as a fallback. The value is inherited as-is;
	// it is deliberately overridable rather than hardcoded.
	DefaultWeakHeadingsScore = 55

	// DefaultCloseMargin is the score distance within which the top two
	// candidates are considered a close call worth adjudicating.
	DefaultCloseMargin = 10

	adjudicationTemperature = 0.2
	adjudicationMaxUnits    = 500
)

// Config holds the scorer's overridable cutoffs.
type Config struct {
	WeakHeadingsScore int
	CloseMargin       int
}

// DefaultConfig returns the inherited default cutoffs.
func DefaultConfig() Config {
	return Config{
		WeakHeadingsScore: DefaultWeakHeadingsScore,
		CloseMargin:       DefaultCloseMargin,
	}
}

// Completer is the minimal backend surface needed for tie-breaking.
// A nil Completer disables adjudication entirely.
type Completer interface {
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// Scorer analyzes structure candidates for a source document.
type Scorer struct {
	completer  Completer
	normalizer *normalize.Normalizer
	events     domain.EventPublisher
	cfg        Config
}

// NewScorer creates a new scorer. completer and events may be nil.
func NewScorer(completer Completer, normalizer *normalize.Normalizer, events domain.EventPublisher, cfg Config) *Scorer {
	if cfg.WeakHeadingsScore == 0 {
		cfg.WeakHeadingsScore = DefaultWeakHeadingsScore
	}
	if cfg.CloseMargin == 0 {
		cfg.CloseMargin = DefaultCloseMargin
	}
	return &Scorer{
		completer:  completer,
		normalizer: normalizer,
		events:     events,
		cfg:        cfg,
	}
}

// Analyze scores every candidate and recommends one. When the top two
// heuristic scores are close, a backend is asked to adjudicate; any
// failure there falls back deterministically to the highest score, with
// ties broken by the fixed type priority (TOC > Index > Bookmarks > Headings).
func (s *Scorer) Analyze(ctx context.Context, candidates []domain.StructureCandidate) domain.StructureAnalysis {
	scores := make(map[domain.StructureType]int, len(candidates))
	byType := make(map[domain.StructureType]domain.StructureCandidate, len(candidates))
	for _, candidate := range candidates {
		scores[candidate.Type] = HeuristicScore(candidate)
		byType[candidate.Type] = candidate
	}

	detected := make([]domain.StructureType, 0, len(candidates))
	for _, structType := range domain.StructureTypePriority {
		if candidate, ok := byType[structType]; ok && candidate.Detected {
			detected = append(detected, structType)
		}
	}

	if len(detected) == 0 {
		return domain.StructureAnalysis{
			Recommended:     domain.StructureHeadings,
			Scores:          scores,
			Reasoning:       "no navigational structure detected; defaulting to heading extraction",
			DetectedMethods: detected,
			FallbackUsed:    true,
		}
	}

	best, second := topTwo(detected, scores)

	analysis := domain.StructureAnalysis{
		Recommended:     best,
		Scores:          scores,
		DetectedMethods: detected,
		FallbackUsed:    s.isFallback(detected, scores),
	}

	// Close call between two detected structures: let a backend break the
	// tie. The heuristic result above remains the deterministic fallback.
	if second != "" && scores[best]-scores[second] <= s.cfg.CloseMargin && s.completer != nil {
		if adjudication, err := s.adjudicate(ctx, detected, scores); err == nil {
			s.publishPath(ctx, "adjudicated", adjudication.Recommended)
			analysis.Recommended = adjudication.Recommended
			analysis.Reasoning = adjudication.Reasoning
			analysis.Adjudicated = true
			return analysis
		}
		observability.FromContext(ctx).Warn("structure adjudication failed, using heuristic scores")
	}

	s.publishPath(ctx, "heuristic", best)
	analysis.Reasoning = fmt.Sprintf("%s scored highest (%d) of %d detected structures", best, scores[best], len(detected))
	return analysis
}

// HeuristicScore applies the fixed rubric to one candidate.
func HeuristicScore(candidate domain.StructureCandidate) int {
	if !candidate.Detected {
		return 0
	}

	score := detectionBasePoints

	quantity := int(float64(candidate.ItemCount) * quantityScale)
	if quantity > quantityMaxPoints {
		quantity = quantityMaxPoints
	}
	score += quantity

	if candidate.MaxDepth >= 2 {
		score += nestingBonus
	}
	if candidate.CrossRefs > 0 {
		score += crossRefBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

// isFallback reports whether the analysis should be flagged as a
// fallback: only the weakest structure type was found, and weakly.
func (s *Scorer) isFallback(detected []domain.StructureType, scores map[domain.StructureType]int) bool {
	if len(detected) != 1 || detected[0] != domain.StructureHeadings {
		return false
	}
	return scores[domain.StructureHeadings] < s.cfg.WeakHeadingsScore
}

func (s *Scorer) adjudicate(ctx context.Context, detected []domain.StructureType, scores map[domain.StructureType]int) (*domain.Adjudication, error) {
	var sb strings.Builder
	sb.WriteString("Several navigational structures were detected in a source document. ")
	sb.WriteString("Pick the best one to build navigation from and justify the choice briefly.\n")
	for _, structType := range detected {
		fmt.Fprintf(&sb, "- %s (heuristic score %d)\n", structType, scores[structType])
	}
	sb.WriteString(`Respond with JSON only: {"recommended": "<type>", "reasoning": "<why>"}`)

	resp, err := s.completer.Complete(ctx, &domain.CompletionRequest{
		Feature:        domain.FeatureStructureAdjudication,
		Prompt:         sb.String(),
		Temperature:    adjudicationTemperature,
		MaxOutputUnits: adjudicationMaxUnits,
	})
	if err != nil {
		return nil, fmt.Errorf("adjudication call failed: %w", err)
	}

	payload, err := s.normalizer.Parse(domain.FeatureStructureAdjudication, resp.Text)
	if err != nil {
		return nil, fmt.Errorf("adjudication output unusable: %w", err)
	}

	adjudication, ok := payload.(domain.Adjudication)
	if !ok {
		return nil, fmt.Errorf("unexpected adjudication payload type %T", payload)
	}

	// The backend must pick one of the detected structures.
	for _, structType := range detected {
		if adjudication.Recommended == structType {
			return &adjudication, nil
		}
	}
	return nil, fmt.Errorf("adjudication picked undetected structure %q", adjudication.Recommended)
}

func (s *Scorer) publishPath(ctx context.Context, path string, recommended domain.StructureType) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, "structure.recommendation", map[string]interface{}{
		"path":        path,
		"recommended": string(recommended),
	})
}

// topTwo returns the highest-scoring detected type and the runner-up.
// detected is already in priority order, so ties resolve to the
// stronger type.
func topTwo(detected []domain.StructureType, scores map[domain.StructureType]int) (domain.StructureType, domain.StructureType) {
	var best, second domain.StructureType
	for _, structType := range detected {
		switch {
		case best == "" || scores[structType] > scores[best]:
			second = best
			best = structType
		case second == "" || scores[structType] > scores[second]:
			second = structType
		}
	}
	return best, second
}
