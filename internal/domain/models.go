package domain

import "time"

// Feature identifies the study artifact a caller wants generated.
type Feature string

const (
	// FeatureStudyCards generates front/back study card pairs.
	FeatureStudyCards Feature = "study_cards"

	// FeatureSummary generates a prose summary with key points.
	FeatureSummary Feature = "summary"

	// FeatureOutline generates a hierarchical topic outline.
	FeatureOutline Feature = "outline"

	// FeatureDiagram generates a concept map (nodes and labeled edges).
	FeatureDiagram Feature = "diagram"

	// FeatureQuiz generates multiple-choice quiz questions.
	FeatureQuiz Feature = "quiz"

	// FeatureStructureAdjudication is the internal feature used when a
	// backend is asked to break ties between structure candidates.
	FeatureStructureAdjudication Feature = "structure_adjudication"
)

// IsValid reports whether f is a known caller-facing feature.
func (f Feature) IsValid() bool {
	switch f {
	case FeatureStudyCards, FeatureSummary, FeatureOutline, FeatureDiagram, FeatureQuiz:
		return true
	default:
		return false
	}
}

// ShapeHint describes the desired size of a generated artifact.
type ShapeHint struct {
	NodeCount int `json:"node_count"`
	Depth     int `json:"depth"`
}

// GenerationOptions carries optional per-request knobs.
type GenerationOptions struct {
	Shape            *ShapeHint `json:"shape,omitempty"`
	ProviderOverride string     `json:"provider_override,omitempty"`
	Temperature      float64    `json:"temperature,omitempty"`
}

// GenerationRequest is the immutable input to a single generation call.
type GenerationRequest struct {
	Feature   Feature           `json:"feature"`
	InputText string            `json:"input_text"`
	Options   GenerationOptions `json:"options,omitempty"`
}

// ComplexityBucket is the ordered coarse classification of an input.
type ComplexityBucket string

const (
	BucketSimple      ComplexityBucket = "simple"
	BucketModerate    ComplexityBucket = "moderate"
	BucketComplex     ComplexityBucket = "complex"
	BucketVeryComplex ComplexityBucket = "very_complex"
)

// SubScores holds the four independent complexity sub-scores, each 0-100.
type SubScores struct {
	Length     float64 `json:"length"`
	Vocabulary float64 `json:"vocabulary"`
	Structure  float64 `json:"structure"`
	Technical  float64 `json:"technical"`
}

// ComplexityProfile summarizes an input text for routing and shaping.
type ComplexityProfile struct {
	Score            float64          `json:"score"`
	SubScores        SubScores        `json:"sub_scores"`
	Bucket           ComplexityBucket `json:"bucket"`
	RecommendedShape ShapeHint        `json:"recommended_shape"`
}

// CostTier orders providers by relative cost and reasoning quality.
type CostTier string

const (
	CostTierFree     CostTier = "free"
	CostTierEconomy  CostTier = "economy"
	CostTierStandard CostTier = "standard"
	CostTierPremium  CostTier = "premium"
)

// Rank returns the tier's position for ordering, cheapest first.
func (t CostTier) Rank() int {
	switch t {
	case CostTierFree:
		return 0
	case CostTierEconomy:
		return 1
	case CostTierStandard:
		return 2
	case CostTierPremium:
		return 3
	default:
		return 4
	}
}

// LatencyClass is a provider's coarse expected latency.
type LatencyClass string

const (
	LatencyFast   LatencyClass = "fast"
	LatencyMedium LatencyClass = "medium"
	LatencySlow   LatencyClass = "slow"
)

// ProviderDescriptor is the static, read-only description of a provider.
type ProviderDescriptor struct {
	ID               string       `json:"id"`
	ContextCharLimit int          `json:"context_char_limit"`
	CostTier         CostTier     `json:"cost_tier"`
	LatencyClass     LatencyClass `json:"latency_class"`
}

// RoutingDecision is the ordered fallback chain for one request.
type RoutingDecision struct {
	Chain  []ProviderDescriptor `json:"chain"`
	Reason string               `json:"reason"`
}

// AttemptOutcome classifies a single provider attempt.
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeRetryableFailure AttemptOutcome = "retryable_failure"
	OutcomeFatalFailure     AttemptOutcome = "fatal_failure"
)

// Attempt records one provider tried, with its final outcome. An
// in-place retry on the same provider is folded into the entry via
// Retries rather than appended separately.
type Attempt struct {
	Provider    string         `json:"provider"`
	Outcome     AttemptOutcome `json:"outcome"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	Retries     int            `json:"retries,omitempty"`
	LatencyMs   int64          `json:"latency_ms"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// Usage tracks input/output size in character-equivalent units.
type Usage struct {
	InputUnits  int `json:"input_units"`
	OutputUnits int `json:"output_units"`
}

// Add accumulates another usage value into u.
func (u *Usage) Add(other Usage) {
	u.InputUnits += other.InputUnits
	u.OutputUnits += other.OutputUnits
}

// CompletionRequest is the narrow contract every provider adapter accepts.
// Prompt is what remote backends consume; SourceText lets local heuristic
// providers work from the raw input instead of the rendered prompt.
type CompletionRequest struct {
	Feature        Feature `json:"feature"`
	Prompt         string  `json:"prompt"`
	SourceText     string  `json:"source_text,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxOutputUnits int     `json:"max_output_units,omitempty"`
}

// CompletionResponse is the raw, unnormalized provider output.
type CompletionResponse struct {
	Provider   string    `json:"provider"`
	Text       string    `json:"text"`
	Usage      Usage     `json:"usage"`
	FinishTime time.Time `json:"finish_time"`
}

// GenerationResult is the terminal success value of a generation call.
type GenerationResult struct {
	Feature  Feature   `json:"feature"`
	Payload  Payload   `json:"payload"`
	Provider string    `json:"provider"`
	Attempts []Attempt `json:"attempts"`
	Usage    Usage     `json:"usage"`
	Cached   bool      `json:"cached,omitempty"`
}

// StructureType identifies a navigational structure candidate.
type StructureType string

const (
	StructureTOC       StructureType = "toc"
	StructureIndex     StructureType = "index"
	StructureBookmarks StructureType = "bookmarks"
	StructureHeadings  StructureType = "headings"
)

// StructureTypePriority is the fixed tie-break order, strongest first.
//
//nolint:gochecknoglobals // Fixed ordering table shared by scorer and normalizer.
var StructureTypePriority = []StructureType{
	StructureTOC,
	StructureIndex,
	StructureBookmarks,
	StructureHeadings,
}

// StructureCandidate is one detected navigational structure with its
// shape metrics.
type StructureCandidate struct {
	Type      StructureType `json:"type"`
	Detected  bool          `json:"detected"`
	ItemCount int           `json:"item_count"`
	MaxDepth  int           `json:"max_depth"`
	CrossRefs int           `json:"cross_refs"`
}

// StructureAnalysis is the terminal value of a structure-analysis call.
type StructureAnalysis struct {
	Recommended     StructureType         `json:"recommended"`
	Scores          map[StructureType]int `json:"scores"`
	Reasoning       string                `json:"reasoning"`
	DetectedMethods []StructureType       `json:"detected_methods"`
	FallbackUsed    bool                  `json:"fallback_used"`
	Adjudicated     bool                  `json:"adjudicated"`
}
