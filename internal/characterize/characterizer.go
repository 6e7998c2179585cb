// Package characterize computes a complexity/size profile of input text.
// Scoring is deterministic and side-effect free: the same input always
// produces the same profile, and no network calls are made.
package characterize

import (
	"strings"
	"unicode"

	"github.com/davidbz/howl/internal/domain"
)

const (
	maxScore = 100.0

	// Length saturates at 40k characters.
	lengthCharsPerPoint = 400.0

	// Vocabulary richness is unique/total words scaled; texts shorter than
	// minVocabWords are damped so trivially-unique tiny inputs don't spike.
	vocabRatioScale = 100.0
	minVocabWords   = 20.0

	// Structural complexity combines paragraph count and sentence length.
	paragraphPoints      = 4.0
	sentenceLengthPoints = 1.5

	// Technical density weighs capitalized tokens, numerals and acronyms.
	acronymWeight  = 2.0
	technicalScale = 400.0

	// Sub-score weights; weighted sum is capped at 100.
	lengthWeight    = 0.30
	vocabWeight     = 0.25
	structureWeight = 0.25
	technicalWeight = 0.20

	// Bucket thresholds on the overall score.
	moderateThreshold    = 25.0
	complexThreshold     = 50.0
	veryComplexThreshold = 75.0
)

// recommendedShapes maps each bucket to its fixed output-shape tuple.
//
//nolint:gochecknoglobals // Fixed lookup table.
var recommendedShapes = map[domain.ComplexityBucket]domain.ShapeHint{
	domain.BucketSimple:      {NodeCount: 8, Depth: 2},
	domain.BucketModerate:    {NodeCount: 12, Depth: 3},
	domain.BucketComplex:     {NodeCount: 18, Depth: 3},
	domain.BucketVeryComplex: {NodeCount: 25, Depth: 4},
}

// Characterizer derives complexity profiles from raw text.
type Characterizer struct{}

// NewCharacterizer creates a new characterizer (DI constructor).
func NewCharacterizer() *Characterizer {
	return &Characterizer{}
}

// Characterize computes the complexity profile for the given text.
func (c *Characterizer) Characterize(text string) domain.ComplexityProfile {
	words := strings.Fields(text)

	sub := domain.SubScores{
		Length:     lengthScore(text),
		Vocabulary: vocabularyScore(words),
		Structure:  structureScore(text, words),
		Technical:  technicalScore(words),
	}

	score := capScore(lengthWeight*sub.Length +
		vocabWeight*sub.Vocabulary +
		structureWeight*sub.Structure +
		technicalWeight*sub.Technical)

	bucket := bucketFor(score)

	return domain.ComplexityProfile{
		Score:            score,
		SubScores:        sub,
		Bucket:           bucket,
		RecommendedShape: recommendedShapes[bucket],
	}
}

func bucketFor(score float64) domain.ComplexityBucket {
	switch {
	case score < moderateThreshold:
		return domain.BucketSimple
	case score < complexThreshold:
		return domain.BucketModerate
	case score < veryComplexThreshold:
		return domain.BucketComplex
	default:
		return domain.BucketVeryComplex
	}
}

func capScore(score float64) float64 {
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// lengthScore is a saturating function of character count.
func lengthScore(text string) float64 {
	return capScore(float64(len(text)) / lengthCharsPerPoint)
}

// vocabularyScore scales the unique-word-to-total-word ratio. Short texts
// are damped toward zero so a handful of distinct words does not read as
// rich vocabulary.
func vocabularyScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] = struct{}{}
	}

	ratio := float64(len(unique)) / float64(len(words))
	score := ratio * vocabRatioScale

	if float64(len(words)) < minVocabWords {
		score *= float64(len(words)) / minVocabWords
	}

	return capScore(score)
}

// structureScore combines paragraph count with average sentence length.
func structureScore(text string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}

	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}
	avgSentenceWords := float64(len(words)) / float64(sentences)

	return capScore(float64(paragraphs)*paragraphPoints + avgSentenceWords*sentenceLengthPoints)
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	return count
}

// technicalScore weighs capitalized tokens, numerals, and acronyms per word.
func technicalScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	weighted := 0.0
	sentenceStart := true
	for _, w := range words {
		trimmed := strings.Trim(w, ".,;:!?\"'()")
		if trimmed == "" {
			continue
		}

		switch {
		case isAcronym(trimmed):
			weighted += acronymWeight
		case containsDigit(trimmed):
			weighted++
		case !sentenceStart && unicode.IsUpper([]rune(trimmed)[0]):
			// Sentence-initial capitals are not counted.
			weighted++
		}

		sentenceStart = strings.ContainsAny(w, ".!?")
	}

	return capScore(weighted / float64(len(words)) * technicalScale)
}

func isAcronym(w string) bool {
	if len(w) < 2 {
		return false
	}
	for _, r := range w {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsDigit(w string) bool {
	for _, r := range w {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
