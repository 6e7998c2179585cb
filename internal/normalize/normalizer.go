// Package normalize turns raw backend text into validated canonical
// payloads. It strips formatting wrappers, parses the structured payload,
// attempts one bounded repair pass on malformed output, and rejects
// anything irrecoverable with a typed validation error. Everything here
// is a pure function of the input text and feature shape.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/davidbz/howl/internal/domain"
)

// trailingSeparators matches dangling commas before a closing bracket,
// the most common malformation in generated JSON.
var trailingSeparators = regexp.MustCompile(`,\s*([}\]])`)

// Normalizer validates backend output against per-feature canonical shapes.
type Normalizer struct{}

// NewNormalizer creates a new normalizer (DI constructor).
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Parse normalizes raw backend text into the feature's canonical payload.
// It never returns a raw JSON parse error; failures are *domain.ValidationError.
func (n *Normalizer) Parse(feature domain.Feature, raw string) (domain.Payload, error) {
	isolated := StripWrappers(raw)
	if isolated == "" {
		return nil, &domain.ValidationError{Feature: feature, Reason: "no structured payload found"}
	}

	payload, err := decode(feature, []byte(isolated))
	if err != nil {
		// One bounded repair pass, then reparse.
		repaired := Repair(isolated)
		payload, err = decode(feature, []byte(repaired))
		if err != nil {
			return nil, &domain.ValidationError{
				Feature: feature,
				Reason:  fmt.Sprintf("unparsable payload: %v", err),
			}
		}
	}

	if err := Validate(payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// Serialize renders a canonical payload as JSON. Parse(Serialize(p))
// returns a payload equal to p for any valid p.
func (n *Normalizer) Serialize(payload domain.Payload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return data, nil
}

// DecodePayload decodes stored canonical JSON back into its typed payload.
// Used by the result cache on read; the data is trusted to be canonical.
func DecodePayload(feature domain.Feature, data []byte) (domain.Payload, error) {
	payload, err := decode(feature, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored payload: %w", err)
	}
	return payload, nil
}

// StripWrappers isolates the structured payload from common text-wrapper
// artifacts: fenced code blocks and leading/trailing prose.
func StripWrappers(raw string) string {
	text := strings.TrimSpace(raw)

	// Prefer the content of the first fenced block, if any.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		} else {
			text = strings.TrimSpace(rest)
		}
	}

	// Slice from the first opening bracket to its matching last close.
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}

	var closer byte = ']'
	if text[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}

	return text[start : end+1]
}

// Repair applies the single bounded repair pass: trimming trailing
// separators that commonly break generated JSON.
func Repair(payload string) string {
	return trailingSeparators.ReplaceAllString(payload, "$1")
}

func decode(feature domain.Feature, data []byte) (domain.Payload, error) {
	switch feature {
	case domain.FeatureStudyCards:
		return decodeCards(data)
	case domain.FeatureSummary:
		var s domain.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	case domain.FeatureOutline:
		var o domain.Outline
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, err
		}
		return o, nil
	case domain.FeatureDiagram:
		var d domain.Diagram
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case domain.FeatureQuiz:
		var q domain.Quiz
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return q, nil
	case domain.FeatureStructureAdjudication:
		var a domain.Adjudication
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown feature: %s", feature)
	}
}

// decodeCards accepts both the canonical {"cards": [...]} object and the
// bare [{front, back}] array backends frequently emit.
func decodeCards(data []byte) (domain.Payload, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var cards []domain.Card
		if err := json.Unmarshal(data, &cards); err != nil {
			return nil, err
		}
		return domain.CardSet{Cards: cards}, nil
	}

	var set domain.CardSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks a decoded payload against its feature's canonical shape.
func Validate(payload domain.Payload) error {
	switch p := payload.(type) {
	case domain.CardSet:
		return validateCards(p)
	case domain.Summary:
		return validateSummary(p)
	case domain.Outline:
		return validateOutline(p)
	case domain.Diagram:
		return validateDiagram(p)
	case domain.Quiz:
		return validateQuiz(p)
	case domain.Adjudication:
		return validateAdjudication(p)
	default:
		return &domain.ValidationError{Reason: "unknown payload type"}
	}
}

func validateCards(set domain.CardSet) error {
	if len(set.Cards) == 0 {
		return &domain.ValidationError{Feature: domain.FeatureStudyCards, Reason: "cards array is empty"}
	}
	for i, card := range set.Cards {
		if strings.TrimSpace(card.Front) == "" || strings.TrimSpace(card.Back) == "" {
			return &domain.ValidationError{
				Feature: domain.FeatureStudyCards,
				Reason:  fmt.Sprintf("card %d has an empty side", i),
			}
		}
	}
	return nil
}

func validateSummary(s domain.Summary) error {
	if strings.TrimSpace(s.Summary) == "" {
		return &domain.ValidationError{Feature: domain.FeatureSummary, Reason: "summary text is empty"}
	}
	return nil
}

func validateOutline(o domain.Outline) error {
	if strings.TrimSpace(o.Title) == "" {
		return &domain.ValidationError{Feature: domain.FeatureOutline, Reason: "outline title is empty"}
	}
	if len(o.Nodes) == 0 {
		return &domain.ValidationError{Feature: domain.FeatureOutline, Reason: "outline has no nodes"}
	}
	return validateOutlineNodes(o.Nodes)
}

func validateOutlineNodes(nodes []domain.OutlineNode) error {
	for _, node := range nodes {
		if strings.TrimSpace(node.Label) == "" {
			return &domain.ValidationError{Feature: domain.FeatureOutline, Reason: "outline node has an empty label"}
		}
		if err := validateOutlineNodes(node.Children); err != nil {
			return err
		}
	}
	return nil
}

func validateDiagram(d domain.Diagram) error {
	if len(d.Nodes) == 0 {
		return &domain.ValidationError{Feature: domain.FeatureDiagram, Reason: "diagram has no nodes"}
	}

	ids := make(map[string]struct{}, len(d.Nodes))
	for _, node := range d.Nodes {
		if strings.TrimSpace(node.ID) == "" {
			return &domain.ValidationError{Feature: domain.FeatureDiagram, Reason: "diagram node has an empty id"}
		}
		if _, dup := ids[node.ID]; dup {
			return &domain.ValidationError{
				Feature: domain.FeatureDiagram,
				Reason:  fmt.Sprintf("duplicate node id %q", node.ID),
			}
		}
		ids[node.ID] = struct{}{}
	}

	for _, edge := range d.Edges {
		if _, ok := ids[edge.From]; !ok {
			return &domain.ValidationError{
				Feature: domain.FeatureDiagram,
				Reason:  fmt.Sprintf("edge references unknown node %q", edge.From),
			}
		}
		if _, ok := ids[edge.To]; !ok {
			return &domain.ValidationError{
				Feature: domain.FeatureDiagram,
				Reason:  fmt.Sprintf("edge references unknown node %q", edge.To),
			}
		}
	}
	return nil
}

func validateQuiz(q domain.Quiz) error {
	if len(q.Questions) == 0 {
		return &domain.ValidationError{Feature: domain.FeatureQuiz, Reason: "quiz has no questions"}
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Question) == "" {
			return &domain.ValidationError{
				Feature: domain.FeatureQuiz,
				Reason:  fmt.Sprintf("question %d is empty", i),
			}
		}
		if len(question.Options) < 2 {
			return &domain.ValidationError{
				Feature: domain.FeatureQuiz,
				Reason:  fmt.Sprintf("question %d needs at least two options", i),
			}
		}
		if question.Answer < 0 || question.Answer >= len(question.Options) {
			return &domain.ValidationError{
				Feature: domain.FeatureQuiz,
				Reason:  fmt.Sprintf("question %d answer index out of range", i),
			}
		}
	}
	return nil
}

func validateAdjudication(a domain.Adjudication) error {
	switch a.Recommended {
	case domain.StructureTOC, domain.StructureIndex, domain.StructureBookmarks, domain.StructureHeadings:
		return nil
	default:
		return &domain.ValidationError{
			Feature: domain.FeatureStructureAdjudication,
			Reason:  fmt.Sprintf("unknown recommended structure %q", a.Recommended),
		}
	}
}
