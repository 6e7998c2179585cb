package orchestrator

import (
	"fmt"
	"strings"

	"github.com/davidbz/howl/internal/domain"
)

// BuildPrompt renders the per-feature instruction prompt sent to remote
// backends. Every prompt demands JSON-only output in the feature's
// canonical shape, sized by the resolved shape hint.
func BuildPrompt(feature domain.Feature, inputText string, shape domain.ShapeHint) string {
	var sb strings.Builder

	switch feature {
	case domain.FeatureStudyCards:
		fmt.Fprintf(&sb, "Create %d study cards from the source text below. ", shape.NodeCount)
		sb.WriteString("Each card has a short question on the front and a concise factual answer on the back.\n")
		sb.WriteString(`Respond with JSON only: {"cards": [{"front": "...", "back": "..."}]}`)
	case domain.FeatureSummary:
		fmt.Fprintf(&sb, "Summarize the source text below in one coherent paragraph, then list its %d most important points.\n", shape.NodeCount)
		sb.WriteString(`Respond with JSON only: {"summary": "...", "key_points": ["..."]}`)
	case domain.FeatureOutline:
		fmt.Fprintf(&sb, "Build a hierarchical topic outline of the source text below: about %d nodes, at most %d levels deep.\n", shape.NodeCount, shape.Depth)
		sb.WriteString(`Respond with JSON only: {"title": "...", "nodes": [{"label": "...", "children": []}]}`)
	case domain.FeatureDiagram:
		fmt.Fprintf(&sb, "Build a concept map of the source text below: about %d concept nodes with labeled relationship edges.\n", shape.NodeCount)
		sb.WriteString(`Respond with JSON only: {"nodes": [{"id": "...", "label": "..."}], "edges": [{"from": "...", "to": "...", "label": "..."}]}`)
	case domain.FeatureQuiz:
		fmt.Fprintf(&sb, "Write %d multiple-choice questions testing understanding of the source text below. ", shape.NodeCount)
		sb.WriteString("Each question has four options and exactly one correct answer.\n")
		sb.WriteString(`Respond with JSON only: {"questions": [{"question": "...", "options": ["..."], "answer": 0}]}`)
	default:
		sb.WriteString("Analyze the source text below.\n")
	}

	sb.WriteString("\n\nSource text:\n")
	sb.WriteString(inputText)
	return sb.String()
}
