package domain

// Payload is the canonical, schema-validated artifact of one feature.
// Each feature has exactly one concrete payload type.
type Payload interface {
	PayloadFeature() Feature
}

// Card is a single front/back study card.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// CardSet is the canonical payload for study-card generation.
type CardSet struct {
	Cards []Card `json:"cards"`
}

// PayloadFeature implements Payload.
func (CardSet) PayloadFeature() Feature { return FeatureStudyCards }

// Summary is the canonical payload for summarization.
type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// PayloadFeature implements Payload.
func (Summary) PayloadFeature() Feature { return FeatureSummary }

// OutlineNode is one node of a hierarchical outline.
type OutlineNode struct {
	Label    string        `json:"label"`
	Children []OutlineNode `json:"children,omitempty"`
}

// Outline is the canonical payload for outline generation.
type Outline struct {
	Title string        `json:"title"`
	Nodes []OutlineNode `json:"nodes"`
}

// PayloadFeature implements Payload.
func (Outline) PayloadFeature() Feature { return FeatureOutline }

// DiagramNode is one vertex of a concept map.
type DiagramNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DiagramEdge is one labeled relation between two diagram nodes.
type DiagramEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Diagram is the canonical payload for concept-map generation.
type Diagram struct {
	Nodes []DiagramNode `json:"nodes"`
	Edges []DiagramEdge `json:"edges,omitempty"`
}

// PayloadFeature implements Payload.
func (Diagram) PayloadFeature() Feature { return FeatureDiagram }

// QuizQuestion is a single multiple-choice question. Answer is the index
// into Options of the correct choice.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is the canonical payload for quiz generation.
type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

// PayloadFeature implements Payload.
func (Quiz) PayloadFeature() Feature { return FeatureQuiz }

// Adjudication is the canonical payload of a structure tie-break call.
type Adjudication struct {
	Recommended StructureType `json:"recommended"`
	Reasoning   string        `json:"reasoning"`
}

// PayloadFeature implements Payload.
func (Adjudication) PayloadFeature() Feature { return FeatureStructureAdjudication }
