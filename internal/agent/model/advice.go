package model

// AdviceType classifies a reply.
type AdviceType string

const (
	AdviceGeneral  AdviceType = "general"
	AdviceDiet     AdviceType = "diet"
	AdviceExercise AdviceType = "exercise"
	AdviceWarning  AdviceType = "warning"
)

// DefaultConfidence is used when the model omits confidence or the reply had to be repaired.
const DefaultConfidence = 0.8

// Valid reports whether t is one of the enumerated advice types.
func (t AdviceType) Valid() bool {
	switch t {
	case AdviceGeneral, AdviceDiet, AdviceExercise, AdviceWarning:
		return true
	}
	return false
}

// Label is the terminal caption for the advice type.
func (t AdviceType) Label() string {
	switch t {
	case AdviceGeneral:
		return "💡 一般建议"
	case AdviceDiet:
		return "🍎 饮食建议"
	case AdviceExercise:
		return "🏃 运动建议"
	case AdviceWarning:
		return "⚠️ 重要提示"
	default:
		return "💡 建议"
	}
}

// Advice is the normalized, schema-conformant chatbot reply.
// Build it with NewAdvice; values are not mutated after construction.
type Advice struct {
	Content       string     `json:"content"`
	Sources       []string   `json:"sources"`
	AdviceType    AdviceType `json:"advice_type"`
	NeedsFollowUp bool       `json:"needs_follow_up"`
	Confidence    float64    `json:"confidence"`
}

// NewAdvice clamps confidence to [0,1], coerces unknown advice types to
// general and never leaves Sources nil.
func NewAdvice(content string, sources []string, adviceType AdviceType, needsFollowUp bool, confidence float64) Advice {
	if !adviceType.Valid() {
		adviceType = AdviceGeneral
	}
	src := make([]string, len(sources))
	copy(src, sources)
	return Advice{
		Content:       content,
		Sources:       src,
		AdviceType:    adviceType,
		NeedsFollowUp: needsFollowUp,
		Confidence:    clamp01(confidence),
	}
}

// EmptyAdvice is returned for reserved commands, which skip the model.
func EmptyAdvice() Advice {
	return NewAdvice("", nil, AdviceGeneral, false, 1.0)
}

// IsSystemError reports whether a is the transport-failure fallback.
func (a Advice) IsSystemError() bool {
	if a.AdviceType != AdviceWarning {
		return false
	}
	for _, s := range a.Sources {
		if s == SourceSystemError {
			return true
		}
	}
	return false
}

const (
	SourceSystemError   = "系统错误"
	SourceKnowledgeBase = "内部知识库"
)

func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
