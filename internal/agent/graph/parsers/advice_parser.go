package parsers

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// basic safety limits to avoid pathological replies
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit logged snippet size
)

// TransportFailureContent is shown when the model could not be reached.
const TransportFailureContent = "服务暂时不可用，请稍后再试"

// prohibitedTerms may not appear in a model reply's content: the assistant
// gives lifestyle advice, not prescriptions or surgical recommendations.
var prohibitedTerms = []string{"处方药", "手术"}

// rawAdvice mirrors model.Advice with pointers so missing fields are detectable.
type rawAdvice struct {
	Content       *string   `json:"content"`
	Sources       *[]string `json:"sources"`
	AdviceType    *string   `json:"advice_type"`
	NeedsFollowUp *bool     `json:"needs_follow_up"`
	Confidence    *float64  `json:"confidence"`
}

// ParseAdvice strictly parses content into an Advice. Any JSON error, missing
// required field, out-of-range confidence, unknown advice type or prohibited
// term is reported as a schema violation.
func ParseAdvice(content string) (model.Advice, error) {
	if len(content) > maxContentLen {
		return model.Advice{}, errx.WrapSchema(fmt.Errorf("reply too large: %d bytes", len(content)))
	}

	var raw rawAdvice
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return model.Advice{}, errx.WrapSchema(fmt.Errorf("decode reply: %w", err))
	}

	if raw.Content == nil {
		return model.Advice{}, errx.WrapSchema(fmt.Errorf("missing field: content"))
	}
	if raw.AdviceType == nil {
		return model.Advice{}, errx.WrapSchema(fmt.Errorf("missing field: advice_type"))
	}
	adviceType := model.AdviceType(*raw.AdviceType)
	if !adviceType.Valid() {
		return model.Advice{}, errx.WrapSchema(fmt.Errorf("invalid advice_type %q", *raw.AdviceType))
	}

	confidence := model.DefaultConfidence
	if raw.Confidence != nil {
		confidence = *raw.Confidence
		if confidence < 0 || confidence > 1 {
			return model.Advice{}, errx.WrapSchema(fmt.Errorf("confidence out of range: %v", confidence))
		}
	}

	text := expandNewlines(*raw.Content)
	for _, term := range prohibitedTerms {
		if strings.Contains(text, term) {
			return model.Advice{}, errx.WrapSchema(fmt.Errorf("content contains prohibited term %q", term))
		}
	}

	var sources []string
	if raw.Sources != nil {
		sources = *raw.Sources
	}
	needsFollowUp := raw.NeedsFollowUp != nil && *raw.NeedsFollowUp

	return model.NewAdvice(text, sources, adviceType, needsFollowUp, confidence), nil
}

// Normalize turns a model reply (or the error of the call that should have
// produced it) into an Advice. It never fails and never retries.
func Normalize(content string, callErr error) model.Advice {
	if callErr != nil {
		logx.Error().Err(callErr).Str("component", "advice_parser").Msg("model call failed, using transport fallback")
		return TransportFallback()
	}

	advice, err := ParseAdvice(content)
	if err != nil {
		logx.Warn().
			Err(err).
			Str("component", "advice_parser").
			Str("reply_snippet", safeSnippet(content)).
			Msg("reply failed schema validation, using default structure")
		return DefaultAdvice(content)
	}
	return advice
}

// TransportFallback is the fixed reply for an unreachable model.
func TransportFallback() model.Advice {
	return model.NewAdvice(TransportFailureContent, []string{model.SourceSystemError}, model.AdviceWarning, false, 0.0)
}

// DefaultAdvice wraps an unparseable reply verbatim.
func DefaultAdvice(content string) model.Advice {
	return model.NewAdvice(expandNewlines(content), []string{model.SourceKnowledgeBase}, model.AdviceGeneral, false, model.DefaultConfidence)
}

// --- helpers ---

// expandNewlines converts literal backslash-n sequences into newlines.
func expandNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// stripCodeFence removes one surrounding Markdown code fence, if present.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(t, "```")
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	return t[nl+1:]
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	// avoid cutting a multi-byte rune in half
	cut := maxErrSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
