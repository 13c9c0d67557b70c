package conversations

import (
	"strings"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

const (
	DefaultContextTurns = 6
	welcomeNewUser      = "请向新用户问好"
	recallPrefixRunes   = 30
)

// MessagesManager turns a persona's history into the user message sent to the model.
type MessagesManager struct {
	contextTurns int
}

func NewMessagesManager(config model.HistoryConfig) *MessagesManager {
	turns := config.ContextTurns
	if turns <= 0 {
		turns = DefaultContextTurns
	}
	return &MessagesManager{contextTurns: turns}
}

// =========== Function for chat turns ===========

// BuildQuery renders the recent history followed by the current input. The
// history is expected to already contain the current user record.
func (mm *MessagesManager) BuildQuery(history []model.HistoryRecord, input string) string {
	recent := trimTail(history, mm.contextTurns)

	lines := make([]string, 0, len(recent))
	for _, rec := range recent {
		speaker := "助手"
		if rec.Role == model.RoleUser {
			speaker = "用户"
		}
		lines = append(lines, speaker+": "+rec.Content)
	}

	var b strings.Builder
	b.WriteString("对话上下文:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n请回复: ")
	b.WriteString(input)
	return b.String()
}

// WelcomeQuery asks for a greeting on an empty history, or for a recall of the
// last topic otherwise.
func (mm *MessagesManager) WelcomeQuery(history []model.HistoryRecord) string {
	if len(history) == 0 || history[len(history)-1].Content == "" {
		return welcomeNewUser
	}
	last := []rune(history[len(history)-1].Content)
	if len(last) > recallPrefixRunes {
		last = last[:recallPrefixRunes]
	}
	return "用户上次讨论: " + string(last) + "..."
}

// ====================== Helper function ======================
func trimTail(records []model.HistoryRecord, maxTurns int) []model.HistoryRecord {
	if len(records) <= maxTurns {
		return records
	}
	return records[len(records)-maxTurns:]
}
