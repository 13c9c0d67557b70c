package assistant

import (
	"fmt"
	"strings"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

const (
	historyContentRunes = 100
	historyTimeLayout   = "15:04:05"

	TerminationNotice = "⛔ 检测到多次安全违规，会话已终止"
	GoodbyeNotice     = "对话已保存，再见！"
	ClearedNotice     = "✅ 历史记录已清除"
	SavedNotice       = "✅ 历史记录已保存"
)

// FormatAdvice renders an advice as the natural-language block shown to the user.
func FormatAdvice(a model.Advice) string {
	var b strings.Builder
	b.WriteString(a.Content)
	b.WriteString("\n\n")
	if len(a.Sources) > 0 {
		fmt.Fprintf(&b, "🔍 信息来源: %s\n", strings.Join(a.Sources, ", "))
	}
	b.WriteString(a.AdviceType.Label())
	b.WriteString("\n")
	if a.NeedsFollowUp {
		b.WriteString("❗ 建议: 请尽快咨询专业医生\n")
	}
	fmt.Fprintf(&b, "📊 置信度: %.1f%%", a.Confidence*100)
	return b.String()
}

// FormatElapsed renders the per-reply timing line.
func FormatElapsed(r Reply) string {
	return fmt.Sprintf("⏱️ 耗时: %.2fs", r.Elapsed.Seconds())
}

// Banner is printed once when a session starts.
func Banner() string {
	return "=== 健康管理师咨询系统 ===\n" +
		"可用指令:\n  /help - 帮助\n  /history - 查看历史\n  /params - 查看参数\n  /save - 保存历史\n  /exit - 退出\n  /clear - 清除历史记录"
}

// HelpText describes the commands and the configured personas.
func HelpText(params []model.AgentParams) string {
	var b strings.Builder
	b.WriteString("=== 健康咨询系统帮助 ===\n\n可用命令:\n\n")
	b.WriteString("  /help 或 帮助 - 显示此帮助信息\n")
	b.WriteString("  /history 或 查看历史 - 显示当前会话的历史记录\n")
	b.WriteString("  /clear 或 清除 - 清除当前会话的历史记录\n")
	b.WriteString("  /params 或 参数 - 查看系统参数\n")
	b.WriteString("  /save 或 保存 - 立即保存历史记录\n")
	b.WriteString("  /exit 或 退出 - 退出系统\n\n系统说明:\n\n")
	fmt.Fprintf(&b, "1. 本系统提供%d位AI健康管理师咨询服务\n", len(params))
	for i, p := range params {
		fmt.Fprintf(&b, "%d. %s (temperature: %.1f)\n", i+2, p.Name, p.Temperature)
	}
	fmt.Fprintf(&b, "%d. 所有对话记录会自动保存", len(params)+2)
	return b.String()
}

// FormatParams lists every persona's sampling parameters.
func FormatParams(params []model.AgentParams) string {
	var b strings.Builder
	b.WriteString("=== 系统参数 ===")
	for _, p := range params {
		fmt.Fprintf(&b, "\n🤖 %s\n  temperature: %.1f\n  top_p: %.1f\n  history: %s", p.Name, p.Temperature, p.TopP, p.HistoryFile)
	}
	return b.String()
}

// FormatHistory renders the session's records with HH:MM:SS timestamps.
func FormatHistory(histories []AgentHistory) string {
	empty := true
	for _, h := range histories {
		if len(h.Records) > 0 {
			empty = false
		}
	}
	if empty {
		return "当前会话没有历史记录"
	}

	var b strings.Builder
	b.WriteString("=== 当前会话历史记录 ===\n")
	for _, h := range histories {
		if len(h.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n🤖 %s 对话记录:\n", h.Agent)
		for _, rec := range h.Records {
			speaker := "🤖 AI"
			if rec.Role == model.RoleUser {
				speaker = "👤 你"
			}
			stamp := "--:--:--"
			if t, ok := rec.Time(); ok {
				stamp = t.Format(historyTimeLayout)
			}
			fmt.Fprintf(&b, "%s %s: %s\n", stamp, speaker, truncate(rec.Content, historyContentRunes))
		}
	}
	return strings.TrimSpace(b.String())
}

// LoadedSummary reports how many records each persona starts with.
func LoadedSummary(histories []AgentHistory) []string {
	out := make([]string, 0, len(histories))
	for _, h := range histories {
		out = append(out, fmt.Sprintf("%s 加载历史记录: %d条", h.Agent, len(h.Records)))
	}
	return out
}

// Wrap breaks every line of text into chunks of at most width runes,
// preferring to break at a space. Blank lines are kept.
func Wrap(text string, width int) []string {
	if width <= 0 {
		return strings.Split(text, "\n")
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimRight(line, " "))
		if len(runes) == 0 {
			out = append(out, "")
			continue
		}
		for len(runes) > width {
			cut := width
			for i := width; i > width/2; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, strings.TrimRight(string(runes[:cut]), " "))
			runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
		}
		if len(runes) > 0 {
			out = append(out, string(runes))
		}
	}
	return out
}

// truncate keeps at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
