// Package tui is the full-screen "window" interface. Each request runs in a
// background tea.Cmd; its result comes back to the UI loop as a replyMsg.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/assistant"
)

const (
	title        = "健康管理助手"
	statusReady  = "就绪"
	statusBusy   = "AI思考中..."
	busyNotice   = "⏳ 正在处理上一条消息，请稍候"
	defaultWidth = 80
	chromeLines  = 4
)

// replyMsg carries the agents' answers from the worker to the UI loop.
type replyMsg struct {
	replies []assistant.Reply
}

type Model struct {
	ctx     context.Context
	session *assistant.Session

	input      []rune
	transcript []string
	status     string
	busy       bool
	width      int
	height     int
	wrap       int

	exiting    bool
	terminated bool
}

func New(ctx context.Context, s *assistant.Session, cfg model.UIConfig) Model {
	wrap := cfg.WrapWidth
	if wrap <= 0 {
		wrap = defaultWidth
	}
	m := Model{ctx: ctx, session: s, status: statusReady, wrap: wrap}
	// Init dispatches the welcome worker for an empty session.
	if s.Empty() {
		m.busy = true
		m.status = statusBusy
	}
	m.push(assistant.Banner())
	for _, line := range assistant.LoadedSummary(s.Histories()) {
		m.push(line)
	}
	return m
}

// Init greets a user whose histories are all empty.
func (m Model) Init() tea.Cmd {
	if !m.session.Empty() {
		return nil
	}
	return m.welcome()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if msg.Width > 0 && msg.Width < m.wrap {
			m.wrap = msg.Width
		}
		return m, nil

	case replyMsg:
		m.busy = false
		m.status = statusReady
		for _, r := range msg.replies {
			m.push(fmt.Sprintf("🤖 %s: %s", r.Agent, assistant.FormatAdvice(r.Advice)))
			m.push(assistant.FormatElapsed(r))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.exiting = true
		return m, tea.Quit
	case tea.KeyEnter:
		if m.busy {
			m.status = busyNotice
			return m, nil
		}
		raw := string(m.input)
		m.input = m.input[:0]
		return m.submit(raw)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m Model) submit(raw string) (tea.Model, tea.Cmd) {
	outcome := m.session.Screen(raw)
	switch outcome.Kind {
	case assistant.OutcomeRejected:
		m.push("⚠️ " + outcome.Validation.Message)
		if outcome.Terminate {
			m.push(assistant.TerminationNotice)
			m.terminated = true
			return m, tea.Quit
		}
	case assistant.OutcomeCommand:
		return m.command(outcome.Command)
	case assistant.OutcomeMessage:
		m.push("👤 你: " + outcome.Text)
		m.busy = true
		m.status = statusBusy
		return m, m.ask(outcome.Text)
	}
	return m, nil
}

func (m Model) command(cmd model.Command) (tea.Model, tea.Cmd) {
	switch cmd {
	case model.CommandHelp:
		m.push(assistant.HelpText(m.session.Params()))
	case model.CommandHistory:
		m.push(assistant.FormatHistory(m.session.Histories()))
	case model.CommandParams:
		m.push(assistant.FormatParams(m.session.Params()))
	case model.CommandSave:
		if err := m.session.Persist(m.ctx); err != nil {
			m.push("⚠️ 保存失败: " + err.Error())
		} else {
			m.push(assistant.SavedNotice)
		}
	case model.CommandClear:
		if err := m.session.Clear(m.ctx); err != nil {
			m.push("⚠️ 清除失败: " + err.Error())
			return m, nil
		}
		m.transcript = nil
		m.push(assistant.ClearedNotice)
		m.busy = true
		m.status = statusBusy
		return m, m.welcome()
	case model.CommandExit:
		m.exiting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) ask(text string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return replyMsg{replies: s.Ask(ctx, text)}
	}
}

func (m Model) welcome() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return replyMsg{replies: s.Welcome(ctx)}
	}
}

// push appends a block to the transcript, wrapped to the window width.
func (m *Model) push(block string) {
	m.transcript = append(m.transcript, assistant.Wrap(block, m.wrap)...)
	m.transcript = append(m.transcript, "")
}

func (m Model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s]\n", title, m.status)
	b.WriteString(strings.Repeat("─", m.wrap))
	b.WriteString("\n")

	lines := m.transcript
	if m.height > chromeLines && len(lines) > m.height-chromeLines {
		lines = lines[len(lines)-(m.height-chromeLines):]
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", m.wrap))
	fmt.Fprintf(&b, "\n> %s█", string(m.input))
	return b.String()
}

// Terminated reports whether the security threshold ended the session.
func (m Model) Terminated() bool { return m.terminated }
