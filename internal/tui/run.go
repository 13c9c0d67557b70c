package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/assistant"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// Run shows the window until the user exits. Histories are persisted on every
// exit path except a security termination; the farewell is printed to out
// once the alternate screen is gone.
func Run(ctx context.Context, s *assistant.Session, out io.Writer, cfg model.UIConfig) error {
	p := tea.NewProgram(New(ctx, s, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		logx.Warn().Err(err).Msg("window program stopped")
	}

	if m, ok := final.(Model); ok && m.Terminated() {
		fmt.Fprintln(out, assistant.TerminationNotice)
		return assistant.ErrTerminated
	}

	if perr := s.Persist(context.WithoutCancel(ctx)); perr != nil {
		fmt.Fprintf(out, "⚠️ 保存失败: %v\n", perr)
		return perr
	}
	fmt.Fprintln(out, assistant.GoodbyeNotice)
	return nil
}
