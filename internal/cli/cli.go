// Package cli is the line-oriented terminal interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/assistant"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

const (
	userPrompt      = "\n👤 你: "
	interruptNotice = "\n⚠️ 中断检测，正在保存历史记录..."
)

// Terminal reads user lines from in and renders replies to out with a
// character-paced stream. A Terminal is single-use: Run releases the input
// reader when it returns.
type Terminal struct {
	lines <-chan string
	done  chan struct{}
	once  sync.Once
	out   io.Writer
	delay time.Duration
	width int
	sleep func(time.Duration)
}

func New(in io.Reader, out io.Writer, cfg model.UIConfig) *Terminal {
	done := make(chan struct{})
	return &Terminal{
		lines: scanLines(in, done),
		done:  done,
		out:   out,
		delay: cfg.StreamDelay,
		width: cfg.WrapWidth,
		sleep: time.Sleep,
	}
}

// AskUserID prompts for the user ID; blank input or EOF selects the default user.
func (t *Terminal) AskUserID() string {
	fmt.Fprint(t.out, "请输入用户ID: ")
	line, ok := <-t.lines
	if !ok {
		fmt.Fprintln(t.out)
	}
	if id := strings.TrimSpace(line); id != "" {
		return id
	}
	return assistant.DefaultUserID
}

// Run drives the conversation until /exit, EOF, interruption or a security
// termination. Histories are persisted on every exit path except termination.
func (t *Terminal) Run(ctx context.Context, s *assistant.Session) error {
	defer t.once.Do(func() { close(t.done) })

	fmt.Fprintln(t.out, "\n"+assistant.Banner())
	for _, line := range assistant.LoadedSummary(s.Histories()) {
		fmt.Fprintln(t.out, line)
	}

	for {
		if s.Empty() {
			t.showReplies(s.Welcome(ctx))
		}

		fmt.Fprint(t.out, userPrompt)
		var (
			raw string
			ok  bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out, interruptNotice)
			t.persist(context.WithoutCancel(ctx), s)
			return nil
		case raw, ok = <-t.lines:
		}
		if !ok {
			fmt.Fprintln(t.out)
			t.persist(ctx, s)
			fmt.Fprintln(t.out, assistant.GoodbyeNotice)
			return nil
		}

		outcome := s.Screen(raw)
		switch outcome.Kind {
		case assistant.OutcomeEmpty:
			continue
		case assistant.OutcomeRejected:
			fmt.Fprintf(t.out, "⚠️ %s\n", outcome.Validation.Message)
			if outcome.Terminate {
				fmt.Fprintln(t.out, assistant.TerminationNotice)
				return assistant.ErrTerminated
			}
		case assistant.OutcomeCommand:
			if done := t.handleCommand(ctx, s, outcome.Command); done {
				return nil
			}
		case assistant.OutcomeMessage:
			t.showReplies(s.Ask(ctx, outcome.Text))
		}
	}
}

func (t *Terminal) handleCommand(ctx context.Context, s *assistant.Session, cmd model.Command) bool {
	switch cmd {
	case model.CommandHelp:
		t.stream(assistant.HelpText(s.Params()))
	case model.CommandHistory:
		t.stream(assistant.FormatHistory(s.Histories()))
	case model.CommandParams:
		t.stream(assistant.FormatParams(s.Params()))
	case model.CommandClear:
		if err := s.Clear(ctx); err != nil {
			fmt.Fprintf(t.out, "⚠️ 清除失败: %v\n", err)
			return false
		}
		fmt.Fprintln(t.out, assistant.ClearedNotice)
	case model.CommandSave:
		if t.persist(ctx, s) {
			fmt.Fprintln(t.out, assistant.SavedNotice)
		}
	case model.CommandExit:
		t.persist(ctx, s)
		fmt.Fprintln(t.out, assistant.GoodbyeNotice)
		return true
	}
	return false
}

func (t *Terminal) showReplies(replies []assistant.Reply) {
	for _, r := range replies {
		fmt.Fprintf(t.out, "\n🤖 %s: ", r.Agent)
		t.stream(assistant.FormatAdvice(r.Advice))
		fmt.Fprintln(t.out, assistant.FormatElapsed(r))
	}
}

func (t *Terminal) persist(ctx context.Context, s *assistant.Session) bool {
	if err := s.Persist(ctx); err != nil {
		logx.Error().Err(err).Str("user_id", s.UserID()).Msg("Failed to persist histories")
		fmt.Fprintf(t.out, "⚠️ 保存失败: %v\n", err)
		return false
	}
	return true
}

// stream prints text rune by rune, wrapped to the configured width.
func (t *Terminal) stream(text string) {
	for _, line := range assistant.Wrap(text, t.width) {
		for _, r := range line {
			fmt.Fprint(t.out, string(r))
			t.pause(t.delay)
		}
		fmt.Fprintln(t.out)
		t.pause(2 * t.delay)
	}
}

func (t *Terminal) pause(d time.Duration) {
	if d > 0 {
		t.sleep(d)
	}
}

// scanLines feeds input lines to a channel that is closed on EOF. The reader
// stops once done is closed; a Scan already blocked on in returns first.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case <-done:
				return
			default:
			}
			select {
			case ch <- sc.Text():
			case <-done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			logx.Warn().Err(err).Msg("stdin closed with error")
		}
	}()
	return ch
}
