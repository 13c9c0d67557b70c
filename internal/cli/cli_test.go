package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HealthAssistant-core/server/internal/agent/guard"
	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/assistant"
	"github.com/HealthAssistant-core/server/internal/security"
)

type stubAgent struct {
	name    string
	queries []string
}

func (a *stubAgent) Name() string              { return a.name }
func (a *stubAgent) Params() model.AgentParams { return model.AgentParams{Name: a.name, Temperature: 0.7, TopP: 0.9} }
func (a *stubAgent) Chat(ctx context.Context, in model.QueryInput) model.Advice {
	a.queries = append(a.queries, in.Query)
	return model.NewAdvice("建议多喝水", []string{"内部知识库"}, model.AdviceGeneral, false, 0.8)
}

type stubStore struct {
	mu    sync.Mutex
	data  map[string][]model.HistoryRecord
	saves int
}

func (s *stubStore) Load(ctx context.Context, userID string) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.HistoryRecord(nil), s.data[userID]...), nil
}

func (s *stubStore) Save(ctx context.Context, userID string, records []model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.data[userID] = append([]model.HistoryRecord(nil), records...)
	return nil
}

func (s *stubStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

func newSession(t *testing.T, history []model.HistoryRecord) (*assistant.Session, *stubAgent, *stubStore) {
	t.Helper()
	agent := &stubAgent{name: "AI健康管理师1号(温和)"}
	store := &stubStore{data: map[string][]model.HistoryRecord{}}
	if history != nil {
		store.data["alice"] = history
	}
	s, err := assistant.NewSession(context.Background(), assistant.Config{
		UserID:  "alice",
		Rules:   guard.DefaultRules(),
		Tracker: security.NewTracker(security.NewLog(nil), 5),
	}, []assistant.Persona{{Agent: agent, Store: store}})
	require.NoError(t, err)
	return s, agent, store
}

func newTerminal(input string, out *bytes.Buffer) *Terminal {
	return New(strings.NewReader(input), out, model.UIConfig{WrapWidth: 80})
}

func existingHistory() []model.HistoryRecord {
	return []model.HistoryRecord{
		{Role: model.RoleUser, Content: "你好", Timestamp: "2024-05-01T09:30:15"},
		{Role: model.RoleAssistant, Content: "您好", Timestamp: "2024-05-01T09:30:16"},
	}
}

func TestAskUserID(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, "alice", newTerminal("  alice \n", &out).AskUserID())
	assert.Equal(t, assistant.DefaultUserID, newTerminal("\n", &out).AskUserID())
	assert.Equal(t, assistant.DefaultUserID, newTerminal("", &out).AskUserID())
	assert.Contains(t, out.String(), "请输入用户ID: ")
}

func TestRunWelcomesNewUserAndExits(t *testing.T) {
	s, agent, store := newSession(t, nil)
	var out bytes.Buffer

	err := newTerminal("退出\n", &out).Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"请向新用户问好"}, agent.queries)
	got := out.String()
	assert.Contains(t, got, "=== 健康管理师咨询系统 ===")
	assert.Contains(t, got, "AI健康管理师1号(温和) 加载历史记录: 0条")
	assert.Contains(t, got, "🤖 AI健康管理师1号(温和): 建议多喝水\n\n🔍 信息来源: 内部知识库\n💡 一般建议\n📊 置信度: 80.0%\n⏱️ 耗时: ")
	assert.Contains(t, got, "对话已保存，再见！")
	assert.Len(t, store.data["alice"], 1)
}

func TestRunMessageAndCommands(t *testing.T) {
	s, agent, _ := newSession(t, existingHistory())
	var out bytes.Buffer

	input := strings.Join([]string{"", "血压怎么控制", "/history", "参数", "帮助", "/save", "/exit"}, "\n") + "\n"
	require.NoError(t, newTerminal(input, &out).Run(context.Background(), s))

	require.Len(t, agent.queries, 1)
	assert.Equal(t, "对话上下文:\n用户: 你好\n助手: 您好\n用户: 血压怎么控制\n\n请回复: 血压怎么控制", agent.queries[0])

	got := out.String()
	assert.Contains(t, got, "加载历史记录: 2条")
	assert.Contains(t, got, "09:30:15 👤 你: 你好")
	assert.Contains(t, got, "=== 系统参数 ===")
	assert.Contains(t, got, "=== 健康咨询系统帮助 ===")
	assert.Contains(t, got, "✅ 历史记录已保存")
}

func TestRunClearTriggersWelcome(t *testing.T) {
	s, agent, store := newSession(t, existingHistory())
	var out bytes.Buffer

	require.NoError(t, newTerminal("/clear\n/exit\n", &out).Run(context.Background(), s))

	assert.Contains(t, out.String(), "✅ 历史记录已清除")
	assert.Equal(t, []string{"请向新用户问好"}, agent.queries)
	assert.Len(t, store.data["alice"], 1)
}

func TestRunEOFPersists(t *testing.T) {
	s, _, store := newSession(t, existingHistory())
	var out bytes.Buffer

	require.NoError(t, newTerminal("", &out).Run(context.Background(), s))
	assert.Equal(t, 1, store.saves)
	assert.Contains(t, out.String(), "对话已保存，再见！")
}

func TestRunTerminatesAfterRepeatedViolations(t *testing.T) {
	s, agent, store := newSession(t, existingHistory())
	var out bytes.Buffer

	input := strings.Repeat("sudo reboot\n", 5) + "血压怎么控制\n"
	err := newTerminal(input, &out).Run(context.Background(), s)
	require.ErrorIs(t, err, assistant.ErrTerminated)

	got := out.String()
	assert.Equal(t, 5, strings.Count(got, "⚠️ 检测到潜在危险命令 'sudo'，已阻止执行"))
	assert.Contains(t, got, "⛔ 检测到多次安全违规，会话已终止")
	assert.Empty(t, agent.queries)
	assert.Zero(t, store.saves)
}

func TestRunInputErrorsDoNotEscalate(t *testing.T) {
	s, _, _ := newSession(t, existingHistory())
	var out bytes.Buffer

	input := strings.Repeat(strings.Repeat("长", 501)+"\n", 6) + "/exit\n"
	require.NoError(t, newTerminal(input, &out).Run(context.Background(), s))
	assert.Equal(t, 6, strings.Count(out.String(), "⚠️ 输入过长（501字符），请控制在500字符内"))
}

func TestRunInterrupted(t *testing.T) {
	s, _, store := newSession(t, existingHistory())
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	require.NoError(t, New(r, &out, model.UIConfig{}).Run(ctx, s))
	assert.Contains(t, out.String(), "中断检测")
	assert.Equal(t, 1, store.saves)
}

func TestStreamWrapsAndPaces(t *testing.T) {
	var out bytes.Buffer
	term := New(strings.NewReader(""), &out, model.UIConfig{WrapWidth: 3, StreamDelay: 1})
	var sleeps int
	term.sleep = func(time.Duration) { sleeps++ }

	term.stream("健康管理")
	assert.Equal(t, "健康管\n理\n", out.String())
	assert.Equal(t, 6, sleeps)
}

func TestRunReleasesInputReader(t *testing.T) {
	s, _, _ := newSession(t, existingHistory())
	r, w := io.Pipe()
	defer w.Close()
	var out bytes.Buffer
	term := New(r, &out, model.UIConfig{WrapWidth: 80})

	go func() { _, _ = w.Write([]byte("/exit\n")) }()
	require.NoError(t, term.Run(context.Background(), s))

	// A line typed after exit is read but never delivered.
	_, err := w.Write([]byte("还有一行\n"))
	require.NoError(t, err)

	select {
	case line, ok := <-term.lines:
		assert.False(t, ok, "unexpected line %q", line)
	case <-time.After(time.Second):
		t.Fatal("input reader still running after Run returned")
	}
}
