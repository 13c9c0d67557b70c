package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

func TestFormatAdvice(t *testing.T) {
	a := model.NewAdvice("多喝水", []string{"中国居民膳食指南", "内部知识库"}, model.AdviceDiet, true, 0.856)

	want := "多喝水\n\n" +
		"🔍 信息来源: 中国居民膳食指南, 内部知识库\n" +
		"🍎 饮食建议\n" +
		"❗ 建议: 请尽快咨询专业医生\n" +
		"📊 置信度: 85.6%"
	assert.Equal(t, want, FormatAdvice(a))
}

func TestFormatAdviceWithoutSources(t *testing.T) {
	got := FormatAdvice(model.NewAdvice("hi", nil, model.AdviceGeneral, false, 1))
	assert.Equal(t, "hi\n\n💡 一般建议\n📊 置信度: 100.0%", got)
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "当前会话没有历史记录", FormatHistory([]AgentHistory{{Agent: "a"}}))

	long := strings.Repeat("长", 120)
	got := FormatHistory([]AgentHistory{
		{Agent: "一号", Records: []model.HistoryRecord{
			{Role: model.RoleUser, Content: "你好", Timestamp: "2024-05-01T09:30:15.123456"},
			{Role: model.RoleAssistant, Content: long, Timestamp: "bad"},
		}},
		{Agent: "二号"},
	})

	want := "=== 当前会话历史记录 ===\n\n🤖 一号 对话记录:\n" +
		"09:30:15 👤 你: 你好\n" +
		"--:--:-- 🤖 AI: " + strings.Repeat("长", 97) + "..."
	assert.Equal(t, want, got)
}

func TestFormatParamsAndHelp(t *testing.T) {
	params := []model.AgentParams{{Name: "一号", Temperature: 0.7, TopP: 0.9, HistoryFile: "chat_history_1.json"}}

	assert.Equal(t, "=== 系统参数 ===\n🤖 一号\n  temperature: 0.7\n  top_p: 0.9\n  history: chat_history_1.json", FormatParams(params))

	help := HelpText(params)
	assert.Contains(t, help, "/history 或 查看历史")
	assert.Contains(t, help, "2. 一号 (temperature: 0.7)")
	assert.True(t, strings.HasSuffix(help, "3. 所有对话记录会自动保存"))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "⏱️ 耗时: 1.25s", FormatElapsed(Reply{Elapsed: 1250 * time.Millisecond}))
}

func TestLoadedSummary(t *testing.T) {
	got := LoadedSummary([]AgentHistory{{Agent: "一号", Records: make([]model.HistoryRecord, 3)}})
	assert.Equal(t, []string{"一号 加载历史记录: 3条"}, got)
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "short", text: "abc", width: 80, want: []string{"abc"}},
		{name: "blank lines kept", text: "a\n\nb", width: 80, want: []string{"a", "", "b"}},
		{name: "cjk hard break", text: strings.Repeat("健", 5), width: 2, want: []string{"健健", "健健", "健"}},
		{name: "break at space", text: "hello world again", width: 11, want: []string{"hello world", "again"}},
		{name: "no width", text: "a\nb", width: 0, want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.width))
		})
	}
}
