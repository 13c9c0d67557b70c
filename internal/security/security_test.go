package security

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HealthAssistant-core/server/internal/agent/guard"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
)

func fixedLog(buf *bytes.Buffer) *Log {
	l := NewLog(buf)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local) }
	return l
}

func TestLogRecordFormat(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLog(&buf)

	require.NoError(t, l.Record("安全防护", "sudo rm -rf /", "检测到潜在危险命令 'sudo'，已阻止执行"))

	want := "[2024-05-01 09:30:00] 安全防护: 检测到潜在危险命令 'sudo'，已阻止执行\nUser Input: 'sudo rm -rf /'\n\n"
	assert.Equal(t, want, buf.String())
	assert.Len(t, l.Entries(), 1)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogRecordWriteFailureKeepsEntry(t *testing.T) {
	l := NewLog(failingWriter{})

	err := l.Record("安全防护", "x", "y")
	require.Error(t, err)
	assert.Equal(t, errx.KindPersistence, errx.KindOf(err))
	assert.Len(t, l.Entries(), 1)
}

func TestOpenFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security_events.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	l, closer, err := OpenFileLog(path)
	require.NoError(t, err)
	require.NoError(t, l.Record("敏感内容过滤", "毒品", "您的问题包含不适当内容，请重新表述"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "old\n[")
	assert.Contains(t, string(data), "User Input: '毒品'\n\n")
}

func TestTrackerIgnoresInputErrors(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(fixedLog(&buf), 5)

	for i := 0; i < 10; i++ {
		assert.False(t, tr.Observe(guard.CategoryInputError, "输入过长", "x"))
	}
	assert.Zero(t, tr.Count())
	assert.Empty(t, buf.String())
}

func TestTrackerTerminatesAtThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := fixedLog(&buf)
	tr := NewTracker(log, 5)

	for i := 0; i < 4; i++ {
		cat := guard.CategorySecurity
		if i%2 == 1 {
			cat = guard.CategorySensitive
		}
		assert.False(t, tr.Observe(cat, "blocked", "input"))
	}
	assert.True(t, tr.Observe(guard.CategorySecurity, "blocked", "sudo"))
	assert.Equal(t, 5, tr.Count())

	entries := log.Entries()
	require.Len(t, entries, 6)
	last := entries[5]
	assert.Equal(t, TerminationEvent, last.Type)
	assert.Equal(t, "多次违规", last.UserInput)
	assert.Equal(t, "累计安全事件: 5", last.Details)
}

func TestTrackerDefaultThreshold(t *testing.T) {
	tr := NewTracker(nil, 0)
	assert.Equal(t, DefaultThreshold, tr.Threshold())
}
