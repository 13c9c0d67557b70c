package security

import (
	"fmt"
	"sync"

	"github.com/HealthAssistant-core/server/internal/agent/guard"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

const (
	DefaultThreshold = 5

	TerminationEvent = "会话终止"
	terminationInput = "多次违规"
)

// Tracker counts escalating rejections for one session. The counter is never
// reset and never persisted.
type Tracker struct {
	mu        sync.Mutex
	log       *Log
	threshold int
	count     int
}

func NewTracker(log *Log, threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = NewLog(nil)
	}
	return &Tracker{log: log, threshold: threshold}
}

// Observe records a rejection. Only security and sensitive-content categories
// are counted and logged. It reports whether the session must terminate.
func (t *Tracker) Observe(category guard.Category, message, originalInput string) bool {
	if !category.Escalates() {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.log.Record(string(category), originalInput, message)
	t.count++
	logx.Warn().
		Str("category", string(category)).
		Int("security_count", t.count).
		Int("threshold", t.threshold).
		Msg("Security event recorded")

	if t.count < t.threshold {
		return false
	}
	_ = t.log.Record(TerminationEvent, terminationInput, fmt.Sprintf("累计安全事件: %d", t.count))
	logx.Warn().Int("security_count", t.count).Msg("Session terminated after repeated violations")
	return true
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Tracker) Threshold() int { return t.threshold }
