package model

import (
	"context"
	"time"
)

// Role is the author of a history record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// HistoryRecord is one persisted conversation message.
type HistoryRecord struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewHistoryRecord stamps a record with the current time in ISO-8601.
func NewHistoryRecord(role Role, content string) HistoryRecord {
	return HistoryRecord{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// Time parses the record timestamp. Both RFC 3339 and the zone-less
// microsecond layout of older history files are accepted.
func (h HistoryRecord) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, h.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UserHistory is the persisted per-user document.
type UserHistory struct {
	UserID      string          `json:"user_id"`
	LastUpdated string          `json:"last_updated"`
	Messages    []HistoryRecord `json:"messages"`
}

type HistoryStore interface {
	// Load returns the stored records for the user; an unknown user yields an empty slice.
	Load(ctx context.Context, userID string) ([]HistoryRecord, error)

	// Save replaces the user's records.
	Save(ctx context.Context, userID string, records []HistoryRecord) error

	// Clear removes the user's records.
	Clear(ctx context.Context, userID string) error
}
