package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

const (
	defaultLoadAttempts = 3
	defaultLoadBackoff  = 500 * time.Millisecond
)

// FileStore keeps every user's history in one JSON array file. Writes go
// through <path>.tmp and a rename so readers never observe a torn file.
type FileStore struct {
	path     string
	attempts int
	backoff  time.Duration

	mu sync.Mutex
}

type FileStoreOption func(*FileStore)

// WithLoadBackoff overrides the pause between load attempts on a corrupt file.
func WithLoadBackoff(d time.Duration) FileStoreOption {
	return func(s *FileStore) { s.backoff = d }
}

// NewFileStore opens path, creating it (or resetting it when it is not valid
// JSON) with an empty array.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is empty")
	}
	s := &FileStore{path: path, attempts: defaultLoadAttempts, backoff: defaultLoadBackoff}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errx.WrapPersistence(fmt.Errorf("read %s: %w", path, err))
	case !json.Valid(data):
		logx.Warn().Str("path", path).Msg("history file is not valid JSON, resetting")
	default:
		return s, nil
	}

	if err := s.writeAll([]model.UserHistory{}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

// Load returns the user's records, skipping records with an unknown role.
// A corrupt file is re-read a few times before giving up with an empty slice.
func (s *FileStore) Load(ctx context.Context, userID string) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readDocuments(ctx)
	if err != nil {
		return []model.HistoryRecord{}, err
	}
	for _, doc := range docs {
		if doc.UserID == userID {
			return validRecords(doc.Messages), nil
		}
	}
	return []model.HistoryRecord{}, nil
}

// Save replaces the user's records and stamps last_updated. The file is left
// untouched when it cannot be read, so other users' documents survive.
func (s *FileStore) Save(ctx context.Context, userID string, records []model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readDocuments(ctx)
	if err != nil {
		return err
	}
	now := time.Now().Format(time.RFC3339Nano)
	messages := validRecords(records)

	updated := false
	for i := range docs {
		if docs[i].UserID == userID {
			docs[i].Messages = messages
			docs[i].LastUpdated = now
			updated = true
		}
	}
	if !updated {
		docs = append(docs, model.UserHistory{UserID: userID, LastUpdated: now, Messages: messages})
	}
	return s.writeAll(docs)
}

// Clear drops the user's document from the file.
func (s *FileStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readDocuments(ctx)
	if err != nil {
		return err
	}
	kept := docs[:0]
	for _, doc := range docs {
		if doc.UserID != userID {
			kept = append(kept, doc)
		}
	}
	return s.writeAll(kept)
}

// ====================== Helper function ======================

// readDocuments reads the whole file, retrying while it is not valid JSON.
// A missing file reads as no documents. Callers hold s.mu.
func (s *FileStore) readDocuments(ctx context.Context) ([]model.UserHistory, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return []model.UserHistory{}, nil
			}
			return nil, errx.WrapPersistence(fmt.Errorf("read %s: %w", s.path, err))
		}
		if !json.Valid(data) {
			lastErr = fmt.Errorf("history file %s is not valid JSON", s.path)
			logx.Warn().Str("path", s.path).Int("attempt", attempt+1).Msg("retrying history read")
			continue
		}
		return decodeDocuments(data), nil
	}
	return nil, errx.WrapPersistence(lastErr)
}

func (s *FileStore) writeAll(docs []model.UserHistory) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return errx.WrapPersistence(fmt.Errorf("encode history: %w", err))
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		logx.Error().Err(err).Str("path", tmp).Msg("failed to write history temp file")
		return errx.WrapPersistence(fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		logx.Error().Err(err).Str("path", s.path).Msg("failed to replace history file")
		return errx.WrapPersistence(fmt.Errorf("rename %s: %w", tmp, err))
	}
	return nil
}

// decodeDocuments tolerates a non-array top level and malformed entries.
func decodeDocuments(data []byte) []model.UserHistory {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []model.UserHistory{}
	}
	docs := make([]model.UserHistory, 0, len(raw))
	for _, r := range raw {
		var doc model.UserHistory
		if err := json.Unmarshal(r, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func validRecords(records []model.HistoryRecord) []model.HistoryRecord {
	out := make([]model.HistoryRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Role.Valid() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

var _ model.HistoryStore = (*FileStore)(nil)
