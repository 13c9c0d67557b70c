package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "chat_history_1.json"), WithLoadBackoff(time.Millisecond))
	require.NoError(t, err)
	return store
}

func TestNewFileStoreCreatesEmptyArray(t *testing.T) {
	store := newFileStore(t)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestNewFileStoreResetsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	records := []model.HistoryRecord{
		model.NewHistoryRecord(model.RoleUser, "血压高怎么办"),
		model.NewHistoryRecord(model.RoleAssistant, "建议低盐饮食"),
	}
	require.NoError(t, store.Save(ctx, "alice", records))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, records, got)

	other, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreSaveUpdatesExistingUser(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Save(ctx, "alice", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "一")}))
	require.NoError(t, store.Save(ctx, "bob", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "b")}))
	require.NoError(t, store.Save(ctx, "alice", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "二")}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var docs []model.UserHistory
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "alice", docs[0].UserID)
	assert.NotEmpty(t, docs[0].LastUpdated)
	require.Len(t, docs[0].Messages, 1)
	assert.Equal(t, "二", docs[0].Messages[0].Content)
	assert.Contains(t, string(data), "二", "non-ASCII text is written unescaped")
}

func TestFileStoreLoadSkipsUnknownRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	doc := `[
	  "garbage",
	  {"user_id": "alice", "last_updated": "2024-01-01T10:00:00", "messages": [
	    {"role": "user", "content": "你好", "timestamp": "2024-01-01T10:00:00.123456"},
	    {"role": "critic", "content": "??", "timestamp": "2024-01-01T10:00:01"},
	    {"role": "assistant", "content": "您好", "timestamp": "2024-01-01T10:00:02"}
	  ]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleUser, got[0].Role)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
}

func TestFileStoreLoadRetriesThenGivesUp(t *testing.T) {
	store := newFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("[{"), 0o644))

	got, err := store.Load(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, errx.KindPersistence, errx.KindOf(err))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFileStoreLoadNonArrayIsEmpty(t *testing.T) {
	store := newFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"user_id":"alice"}`), 0o644))

	got, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Save(ctx, "alice", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "a")}))
	require.NoError(t, store.Save(ctx, "bob", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "b")}))
	require.NoError(t, store.Clear(ctx, "alice"))

	alice, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alice)

	bob, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)
}

func TestFileStoreWritersKeepUnreadableFile(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, "bob", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "b")}))

	torn := []byte(`[{"user_id": "bob", "messages": [`)
	require.NoError(t, os.WriteFile(store.Path(), torn, 0o644))

	err := store.Save(ctx, "alice", []model.HistoryRecord{model.NewHistoryRecord(model.RoleUser, "a")})
	require.Error(t, err)
	assert.Equal(t, errx.KindPersistence, errx.KindOf(err))

	err = store.Clear(ctx, "alice")
	require.Error(t, err)
	assert.Equal(t, errx.KindPersistence, errx.KindOf(err))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, torn, data)
}
