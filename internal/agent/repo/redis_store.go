package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// RedisHistoryStore keeps one list per (persona, user) with a sliding TTL.
type RedisHistoryStore struct {
	rdb       redis.Cmdable
	namespace string
	ttl       time.Duration
}

func NewRedisHistoryStore(rdb redis.Cmdable, namespace string, ttl time.Duration) *RedisHistoryStore {
	return &RedisHistoryStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (r *RedisHistoryStore) historyKey(userID string) string {
	return fmt.Sprintf("history:%s:%s:messages", r.namespace, userID)
}

func (r *RedisHistoryStore) Load(ctx context.Context, userID string) ([]model.HistoryRecord, error) {
	key := r.historyKey(userID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.HistoryRecord{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load history from redis")
		return []model.HistoryRecord{}, errx.WrapRedis(err)
	}

	records := make([]model.HistoryRecord, 0, len(rows))
	for i, s := range rows {
		var rec model.HistoryRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			logx.Warn().Err(err).Str("key", key).Int("index", i).Msg("skipping malformed history record")
			continue
		}
		if !rec.Role.Valid() {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save replaces the list atomically and refreshes the TTL.
func (r *RedisHistoryStore) Save(ctx context.Context, userID string, records []model.HistoryRecord) error {
	key := r.historyKey(userID)

	rows := make([]any, 0, len(records))
	for _, rec := range validRecords(records) {
		b, err := json.Marshal(rec)
		if err != nil {
			logx.Error().Err(err).Str("user_id", userID).Msg("failed to marshal history record")
			return errx.WrapPersistence(fmt.Errorf("marshal record: %w", err))
		}
		rows = append(rows, b)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(rows) > 0 {
			pipe.RPush(ctx, key, rows...)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save history to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistoryStore) Clear(ctx context.Context, userID string) error {
	key := r.historyKey(userID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.HistoryStore = (*RedisHistoryStore)(nil)
