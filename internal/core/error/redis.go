package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisNotFoundMessage describes a missing redis key.
const RedisNotFoundMessage = "history not found in redis"

// WrapRedis maps Redis errors to persistence failures.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, KindPersistence, RedisNotFoundMessage)
	}

	return New(err, KindPersistence, PersistenceErrorMessage)
}
