package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

const (
	attemptTTL       = 24 * time.Hour
	maxUpdateRetries = 5
)

// RedisAttemptRepository stores each attempt as a JSON document in Redis.
// Updates use optimistic WATCH/MULTI transactions so concurrent autosaves of
// one attempt never overwrite each other.
type RedisAttemptRepository struct {
	rdb *redis.Client
}

// NewRedisAttemptRepository creates a new RedisAttemptRepository.
func NewRedisAttemptRepository(rdb *redis.Client) *RedisAttemptRepository {
	return &RedisAttemptRepository{rdb: rdb}
}

// Create inserts a new attempt; it fails if the key exists.
func (r *RedisAttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, config.CacheKey.AttemptKey(a.ID), data, attemptTTL).Result()
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	if !ok {
		return fmt.Errorf("attempt %s already exists", a.ID)
	}
	return nil
}

// GetByID retrieves an attempt.
func (r *RedisAttemptRepository) GetByID(ctx context.Context, id string) (*model.Attempt, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.AttemptKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	var a model.Attempt
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &a, nil
}

// Update runs fn inside a WATCH transaction, retrying on conflicts.
func (r *RedisAttemptRepository) Update(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	key := config.CacheKey.AttemptKey(id)
	var updated *model.Attempt

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrAttemptNotFound
		}
		if err != nil {
			return err
		}

		var a model.Attempt
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decode attempt: %w", err)
		}
		if err := fn(&a); err != nil {
			return err
		}
		next, err := json.Marshal(&a)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, attemptTTL)
			pipe.Set(ctx, config.CacheKey.AttemptSavesKey(id), a.Saves, attemptTTL)
			return nil
		})
		if err == nil {
			updated = &a
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update attempt %s: too much contention", id)
}
