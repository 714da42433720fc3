package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

const analysisKeyPrefix = "analysis:"

// RedisStore is an AnalysisStore backed by Redis, for deployments running
// more than one server instance. Records are stored as JSON under
// "analysis:{id}" with a TTL so finished runs age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, log: log}, nil
}

// NewRedisStoreFromClient wraps an existing client, used by tests with
// miniredis.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, log: log}
}

func analysisKey(id string) string {
	return analysisKeyPrefix + id
}

// Put implements AnalysisStore.
func (s *RedisStore) Put(ctx context.Context, a *Analysis) error {
	a.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis %s: %w", a.ID, err)
	}
	if err := s.client.Set(ctx, analysisKey(a.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store analysis %s: %w", a.ID, err)
	}
	return nil
}

// Get implements AnalysisStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*Analysis, error) {
	data, err := s.client.Get(ctx, analysisKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError("analysis", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch analysis %s: %w", id, err)
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &a, nil
}

// CompareAndSwap implements AnalysisStore using WATCH so two writers racing
// on the same key cannot both win.
func (s *RedisStore) CompareAndSwap(ctx context.Context, id string, expect types.AnalysisStatus, update func(*Analysis)) (bool, error) {
	key := analysisKey(id)
	swapped := false

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return errors.NewNotFoundError("analysis", id)
		}
		if err != nil {
			return err
		}
		var a Analysis
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		if a.Status != expect {
			return nil
		}

		update(&a)
		a.UpdatedAt = time.Now().UTC()
		next, err := json.Marshal(&a)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			swapped = false
			continue
		}
		if err != nil {
			return false, err
		}
		return swapped, nil
	}
	return false, fmt.Errorf("analysis %s: too much contention", id)
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
