package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tablegate/tablegate/internal/middleware"
)

// RedisIdempotencyStore shares replay state across gateway instances.
type RedisIdempotencyStore struct {
	client *RedisClient
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client *RedisClient, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idem:",
	}
}

func (s *RedisIdempotencyStore) GetOrLock(key string) (*middleware.IdempotencyRecord, bool) {
	ctx := context.Background()
	lock := middleware.IdempotencyRecord{
		CreatedAt:  time.Now().UTC(),
		Processing: true,
	}
	payload, _ := json.Marshal(lock)

	ok, err := s.client.Client.SetNX(ctx, s.prefix+key, payload, s.ttl).Result()
	if err == nil && ok {
		return nil, false // caller owns the lock
	}

	raw, err := s.client.Client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		// Key raced away or Redis is down; let the caller proceed.
		return nil, false
	}
	var rec middleware.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *RedisIdempotencyStore) Save(key string, status int, body []byte) {
	rec := middleware.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	payload, _ := json.Marshal(rec)
	_ = s.client.Client.Set(context.Background(), s.prefix+key, payload, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(key string) {
	_ = s.client.Client.Del(context.Background(), s.prefix+key).Err()
}

var _ middleware.IdempotencyStore = (*RedisIdempotencyStore)(nil)
