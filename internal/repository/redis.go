package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/model"
)

// RedisClient backs the login-failure counters and the capped mirror of
// recent audit records dashboards poll. Redis is optional; when absent the
// service falls back to in-memory counters.
type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// Incr bumps a windowed failure counter. The TTL restarts with every
// failure so the window trails the most recent one.
func (r *RedisClient) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.Client.Pipeline()
	incr := pipe.Incr(ctx, "failures:"+key)
	pipe.Expire(ctx, "failures:"+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RedisClient) Count(ctx context.Context, key string) (int64, error) {
	n, err := r.Client.Get(ctx, "failures:"+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// PushAudit mirrors an audit record into a capped list for cheap dashboard
// reads. The durable copy is the SQL table; a failed mirror is ignored by
// callers.
func (r *RedisClient) PushAudit(ctx context.Context, listKey string, listMax int, rec *model.AuditRecord) error {
	if listKey == "" {
		listKey = "audit_records"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.Client.Pipeline()
	pipe.LPush(ctx, listKey, payload)
	pipe.LTrim(ctx, listKey, 0, int64(listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisClient) RecentAudit(ctx context.Context, listKey string, limit int) ([]*model.AuditRecord, error) {
	if listKey == "" {
		listKey = "audit_records"
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	raw, err := r.Client.LRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]*model.AuditRecord, 0, len(raw))
	for _, item := range raw {
		var rec model.AuditRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}
