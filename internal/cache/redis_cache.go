package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dukaan/backend/internal/domain"
)

const reportKeyPrefix = "dukaan:report:"

type RedisReportCache struct {
	client redis.UniversalClient
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

// NewRedisReportCacheFromClient wraps an existing client, e.g. one pointed
// at a test server.
func NewRedisReportCacheFromClient(client redis.UniversalClient) *RedisReportCache {
	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (*domain.PeriodReport, bool, error) {
	val, err := c.client.Get(ctx, reportKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.PeriodReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value *domain.PeriodReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKeyPrefix+key, payload, ttl).Err()
}

// Invalidate scans for report keys and deletes them in batches.
func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, reportKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
