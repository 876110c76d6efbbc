package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cotizador/backend/internal/domain"
)

type RedisDetailCache struct {
	client *redis.Client
}

func NewRedisDetailCache(addr string, password string, db int) *RedisDetailCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDetailCache{client: client}
}

func (c *RedisDetailCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDetailCache) Close() error {
	return c.client.Close()
}

func (c *RedisDetailCache) Get(ctx context.Context, key string) (*domain.QuotationDetail, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var detail domain.QuotationDetail
	if err := json.Unmarshal([]byte(val), &detail); err != nil {
		return nil, false, err
	}
	return &detail, true, nil
}

func (c *RedisDetailCache) Set(ctx context.Context, key string, value *domain.QuotationDetail, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
