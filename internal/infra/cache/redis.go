package cache

import (
	"context"
	"time"

	"app/internal/config"
	domainrepo "app/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Connect はRedisに接続してpingで疎通確認する。
func Connect(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

type redisRevocationCache struct {
	client *redis.Client
}

// RevocationCacheのRedis実装。
// deny-listとセッションマーカーはTTL付きキーなので自然に消える。
func NewRevocationCache(client *redis.Client) domainrepo.RevocationCache {
	return &redisRevocationCache{client: client}
}

func (c *redisRevocationCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// 値が無いときはエラーにせず ("", false, nil)
func (c *redisRevocationCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisRevocationCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
