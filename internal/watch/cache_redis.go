package watch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisCachePrefix = "dramawatch:"

// RedisCacheBackend stores watch data in Redis with JSON serialization.
type RedisCacheBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisCacheBackend(client *redis.Client, prefix string) *RedisCacheBackend {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisCachePrefix
	}
	return &RedisCacheBackend{client: client, prefix: prefix + "cache:"}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) (WatchData, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return WatchData{}, false, nil
		}
		return WatchData{}, false, err
	}
	var data WatchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return WatchData{}, false, err
	}
	return data, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, data WatchData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, raw, ttl).Err()
}

func (r *RedisCacheBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
