package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mearman/mcp-wayback-machine/internal/core"
)

const defaultRedisPrefix = "wayback:response:"

// RedisCache keeps cached responses in Redis hashes with a per-key TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	owned  bool
}

var _ core.ResponseCache = (*RedisCache)(nil)

// NewRedisCache wraps an existing client. The caller keeps ownership.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: defaultRedisPrefix}
}

// DialRedisCache connects to addr and verifies the server answers.
func DialRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	cache := NewRedisCache(client)
	cache.owned = true
	return cache, nil
}

// WithPrefix namespaces keys, mainly for tests sharing one server.
func (r *RedisCache) WithPrefix(prefix string) *RedisCache {
	r.prefix = prefix
	return r
}

func (r *RedisCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	status, _ := strconv.Atoi(result["status_code"])

	header := http.Header{}
	if raw := result["header"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &header); err != nil {
			return nil, fmt.Errorf("decode cached headers: %w", err)
		}
	}

	var storedAt time.Time
	if ts, ok := result["stored_at"]; ok {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			storedAt = time.Unix(0, nanos).UTC()
		}
	}

	return &core.CachedResponse{
		StatusCode: status,
		Header:     header,
		Body:       []byte(result["body"]),
		StoredAt:   storedAt,
	}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, resp *core.CachedResponse, ttl time.Duration) error {
	if resp == nil || ttl <= 0 {
		return nil
	}

	headerJSON, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("encode cached headers: %w", err)
	}

	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	pipe := r.client.TxPipeline()
	fullKey := r.prefix + key
	pipe.Del(ctx, fullKey)
	pipe.HSet(ctx, fullKey, map[string]interface{}{
		"status_code": resp.StatusCode,
		"header":      string(headerJSON),
		"body":        resp.Body,
		"stored_at":   storedAt.UnixNano(),
	})
	pipe.Expire(ctx, fullKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	return nil
}

// Ping checks that the server still answers.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client when this cache dialled it.
func (r *RedisCache) Close() error {
	if r == nil || !r.owned {
		return nil
	}
	return r.client.Close()
}
