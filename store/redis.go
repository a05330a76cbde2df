package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV keeps durable client state in Redis under one key prefix. A prefix
// holds exactly one signed-in identity with its cookies, task list and login
// warning, so machines sharing a prefix share one account. Give each account
// its own prefix (TASKDESK_KEY_PREFIX); a login under a shared prefix replaces
// the previous account for every machine using it.
type RedisKV struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("REDIS_ADDR 为空")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(password),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func NewRedisKV(rdb *redis.Client, keyPrefix string) *RedisKV {
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = "taskdesk:"
	}
	slog.Debug("kv store: redis enabled", "prefix", keyPrefix)
	return &RedisKV{rdb: rdb, keyPrefix: keyPrefix}
}

func (s *RedisKV) key(k string) string {
	return s.keyPrefix + strings.TrimSpace(k)
}

func (s *RedisKV) Get(key string) (string, bool, error) {
	if s == nil || s.rdb == nil {
		return "", false, errors.New("redis kv 未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisKV) Set(key, value string) error {
	if s == nil || s.rdb == nil {
		return errors.New("redis kv 未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// No TTL: localStorage entries never expire on their own.
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

func (s *RedisKV) Delete(key string) error {
	if s == nil || s.rdb == nil {
		return errors.New("redis kv 未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.rdb.Del(ctx, s.key(key)).Err()
}
