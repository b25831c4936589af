// Package cache 提供 Redis 客户端封装与 JSON 读写助手
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// Cache 字节级缓存接口，命中与否通过 ok 返回
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// SetNX 仅在 key 不存在时写入，返回是否写入
	SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache Redis 缓存实现
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// New 创建 Redis 缓存实例并检查连通性
func New(ctx context.Context, cfg Config, l *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l.InfoContext(ctx, "redis connected", "addr", cfg.Addr)
	return &RedisCache{client: client, logger: l.With("component", "redis")}, nil
}

var _ Cache = (*RedisCache)(nil)

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		rc.logger.ErrorContext(ctx, "redis get failed", "key", key, "error", err)
		return nil, false, err
	}
	return val, true, nil
}

func (rc *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := rc.client.Set(ctx, key, val, ttl).Err(); err != nil {
		rc.logger.ErrorContext(ctx, "redis set failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (rc *RedisCache) SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	ok, err := rc.client.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		rc.logger.ErrorContext(ctx, "redis setnx failed", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}

// Client 底层客户端，供限流器复用连接
func (rc *RedisCache) Client() *redis.Client { return rc.client }

func (rc *RedisCache) Close() error { return rc.client.Close() }

// GetJSON 读取并反序列化，未命中时 ok=false
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON 序列化并写入
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// AddJSON 序列化并仅在 key 不存在时写入
func AddJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.SetNX(ctx, key, raw, ttl)
}
