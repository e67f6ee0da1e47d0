package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

var (
	mu          sync.RWMutex
	redisClient *redis.Client
	redisPrefix = constants.RedisPrefixDefault
)

// InitRedis 初始化 Redis 客户端
// 连接失败时客户端仍然保留，限流中间件按各自规则处理故障，缓存读写退化为未命中。
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		Use(nil, "")
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	Use(client, cfg.Prefix)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Use 替换全局客户端，client 为 nil 时关闭缓存
func Use(client *redis.Client, prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = constants.RedisPrefixDefault
	}
	mu.Lock()
	defer mu.Unlock()
	redisClient = client
	redisPrefix = prefix
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	return Client() != nil
}

// Client 获取 Redis 客户端，未启用返回 nil
func Client() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return redisClient
}

// Close 关闭客户端
func Close() error {
	client := Client()
	if client == nil {
		return nil
	}
	Use(nil, "")
	return client.Close()
}

// GetJSON 获取 JSON 缓存；内容无法解析时删除该键并按未命中处理
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	client := Client()
	if client == nil {
		return false, nil
	}
	fullKey := buildKey(key)
	val, err := client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		logger.Warnw("cache_payload_invalid", "key", fullKey, "error", err)
		_ = client.Del(ctx, fullKey).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client := Client()
	if client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, buildKey(key), payload, ttl).Err()
}

// Del 删除缓存
func Del(ctx context.Context, key string) error {
	client := Client()
	if client == nil {
		return nil
	}
	return client.Del(ctx, buildKey(key)).Err()
}

func buildKey(key string) string {
	mu.RLock()
	prefix := redisPrefix
	mu.RUnlock()
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return prefix
	}
	return prefix + ":" + trimmed
}
