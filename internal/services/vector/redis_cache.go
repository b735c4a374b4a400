package vector

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisProfileCache Redis 画像向量缓存，有序集合记录插入顺序
type RedisProfileCache struct {
	client   *redis.Client
	prefix   string
	capacity int
	timeout  time.Duration
	logger   *logger.Logger
}

// NewRedisProfileCache 连接 Redis 并创建缓存
func NewRedisProfileCache(ctx context.Context, cfg config.CacheConfig) (*RedisProfileCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.NewFitrankError(errors.ErrorTypeNetwork, errors.ErrCodeNetworkTimeout, "Failed to connect to redis").
			WithDetails(cfg.Redis.Addr).
			WithCause(err)
	}

	c := newRedisProfileCache(client, cfg.Redis.KeyPrefix, cfg.MaxItems, timeout)
	c.logger.Info("Profile vector cache initialized", logger.Fields{
		"type":     "redis",
		"addr":     cfg.Redis.Addr,
		"capacity": c.capacity,
	})
	return c, nil
}

func newRedisProfileCache(client *redis.Client, prefix string, capacity int, timeout time.Duration) *RedisProfileCache {
	if prefix == "" {
		prefix = "fitrank:profile_vec"
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &RedisProfileCache{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
		timeout:  timeout,
		logger:   logger.NewLogger("profile-vector-cache"),
	}
}

func (c *RedisProfileCache) entryKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *RedisProfileCache) orderKey() string {
	return c.prefix + ":order"
}

// Get 读取缓存，任何错误都视为未命中
func (c *RedisProfileCache) Get(ctx context.Context, key string) ([]float32, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Profile vector cache read failed", logger.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	vector, err := decodeVector(raw)
	if err != nil {
		c.logger.Warn("Profile vector cache entry corrupted", logger.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return vector, true
}

// Set 写入缓存并淘汰超出容量的最早条目
func (c *RedisProfileCache) Set(ctx context.Context, key string, vector []float32) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := encodeVector(vector)
	if err != nil {
		return
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.entryKey(key), raw, 0)
	pipe.ZAddNX(ctx, c.orderKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Profile vector cache write failed", logger.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	c.evictOverflow(ctx)
}

// evictOverflow 删除排在容量之外的最早条目
func (c *RedisProfileCache) evictOverflow(ctx context.Context) {
	size, err := c.client.ZCard(ctx, c.orderKey()).Result()
	if err != nil || size <= int64(c.capacity) {
		return
	}

	overflow := size - int64(c.capacity)
	oldest, err := c.client.ZRange(ctx, c.orderKey(), 0, overflow-1).Result()
	if err != nil || len(oldest) == 0 {
		return
	}

	keys := make([]string, 0, len(oldest))
	members := make([]interface{}, 0, len(oldest))
	for _, k := range oldest {
		keys = append(keys, c.entryKey(k))
		members = append(members, k)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, c.orderKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Profile vector cache eviction failed", logger.Fields{
			"error": err.Error(),
		})
		return
	}

	c.logger.Debug("Evicted profile vectors", logger.Fields{
		"evicted": len(oldest),
	})
}

// Len 当前条目数
func (c *RedisProfileCache) Len(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	size, err := c.client.ZCard(ctx, c.orderKey()).Result()
	if err != nil {
		return 0
	}
	return int(size)
}

// Close 关闭连接
func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}

func encodeVector(vector []float32) ([]byte, error) {
	return json.Marshal(vector)
}

func decodeVector(raw []byte) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
