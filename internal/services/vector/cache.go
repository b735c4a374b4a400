package vector

import (
	"context"
	"sync"

	"fitrank/internal/logger"
)

// ProfileVectorCache 画像向量缓存，未命中时调用方重新计算
type ProfileVectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
	Len(ctx context.Context) int
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// MemoryProfileCache 进程内有界缓存，超出容量时淘汰最早插入的条目
type MemoryProfileCache struct {
	capacity int
	logger   *logger.Logger

	mu      sync.RWMutex
	entries map[string][]float32
	order   []string // 插入顺序

	statsMu sync.Mutex
	stats   CacheStats
}

// NewMemoryProfileCache 创建进程内缓存
func NewMemoryProfileCache(capacity int) *MemoryProfileCache {
	if capacity <= 0 {
		capacity = 1000
	}
	c := &MemoryProfileCache{
		capacity: capacity,
		logger:   logger.NewLogger("profile-vector-cache"),
		entries:  make(map[string][]float32, capacity),
		order:    make([]string, 0, capacity),
	}
	c.logger.Info("Profile vector cache initialized", logger.Fields{
		"type":     "memory",
		"capacity": capacity,
	})
	return c
}

// Get 读取缓存，返回副本
func (c *MemoryProfileCache) Get(ctx context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	vector, ok := c.entries[key]
	c.mu.RUnlock()

	c.statsMu.Lock()
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.statsMu.Unlock()

	if !ok {
		return nil, false
	}
	out := make([]float32, len(vector))
	copy(out, vector)
	return out, true
}

// Set 写入缓存，超出容量时按插入顺序淘汰
func (c *MemoryProfileCache) Set(ctx context.Context, key string, vector []float32) {
	stored := make([]float32, len(vector))
	copy(stored, vector)

	c.mu.Lock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = stored
		c.mu.Unlock()
		return
	}

	c.entries[key] = stored
	c.order = append(c.order, key)

	evicted := 0
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		evicted++
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.statsMu.Lock()
		c.stats.Evictions += int64(evicted)
		c.statsMu.Unlock()
		c.logger.Debug("Evicted profile vectors", logger.Fields{
			"evicted": evicted,
		})
	}
}

// Len 当前条目数
func (c *MemoryProfileCache) Len(ctx context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 获取统计信息
func (c *MemoryProfileCache) Stats() CacheStats {
	c.statsMu.Lock()
	stats := c.stats
	c.statsMu.Unlock()

	stats.Size = c.Len(context.Background())
	stats.Capacity = c.capacity
	return stats
}

// noopProfileCache 禁用缓存时使用
type noopProfileCache struct{}

func (noopProfileCache) Get(context.Context, string) ([]float32, bool) { return nil, false }
func (noopProfileCache) Set(context.Context, string, []float32)        {}
func (noopProfileCache) Len(context.Context) int                       { return 0 }

// NoopProfileCache 不缓存任何内容
func NoopProfileCache() ProfileVectorCache {
	return noopProfileCache{}
}
