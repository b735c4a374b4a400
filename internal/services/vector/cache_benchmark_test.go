package vector

import (
	"context"
	"fmt"
	"testing"

	"fitrank/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func BenchmarkMemoryProfileCache(b *testing.B) {
	ctx := context.Background()
	cache := NewMemoryProfileCache(1000)

	vector := make([]float32, 1536)
	for i := range vector {
		vector[i] = float32(i) / 1536
	}
	keys := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("profile-%d", i)
		cache.Set(ctx, keys[i], vector)
	}

	b.Run("Lookup", func(b *testing.B) {
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				cache.Get(ctx, keys[i%len(keys)])
				i++
			}
		})
	})

	b.Run("SetWithEviction", func(b *testing.B) {
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				cache.Set(ctx, fmt.Sprintf("bench-%d", i), vector)
				i++
			}
		})
	})
}

// 重复出现的画像只向量化一次
func TestQueryVectorBuilder_ProfileCacheHitRatio(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过缓存命中率测试")
	}

	ctx := context.Background()
	embedder := &fakeEmbedder{}
	cache := NewMemoryProfileCache(100)
	builder := NewQueryVectorBuilder(embedder, cache, QueryVectorOptions{Strategy: StrategyWeighted})

	profiles := []*models.UserProfile{
		models.DefaultUserProfile("u1"),
		models.DefaultUserProfile("u2"),
		{UserID: "u3", FitnessGoal: "muscle_gain", FitnessLevel: models.FitnessLevelAdvanced, DaysPerWeek: 5},
	}
	queries := []string{"whey protein", "resistance bands", "creatine", "foam roller"}

	for round := 0; round < 3; round++ {
		for _, profile := range profiles {
			for _, query := range queries {
				_, err := builder.EmbedCombined(ctx, query, profile)
				require.NoError(t, err)
			}
		}
	}

	stats := cache.Stats()
	// u1 与 u2 的画像内容相同，共用一个缓存键
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(2), stats.Misses)
	hitRatio := float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	assert.Greater(t, hitRatio, 0.9)

	// 每次查询一次，外加每个不同画像一次
	assert.Len(t, embedder.calls, 3*len(profiles)*len(queries)+2)

	t.Logf("命中 %d 次, 未命中 %d 次, 命中率 %.2f%%", stats.Hits, stats.Misses, hitRatio*100)
}
