package vector

import (
	"context"
	"testing"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedProduct(id string, category models.ProductCategory, price int64, rating float64, embedding []float32) *models.Product {
	p := models.NewProduct("product "+id, category, "desc "+id, price)
	p.ID = id
	p.AverageRating = rating
	p.Embedding = embedding
	p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return p
}

func int64Ptr(v int64) *int64 { return &v }

func TestSearchFilters_WhereClause(t *testing.T) {
	t.Run("默认只过滤状态", func(t *testing.T) {
		where := SearchFilters{}.WhereClause()
		assert.Equal(t, map[string]interface{}{
			"status": map[string]interface{}{"$eq": "ACTIVE"},
		}, where)
	})

	t.Run("组合条件", func(t *testing.T) {
		category := models.CategoryProtein
		rating := 4.0
		where := SearchFilters{
			Category:   &category,
			PriceRange: &PriceRange{Min: int64Ptr(1000), Max: int64Ptr(5000)},
			MinRating:  &rating,
		}.WhereClause()

		and, ok := where["$and"].([]interface{})
		require.True(t, ok)
		assert.Len(t, and, 5)
		assert.Contains(t, and, map[string]interface{}{"category": map[string]interface{}{"$eq": "PROTEIN"}})
		assert.Contains(t, and, map[string]interface{}{"price": map[string]interface{}{"$gte": int64(1000)}})
		assert.Contains(t, and, map[string]interface{}{"price": map[string]interface{}{"$lte": int64(5000)}})
		assert.Contains(t, and, map[string]interface{}{"average_rating": map[string]interface{}{"$gte": 4.0}})
	})
}

func TestSearchFilters_Matches(t *testing.T) {
	p := indexedProduct("p1", models.CategoryProtein, 3000, 4.2, nil)

	assert.True(t, SearchFilters{}.Matches(p))

	inactive := models.StatusInactive
	assert.False(t, SearchFilters{Status: &inactive}.Matches(p))

	equipment := models.CategoryEquipment
	assert.False(t, SearchFilters{Category: &equipment}.Matches(p))

	// 价格区间为闭区间
	assert.True(t, SearchFilters{PriceRange: &PriceRange{Min: int64Ptr(3000), Max: int64Ptr(3000)}}.Matches(p))
	assert.False(t, SearchFilters{PriceRange: &PriceRange{Max: int64Ptr(2999)}}.Matches(p))

	minRating := 4.5
	assert.False(t, SearchFilters{MinRating: &minRating}.Matches(p))
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, indexedProduct("exact", models.CategoryProtein, 3000, 4.5, []float32{1, 0})))
	require.NoError(t, idx.Upsert(ctx, indexedProduct("close", models.CategoryEquipment, 9000, 3.0, Normalize([]float32{0.9, 0.1}))))
	require.NoError(t, idx.Upsert(ctx, indexedProduct("far", models.CategoryProtein, 1000, 4.0, []float32{0, 1})))

	t.Run("无向量的商品不能写入", func(t *testing.T) {
		err := idx.Upsert(ctx, indexedProduct("novec", models.CategoryProtein, 1, 1, nil))
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("按相似度降序并应用最低分", func(t *testing.T) {
		got, err := idx.Search(ctx, []float32{1, 0}, 10, SearchFilters{}, 0.3)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "exact", got[0].Product.ID)
		assert.Equal(t, "close", got[1].Product.ID)
		assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
		assert.Equal(t, 0, got[0].Position)
		assert.Equal(t, 1, got[1].Position)
		assert.Nil(t, got[0].Product.Embedding)
	})

	t.Run("最低分为0时返回全部", func(t *testing.T) {
		got, err := idx.Search(ctx, []float32{1, 0}, 10, SearchFilters{}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("过滤条件", func(t *testing.T) {
		category := models.CategoryProtein
		got, err := idx.Search(ctx, []float32{1, 0}, 10, SearchFilters{Category: &category}, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Equal(t, models.CategoryProtein, c.Product.Category)
		}
	})

	t.Run("数量上限", func(t *testing.T) {
		got, err := idx.Search(ctx, []float32{1, 0}, 1, SearchFilters{}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("读取带向量", func(t *testing.T) {
		p, err := idx.Get(ctx, "exact")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, p.Embedding)

		_, err = idx.Get(ctx, "absent")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("删除", func(t *testing.T) {
		require.NoError(t, idx.Delete(ctx, "far"))
		assert.Equal(t, 2, idx.Len())
	})
}
