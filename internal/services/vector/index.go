package vector

import (
	"context"

	"fitrank/internal/models"
)

// PriceRange 价格区间，闭区间，nil 表示不限
type PriceRange struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// SearchFilters 向量检索的硬过滤条件
type SearchFilters struct {
	Category   *models.ProductCategory `json:"category,omitempty"`
	Status     *models.ProductStatus   `json:"status,omitempty"` // 为空时默认 ACTIVE
	PriceRange *PriceRange             `json:"price_range,omitempty"`
	MinRating  *float64                `json:"min_rating,omitempty"`
}

// EffectiveStatus 实际生效的状态过滤
func (f SearchFilters) EffectiveStatus() models.ProductStatus {
	if f.Status != nil && *f.Status != "" {
		return *f.Status
	}
	return models.StatusActive
}

// Matches 判断商品是否满足过滤条件
func (f SearchFilters) Matches(p *models.Product) bool {
	if p.Status != f.EffectiveStatus() {
		return false
	}
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.PriceRange != nil {
		if f.PriceRange.Min != nil && p.Price < *f.PriceRange.Min {
			return false
		}
		if f.PriceRange.Max != nil && p.Price > *f.PriceRange.Max {
			return false
		}
	}
	if f.MinRating != nil && p.AverageRating < *f.MinRating {
		return false
	}
	return true
}

// WhereClause 转换为 Chroma 的 where 条件
func (f SearchFilters) WhereClause() map[string]interface{} {
	clauses := []map[string]interface{}{
		{models.MetaStatus: map[string]interface{}{"$eq": string(f.EffectiveStatus())}},
	}
	if f.Category != nil {
		clauses = append(clauses, map[string]interface{}{
			models.MetaCategory: map[string]interface{}{"$eq": string(*f.Category)},
		})
	}
	if f.PriceRange != nil {
		if f.PriceRange.Min != nil {
			clauses = append(clauses, map[string]interface{}{
				models.MetaPrice: map[string]interface{}{"$gte": *f.PriceRange.Min},
			})
		}
		if f.PriceRange.Max != nil {
			clauses = append(clauses, map[string]interface{}{
				models.MetaPrice: map[string]interface{}{"$lte": *f.PriceRange.Max},
			})
		}
	}
	if f.MinRating != nil {
		clauses = append(clauses, map[string]interface{}{
			models.MetaAverageRating: map[string]interface{}{"$gte": *f.MinRating},
		})
	}

	if len(clauses) == 1 {
		return clauses[0]
	}
	and := make([]interface{}, 0, len(clauses))
	for _, c := range clauses {
		and = append(and, c)
	}
	return map[string]interface{}{"$and": and}
}

// Index 商品向量检索
type Index interface {
	// Search 返回相似度不低于 minScore 的候选，按相似度降序
	Search(ctx context.Context, vector []float32, limit int, filters SearchFilters, minScore float64) ([]*models.Candidate, error)
	// Get 读取商品及其向量，不存在时返回 NotFound
	Get(ctx context.Context, id string) (*models.Product, error)
	// Upsert 写入或覆盖商品向量
	Upsert(ctx context.Context, product *models.Product) error
	// Delete 删除商品向量
	Delete(ctx context.Context, id string) error
	// HealthCheck 检查后端可用性
	HealthCheck(ctx context.Context) error
}
