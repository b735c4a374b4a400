package vector

import (
	"context"
	"sort"
	"sync"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"
)

// MemoryIndex 进程内暴力检索索引，用于本地运行和测试
type MemoryIndex struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	logger   *logger.Logger
}

// NewMemoryIndex 创建内存索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		products: make(map[string]*models.Product),
		logger:   logger.NewLogger("memory-index"),
	}
}

// Search 计算全部商品的余弦相似度后过滤排序
func (mi *MemoryIndex) Search(ctx context.Context, vector []float32, limit int, filters SearchFilters, minScore float64) ([]*models.Candidate, error) {
	if limit <= 0 {
		return []*models.Candidate{}, nil
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()

	type scored struct {
		product    *models.Product
		similarity float64
	}
	matches := make([]scored, 0, len(mi.products))

	for _, product := range mi.products {
		if !filters.Matches(product) {
			continue
		}
		cosine, err := CosineSimilarity(vector, product.Embedding)
		if err != nil {
			return nil, errors.ErrSearchUnavailable("similarity computation failed", err)
		}
		similarity := clamp01(cosine)
		if similarity < minScore {
			continue
		}
		matches = append(matches, scored{product: product, similarity: similarity})
	}

	// ID 作为次序键，保证结果确定
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].product.ID < matches[j].product.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	candidates := make([]*models.Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = &models.Candidate{
			Product:    cloneProduct(m.product, false),
			Similarity: m.similarity,
			Position:   i,
		}
	}
	return candidates, nil
}

// Get 读取商品及其向量
func (mi *MemoryIndex) Get(ctx context.Context, id string) (*models.Product, error) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	product, ok := mi.products[id]
	if !ok {
		return nil, errors.ErrResourceNotFound("product", id)
	}
	return cloneProduct(product, true), nil
}

// Upsert 写入或覆盖商品
func (mi *MemoryIndex) Upsert(ctx context.Context, product *models.Product) error {
	if !product.HasEmbedding() {
		return errors.ErrInvalidInput("embedding", "product without embedding cannot be indexed")
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.products[product.ID] = cloneProduct(product, true)
	return nil
}

// Delete 删除商品
func (mi *MemoryIndex) Delete(ctx context.Context, id string) error {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	delete(mi.products, id)
	return nil
}

// HealthCheck 内存索引始终可用
func (mi *MemoryIndex) HealthCheck(ctx context.Context) error {
	return nil
}

// Len 已索引商品数
func (mi *MemoryIndex) Len() int {
	mi.mu.RLock()
	defer mi.mu.RUnlock()
	return len(mi.products)
}

func cloneProduct(p *models.Product, withEmbedding bool) *models.Product {
	out := *p
	out.Features = append(out.Features[:0:0], p.Features...)
	out.Variants = append(out.Variants[:0:0], p.Variants...)
	if withEmbedding {
		out.Embedding = append([]float32(nil), p.Embedding...)
	} else {
		out.Embedding = nil
	}
	return &out
}
