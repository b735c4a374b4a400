package catalog

import (
	"context"
	"strings"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"
	"fitrank/internal/services/vector"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductRepository 商品持久化
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Get(ctx context.Context, id string) (*models.Product, error)
	Save(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.Product, error)
}

// Service 商品目录，负责存储与向量索引的同步
type Service struct {
	products ProductRepository
	embedder vector.Embedder
	index    vector.Index
	logger   *logger.Logger
}

// NewService 创建商品目录服务
func NewService(products ProductRepository, embedder vector.Embedder, index vector.Index) *Service {
	return &Service{
		products: products,
		embedder: embedder,
		index:    index,
		logger:   logger.NewLogger("catalog"),
	}
}

// Create 校验、同步计算向量、写入存储并建立索引
func (s *Service) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product == nil {
		return nil, errors.ErrInvalidInput("product", "cannot be nil")
	}
	normalizeNew(product)
	if err := product.Validate(); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, product.ProductText())
	if err != nil {
		return nil, err
	}
	product.Embedding = embedding

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	if err := s.index.Upsert(ctx, product); err != nil {
		// 索引失败时回滚存储，避免出现无法检索的商品
		if delErr := s.products.Delete(ctx, product.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("product_id", product.ID).Error("Failed to roll back product after index failure")
		}
		return nil, err
	}

	s.logger.Info("Product created", logger.Fields{
		"product_id": product.ID,
		"category":   string(product.Category),
	})

	return product, nil
}

// Get 读取商品
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.ErrInvalidInput("id", "cannot be empty")
	}
	return s.products.Get(ctx, id)
}

// List 分页列出商品
func (s *Service) List(ctx context.Context, offset, limit int) ([]*models.Product, error) {
	if offset < 0 {
		return nil, errors.ErrInvalidInput("offset", "cannot be negative")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.products.List(ctx, offset, limit)
}

// Update 合并更新；文本字段变化时重新计算向量，否则沿用索引中的向量
func (s *Service) Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	textChanged := product.ApplyUpdate(update)
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if !textChanged {
		indexed, err := s.index.Get(ctx, id)
		switch {
		case err == nil && indexed.HasEmbedding():
			product.Embedding = indexed.Embedding
		case err != nil && !errors.IsNotFound(err):
			return nil, err
		}
	}

	if !product.HasEmbedding() {
		embedding, err := s.embedder.Embed(ctx, product.ProductText())
		if err != nil {
			return nil, err
		}
		product.Embedding = embedding
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", logger.Fields{
		"product_id":   product.ID,
		"text_changed": textChanged,
	})

	return product, nil
}

// Delete 从存储和索引中永久删除
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.ErrInvalidInput("id", "cannot be empty")
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Product deleted", logger.Fields{"product_id": id})
	return nil
}

const reindexPageSize = 100

// Reindex 为存储中的全部商品重新计算向量并写入索引，返回处理的商品数
// 进程内索引重启后为空，启动时用它从存储恢复
func (s *Service) Reindex(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += reindexPageSize {
		page, err := s.products.List(ctx, offset, reindexPageSize)
		if err != nil {
			return total, err
		}

		for _, product := range page {
			embedding, err := s.embedder.Embed(ctx, product.ProductText())
			if err != nil {
				return total, err
			}
			product.Embedding = embedding
			if err := s.index.Upsert(ctx, product); err != nil {
				return total, err
			}
			total++
		}

		if len(page) < reindexPageSize {
			break
		}
	}

	s.logger.Info("Catalog reindexed", logger.Fields{"products": total})
	return total, nil
}

func normalizeNew(p *models.Product) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = models.StatusActive
	}
	if p.Features == nil {
		p.Features = datatypes.JSONSlice[string]{}
	}
	if p.Variants == nil {
		p.Variants = datatypes.JSONSlice[string]{}
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
