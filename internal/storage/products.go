package storage

import (
	"context"
	stderrors "errors"

	"fitrank/internal/errors"
	"fitrank/internal/models"

	"gorm.io/gorm"
)

// ProductStore 商品持久化
type ProductStore struct {
	db *gorm.DB
}

// NewProductStore 创建商品仓储
func NewProductStore(db *Database) *ProductStore {
	return &ProductStore{db: db.DB}
}

// Create 新增商品
func (s *ProductStore) Create(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return errors.ErrDatabaseQuery("create product", err)
	}
	return nil
}

// Get 按ID获取商品
func (s *ProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrResourceNotFound("product", id)
	}
	if err != nil {
		return nil, errors.ErrDatabaseQuery("get product", err)
	}
	return &product, nil
}

// Save 保存全部字段
func (s *ProductStore) Save(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Save(product).Error; err != nil {
		return errors.ErrDatabaseQuery("save product", err)
	}
	return nil
}

// Delete 永久删除商品
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if result.Error != nil {
		return errors.ErrDatabaseQuery("delete product", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrResourceNotFound("product", id)
	}
	return nil
}

// List 分页列出商品
func (s *ProductStore) List(ctx context.Context, offset, limit int) ([]*models.Product, error) {
	var products []*models.Product
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, errors.ErrDatabaseQuery("list products", err)
	}
	return products, nil
}
