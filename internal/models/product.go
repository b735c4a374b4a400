package models

import (
	"fmt"
	"strings"
	"time"

	"fitrank/internal/errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductCategory 商品类目
type ProductCategory string

const (
	CategorySupplements ProductCategory = "SUPPLEMENTS"
	CategoryVitamins    ProductCategory = "VITAMINS"
	CategoryProtein     ProductCategory = "PROTEIN"
	CategoryFitness     ProductCategory = "FITNESS"
	CategoryNutrition   ProductCategory = "NUTRITION"
	CategoryEquipment   ProductCategory = "EQUIPMENT"
	CategoryAccessories ProductCategory = "ACCESSORIES"

	// CategoryUnknown 缺失类目时的占位值，不允许写入
	CategoryUnknown ProductCategory = "unknown"
)

var validCategories = []ProductCategory{
	CategorySupplements, CategoryVitamins, CategoryProtein, CategoryFitness,
	CategoryNutrition, CategoryEquipment, CategoryAccessories,
}

// ParseCategory 解析类目，大小写不敏感
func ParseCategory(raw string) (ProductCategory, bool) {
	upper := ProductCategory(strings.ToUpper(strings.TrimSpace(raw)))
	for _, c := range validCategories {
		if upper == c {
			return c, true
		}
	}
	return "", false
}

// IsValid 是否为已知类目
func (c ProductCategory) IsValid() bool {
	for _, valid := range validCategories {
		if c == valid {
			return true
		}
	}
	return false
}

// ProductStatus 商品状态
type ProductStatus string

const (
	StatusActive     ProductStatus = "ACTIVE"
	StatusInactive   ProductStatus = "INACTIVE"
	StatusOutOfStock ProductStatus = "OUT_OF_STOCK"
)

// ParseStatus 解析商品状态，大小写不敏感
func ParseStatus(raw string) (ProductStatus, bool) {
	switch s := ProductStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusActive, StatusInactive, StatusOutOfStock:
		return s, true
	}
	return "", false
}

// IsValid 是否为已知状态
func (s ProductStatus) IsValid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusOutOfStock
}

// Product 商品数据模型
type Product struct {
	ID            string                      `json:"id" gorm:"primaryKey"`
	Name          string                      `json:"name" gorm:"not null"`
	Category      ProductCategory             `json:"category" gorm:"index"`
	Description   string                      `json:"description"`
	Price         int64                       `json:"price"` // 最小货币单位
	Discount      int64                       `json:"discount"`
	Stock         int64                       `json:"stock"`
	TotalSales    int64                       `json:"total_sales"`
	Features      datatypes.JSONSlice[string] `json:"features" gorm:"type:json"`
	Variants      datatypes.JSONSlice[string] `json:"variants" gorm:"type:json"`
	Image         string                      `json:"image,omitempty"`
	Status        ProductStatus               `json:"status" gorm:"index"`
	TotalReview   int64                       `json:"total_review"`
	AverageRating float64                     `json:"average_rating"`
	VendorID      string                      `json:"vendor_id"`
	UserID        *string                     `json:"user_id,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`

	// 向量只存放在向量索引中
	Embedding []float32 `json:"-" gorm:"-"`
}

// NewProduct 创建商品并补全默认值
func NewProduct(name string, category ProductCategory, description string, price int64) *Product {
	now := time.Now()
	return &Product{
		ID:          uuid.New().String(),
		Name:        name,
		Category:    category,
		Description: description,
		Price:       price,
		Features:    datatypes.JSONSlice[string]{},
		Variants:    datatypes.JSONSlice[string]{},
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate 验证商品数据
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.ErrValidationFailed("name", "cannot be empty")
	}
	if !p.Category.IsValid() {
		return errors.ErrValidationFailed("category", fmt.Sprintf("invalid category: %s", p.Category))
	}
	if !p.Status.IsValid() {
		return errors.ErrValidationFailed("status", fmt.Sprintf("invalid status: %s", p.Status))
	}
	if p.Price < 0 {
		return errors.ErrValidationFailed("price", "must not be negative")
	}
	if p.Discount < 0 {
		return errors.ErrValidationFailed("discount", "must not be negative")
	}
	if p.Stock < 0 {
		return errors.ErrValidationFailed("stock", "must not be negative")
	}
	if p.TotalSales < 0 {
		return errors.ErrValidationFailed("total_sales", "must not be negative")
	}
	if p.TotalReview < 0 {
		return errors.ErrValidationFailed("total_review", "must not be negative")
	}
	if p.AverageRating < 0 || p.AverageRating > 5 {
		return errors.ErrValidationFailed("average_rating", "must be between 0.0 and 5.0")
	}
	return nil
}

// HasEmbedding 是否已有向量
func (p *Product) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// ProductText 生成用于向量化的商品描述
func (p *Product) ProductText() string {
	return fmt.Sprintf("Product: %s\nCategory: %s\nDescription: %s\nFeatures: %s\nVariants: %s",
		p.Name,
		p.Category,
		p.Description,
		strings.Join(p.Features, ", "),
		strings.Join(p.Variants, ", "),
	)
}

// ProductUpdate 商品部分更新，nil 表示不修改
type ProductUpdate struct {
	Name          *string          `json:"name,omitempty"`
	Category      *ProductCategory `json:"category,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *int64           `json:"price,omitempty"`
	Discount      *int64           `json:"discount,omitempty"`
	Stock         *int64           `json:"stock,omitempty"`
	TotalSales    *int64           `json:"total_sales,omitempty"`
	Features      *[]string        `json:"features,omitempty"`
	Variants      *[]string        `json:"variants,omitempty"`
	Image         *string          `json:"image,omitempty"`
	Status        *ProductStatus   `json:"status,omitempty"`
	TotalReview   *int64           `json:"total_review,omitempty"`
	AverageRating *float64         `json:"average_rating,omitempty"`
}

// ApplyUpdate 合并更新，返回是否修改了影响向量的文本字段
func (p *Product) ApplyUpdate(u ProductUpdate) bool {
	before := p.ProductText()

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Features != nil {
		p.Features = append(datatypes.JSONSlice[string]{}, (*u.Features)...)
	}
	if u.Variants != nil {
		p.Variants = append(datatypes.JSONSlice[string]{}, (*u.Variants)...)
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Discount != nil {
		p.Discount = *u.Discount
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.TotalSales != nil {
		p.TotalSales = *u.TotalSales
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.TotalReview != nil {
		p.TotalReview = *u.TotalReview
	}
	if u.AverageRating != nil {
		p.AverageRating = *u.AverageRating
	}
	p.UpdatedAt = time.Now()

	return p.ProductText() != before
}
