package models

import (
	"time"

	"gorm.io/datatypes"
)

// InteractionType 用户行为类型
type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionClick     InteractionType = "click"
	InteractionPurchase  InteractionType = "purchase"
	InteractionAddToCart InteractionType = "add_to_cart"
	InteractionSearch    InteractionType = "search"
)

// implicitWeights 各行为的隐式偏好权重
var implicitWeights = map[InteractionType]float64{
	InteractionPurchase:  1.0,
	InteractionAddToCart: 0.8,
	InteractionClick:     0.5,
	InteractionView:      0.3,
}

// IsProductInteraction 是否为针对单个商品的行为
func (t InteractionType) IsProductInteraction() bool {
	_, ok := implicitWeights[t]
	return ok
}

// ImplicitWeight 隐式偏好权重，搜索事件为 0
func (t InteractionType) ImplicitWeight() float64 {
	return implicitWeights[t]
}

// InteractionEvent 交互事件，只追加不修改
type InteractionEvent struct {
	ID             string            `json:"id" gorm:"primaryKey"`
	UserID         string            `json:"user_id" gorm:"index:idx_interaction_user_time,priority:1;not null"`
	Type           InteractionType   `json:"interaction_type" gorm:"index"`
	ProductID      *string           `json:"product_id,omitempty"`
	Category       *ProductCategory  `json:"category,omitempty"`
	Price          *int64            `json:"price,omitempty"`
	Query          string            `json:"query,omitempty"`
	ResultCount    int               `json:"result_count,omitempty"`
	ImplicitWeight float64           `json:"implicit_score"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	Timestamp      time.Time         `json:"timestamp" gorm:"index:idx_interaction_user_time,priority:2"`
}

// PriceRange 观察到的价格区间
type PriceRange struct {
	Min      int64 `json:"min"`
	Max      int64 `json:"max"`
	Observed bool  `json:"observed"`
}

// AggregatedHistory 时间窗口内的用户行为聚合，不持久化
type AggregatedHistory struct {
	ViewedProducts    map[string]struct{}
	PurchasedProducts map[string]struct{}
	CategoryPurchases map[ProductCategory]int
	PriceRange        PriceRange
}

// EmptyHistory 空的行为聚合
func EmptyHistory() *AggregatedHistory {
	return &AggregatedHistory{
		ViewedProducts:    make(map[string]struct{}),
		PurchasedProducts: make(map[string]struct{}),
		CategoryPurchases: make(map[ProductCategory]int),
	}
}

// HasPurchased 是否购买过
func (h *AggregatedHistory) HasPurchased(productID string) bool {
	_, ok := h.PurchasedProducts[productID]
	return ok
}

// IsEmpty 是否没有任何行为
func (h *AggregatedHistory) IsEmpty() bool {
	return len(h.ViewedProducts) == 0 && len(h.PurchasedProducts) == 0 && len(h.CategoryPurchases) == 0
}
