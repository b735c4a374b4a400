package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 向量索引中的元数据字段名
const (
	MetaName          = "name"
	MetaCategory      = "category"
	MetaDescription   = "description"
	MetaPrice         = "price"
	MetaDiscount      = "discount"
	MetaStock         = "stock"
	MetaTotalSales    = "total_sales"
	MetaFeatures      = "features"
	MetaVariants      = "variants"
	MetaImage         = "image"
	MetaStatus        = "status"
	MetaTotalReview   = "total_review"
	MetaAverageRating = "average_rating"
	MetaVendorID      = "vendor_id"
	MetaUserID        = "user_id"
	MetaCreatedAt     = "created_at"
	MetaUpdatedAt     = "updated_at"
)

// ProductToDocument 商品转换为向量索引文档
func ProductToDocument(p *Product) (string, string, map[string]interface{}) {
	features, _ := json.Marshal([]string(p.Features))
	variants, _ := json.Marshal([]string(p.Variants))

	metadata := map[string]interface{}{
		MetaName:          p.Name,
		MetaCategory:      string(p.Category),
		MetaDescription:   p.Description,
		MetaPrice:         p.Price,
		MetaDiscount:      p.Discount,
		MetaStock:         p.Stock,
		MetaTotalSales:    p.TotalSales,
		MetaFeatures:      string(features),
		MetaVariants:      string(variants),
		MetaImage:         p.Image,
		MetaStatus:        string(p.Status),
		MetaTotalReview:   p.TotalReview,
		MetaAverageRating: p.AverageRating,
		MetaVendorID:      p.VendorID,
	}
	if p.UserID != nil {
		metadata[MetaUserID] = *p.UserID
	}
	if !p.CreatedAt.IsZero() {
		metadata[MetaCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		metadata[MetaUpdatedAt] = p.UpdatedAt.UTC().Format(time.RFC3339)
	}

	return p.ID, p.ProductText(), metadata
}

// ProductFromDocument 向量索引文档还原为商品，缺失字段保持零值
func ProductFromDocument(id string, metadata map[string]interface{}) *Product {
	p := &Product{
		ID:            id,
		Name:          metaString(metadata, MetaName),
		Category:      ProductCategory(metaString(metadata, MetaCategory)),
		Description:   metaString(metadata, MetaDescription),
		Price:         int64(metaFloat(metadata, MetaPrice)),
		Discount:      int64(metaFloat(metadata, MetaDiscount)),
		Stock:         int64(metaFloat(metadata, MetaStock)),
		TotalSales:    int64(metaFloat(metadata, MetaTotalSales)),
		Features:      metaStringList(metadata, MetaFeatures),
		Variants:      metaStringList(metadata, MetaVariants),
		Image:         metaString(metadata, MetaImage),
		Status:        ProductStatus(metaString(metadata, MetaStatus)),
		TotalReview:   int64(metaFloat(metadata, MetaTotalReview)),
		AverageRating: metaFloat(metadata, MetaAverageRating),
		VendorID:      metaString(metadata, MetaVendorID),
		CreatedAt:     metaTime(metadata, MetaCreatedAt),
		UpdatedAt:     metaTime(metadata, MetaUpdatedAt),
	}
	if userID := metaString(metadata, MetaUserID); userID != "" {
		p.UserID = &userID
	}
	return p
}

func metaString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func metaStringList(m map[string]interface{}, key string) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	switch v := m[key].(type) {
	case string:
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err == nil {
			out = append(out, list...)
		}
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func metaTime(m map[string]interface{}, key string) time.Time {
	raw := metaString(m, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
