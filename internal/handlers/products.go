package handlers

import (
	"context"
	"net/http"
	"strconv"

	"fitrank/internal/logger"
	"fitrank/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ProductCatalog 商品目录接口
type ProductCatalog interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, offset, limit int) ([]*models.Product, error)
	Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

// ProductRequest 创建商品请求
type ProductRequest struct {
	Name          string   `json:"name" binding:"required"`
	Category      string   `json:"category" binding:"required"`
	Description   string   `json:"description"`
	Price         int64    `json:"price"`
	Discount      int64    `json:"discount"`
	Stock         int64    `json:"stock"`
	TotalSales    int64    `json:"total_sales"`
	Features      []string `json:"features"`
	Variants      []string `json:"variants"`
	Image         string   `json:"image"`
	Status        string   `json:"status"`
	TotalReview   int64    `json:"total_review"`
	AverageRating float64  `json:"average_rating"`
	VendorID      string   `json:"vendor_id"`
	UserID        *string  `json:"user_id,omitempty"`
}

// ProductListResponse 商品列表响应
type ProductListResponse struct {
	Products []*models.Product `json:"products"`
	Count    int               `json:"count"`
	Offset   int               `json:"offset"`
}

// ProductHandler 商品目录API处理器
type ProductHandler struct {
	catalog ProductCatalog
	logger  *logger.Logger
}

// NewProductHandler 创建商品处理器
func NewProductHandler(catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger.NewLogger("product-handler"),
	}
}

// RegisterRoutes 注册商品路由
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/products", h.Create)
	rg.GET("/products", h.List)
	rg.GET("/products/:id", h.Get)
	rg.PATCH("/products/:id", h.Update)
	rg.DELETE("/products/:id", h.Delete)
}

// Create 创建商品，同步计算向量
// @Summary 创建商品
// @Tags products
// @Accept json
// @Produce json
// @Param request body ProductRequest true "商品"
// @Success 201 {object} models.Product
// @Router /api/v1/products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	category, ok := models.ParseCategory(req.Category)
	if !ok {
		badRequest(c, "category", "unknown category: "+req.Category)
		return
	}
	status := models.StatusActive
	if req.Status != "" {
		if status, ok = models.ParseStatus(req.Status); !ok {
			badRequest(c, "status", "unknown status: "+req.Status)
			return
		}
	}

	product := &models.Product{
		Name:          req.Name,
		Category:      category,
		Description:   req.Description,
		Price:         req.Price,
		Discount:      req.Discount,
		Stock:         req.Stock,
		TotalSales:    req.TotalSales,
		Features:      datatypes.JSONSlice[string](req.Features),
		Variants:      datatypes.JSONSlice[string](req.Variants),
		Image:         req.Image,
		Status:        status,
		TotalReview:   req.TotalReview,
		AverageRating: req.AverageRating,
		VendorID:      req.VendorID,
		UserID:        req.UserID,
	}

	created, err := h.catalog.Create(c.Request.Context(), product)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create product", logger.Fields{"name": req.Name})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Get 读取商品
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get product", logger.Fields{"product_id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, product)
}

// List 分页列出商品
func (h *ProductHandler) List(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		badRequest(c, "offset", "must be an integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		badRequest(c, "limit", "must be an integer")
		return
	}

	products, err := h.catalog.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list products", nil)
		return
	}

	c.JSON(http.StatusOK, ProductListResponse{
		Products: products,
		Count:    len(products),
		Offset:   offset,
	})
}

// Update 部分更新商品
// @Summary 更新商品
// @Tags products
// @Accept json
// @Param id path string true "商品ID"
// @Param request body models.ProductUpdate true "更新字段"
// @Success 200 {object} models.Product
// @Router /api/v1/products/{id} [patch]
func (h *ProductHandler) Update(c *gin.Context) {
	var update models.ProductUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	if update.Category != nil {
		category, ok := models.ParseCategory(string(*update.Category))
		if !ok {
			badRequest(c, "category", "unknown category: "+string(*update.Category))
			return
		}
		update.Category = &category
	}
	if update.Status != nil {
		status, ok := models.ParseStatus(string(*update.Status))
		if !ok {
			badRequest(c, "status", "unknown status: "+string(*update.Status))
			return
		}
		update.Status = &status
	}

	product, err := h.catalog.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update product", logger.Fields{"product_id": c.Param("id")})
		return
	}

	c.JSON(http.StatusOK, product)
}

// Delete 永久删除商品
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to delete product", logger.Fields{"product_id": c.Param("id")})
		return
	}
	c.Status(http.StatusNoContent)
}
