package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fitrank/internal/logger"
	"fitrank/internal/services/search"

	"github.com/gin-gonic/gin"
)

// ProductSearcher 搜索引擎接口
type ProductSearcher interface {
	Search(ctx context.Context, req *search.SearchRequest) (*search.SearchResponse, error)
	SimilarProducts(ctx context.Context, productID string, limit int) (*search.SimilarResponse, error)
}

// SearchHandler 商品搜索API处理器
type SearchHandler struct {
	engine ProductSearcher
	logger *logger.Logger
}

// NewSearchHandler 创建搜索处理器
func NewSearchHandler(engine ProductSearcher) *SearchHandler {
	return &SearchHandler{
		engine: engine,
		logger: logger.NewLogger("search-handler"),
	}
}

// RegisterRoutes 注册搜索路由
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products/search", h.Search)
	rg.GET("/products/:id/similar", h.Similar)
}

// Search 个性化商品搜索
// @Summary 商品搜索
// @Description 向量召回后结合热度、个性化和新鲜度重排
// @Tags products
// @Produce json
// @Param query query string true "搜索词"
// @Param user_id query string true "用户ID"
// @Param limit query int false "返回数量 (1-50)"
// @Param category query string false "类目"
// @Param min_price query int false "最低价格"
// @Param max_price query int false "最高价格"
// @Param min_rating query number false "最低评分"
// @Param min_score query number false "最低向量相似度 (0-1)"
// @Param use_personalization query bool false "是否个性化，默认 true"
// @Success 200 {object} search.SearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/products/search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	startTime := time.Now()

	req := &search.SearchRequest{
		Query:              c.Query("query"),
		UserID:             c.Query("user_id"),
		Category:           c.Query("category"),
		UsePersonalization: true,
	}

	var ok bool
	if req.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if req.MinPrice, ok = int64PtrQuery(c, "min_price"); !ok {
		return
	}
	if req.MaxPrice, ok = int64PtrQuery(c, "max_price"); !ok {
		return
	}
	if req.MinRating, ok = float64PtrQuery(c, "min_rating"); !ok {
		return
	}
	if req.MinScore, ok = float64PtrQuery(c, "min_score"); !ok {
		return
	}
	if raw := c.Query("use_personalization"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "use_personalization", "must be a boolean")
			return
		}
		req.UsePersonalization = v
	}

	resp, err := h.engine.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "Product search failed", logger.Fields{
			"query":   req.Query,
			"user_id": req.UserID,
		})
		return
	}

	h.logger.Info("Search request served", logger.Fields{
		"user_id":      req.UserID,
		"result_count": resp.Count,
		"process_time": time.Since(startTime),
	})

	c.JSON(http.StatusOK, resp)
}

// Similar 相似商品
// @Summary 相似商品
// @Tags products
// @Produce json
// @Param id path string true "商品ID"
// @Param limit query int false "返回数量 (1-20)"
// @Success 200 {object} search.SimilarResponse
// @Router /api/v1/products/{id}/similar [get]
func (h *SearchHandler) Similar(c *gin.Context) {
	productID := c.Param("id")

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	resp, err := h.engine.SimilarProducts(c.Request.Context(), productID, limit)
	if err != nil {
		respondError(c, h.logger, err, "Similar products lookup failed", logger.Fields{
			"product_id": productID,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// intQuery 缺省时返回 0，由下游填充默认值
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key, "must be an integer")
		return 0, false
	}
	if v == 0 {
		badRequest(c, key, "must be positive")
		return 0, false
	}
	return v, true
}

func int64PtrQuery(c *gin.Context, key string) (*int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, key, "must be an integer")
		return nil, false
	}
	return &v, true
}

func float64PtrQuery(c *gin.Context, key string) (*float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, key, "must be a number")
		return nil, false
	}
	return &v, true
}
