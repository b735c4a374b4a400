package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"
	"fitrank/internal/services/ranking"
	"fitrank/internal/services/vector"

	"golang.org/x/sync/errgroup"
)

// ProfileSource 个人设置读取
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
}

// HistorySource 用户历史聚合
type HistorySource interface {
	Aggregate(ctx context.Context, userID string) (*models.AggregatedHistory, error)
}

// QueryEmbedder 查询向量构建
type QueryEmbedder interface {
	Embed(ctx context.Context, query string) ([]float32, error)
	EmbedCombined(ctx context.Context, query string, profile *models.UserProfile) ([]float32, error)
}

// SearchLogger 搜索事件记录，不阻塞
type SearchLogger interface {
	LogSearch(ctx context.Context, userID, query string, resultCount int)
}

// Limits 请求数量限制
type Limits struct {
	DefaultLimit        int
	MaxLimit            int
	SimilarDefaultLimit int
	SimilarMaxLimit     int
}

// DefaultLimits 默认数量限制
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:        10,
		MaxLimit:            50,
		SimilarDefaultLimit: 5,
		SimilarMaxLimit:     20,
	}
}

// LimitsFromConfig 从排序配置读取数量限制
func LimitsFromConfig(cfg config.RankingConfig) Limits {
	l := DefaultLimits()
	if cfg.DefaultLimit > 0 {
		l.DefaultLimit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 {
		l.MaxLimit = cfg.MaxLimit
	}
	if cfg.SimilarDefaultLimit > 0 {
		l.SimilarDefaultLimit = cfg.SimilarDefaultLimit
	}
	if cfg.SimilarMaxLimit > 0 {
		l.SimilarMaxLimit = cfg.SimilarMaxLimit
	}
	return l
}

// Dependencies 搜索引擎依赖
type Dependencies struct {
	Profiles ProfileSource
	History  HistorySource
	Vectors  QueryEmbedder
	Index    vector.Index
	Logger   SearchLogger
}

// Engine 个性化商品搜索
type Engine struct {
	profiles  ProfileSource
	history   HistorySource
	vectors   QueryEmbedder
	index     vector.Index
	events    SearchLogger
	ranker    *ranking.Ranker
	diversity *ranking.DiversityFilter
	policy    ranking.Policy
	limits    Limits
	now       func() time.Time
	logger    *logger.Logger
}

// SearchRequest 搜索请求
type SearchRequest struct {
	Query              string   `json:"query"`
	UserID             string   `json:"user_id"`
	Limit              int      `json:"limit"`
	Category           string   `json:"category,omitempty"`
	MinPrice           *int64   `json:"min_price,omitempty"`
	MaxPrice           *int64   `json:"max_price,omitempty"`
	MinRating          *float64 `json:"min_rating,omitempty"`
	MinScore           *float64 `json:"min_score,omitempty"`
	UsePersonalization bool     `json:"use_personalization"`
}

// SearchResponse 搜索响应
type SearchResponse struct {
	Query        string                 `json:"query"`
	Personalized bool                   `json:"personalized"`
	Count        int                    `json:"count"`
	Results      []*models.RankedResult `json:"results"`
}

// SimilarResponse 相似商品响应
type SimilarResponse struct {
	ProductID       string              `json:"product_id"`
	Count           int                 `json:"count"`
	SimilarProducts []*models.Candidate `json:"similar_products"`
}

// NewEngine 创建搜索引擎
func NewEngine(deps Dependencies, policy ranking.Policy, limits Limits) *Engine {
	return &Engine{
		profiles:  deps.Profiles,
		history:   deps.History,
		vectors:   deps.Vectors,
		index:     deps.Index,
		events:    deps.Logger,
		ranker:    ranking.NewRanker(policy),
		diversity: ranking.NewDiversityFilter(policy),
		policy:    policy,
		limits:    limits,
		now:       time.Now,
		logger:    logger.NewLogger("search-engine"),
	}
}

// Search 执行个性化搜索：向量召回、重排、多样性过滤
func (e *Engine) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	filters, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	e.logger.Info("Executing product search", logger.Fields{
		"query":           req.Query,
		"user_id":         req.UserID,
		"limit":           req.Limit,
		"personalization": req.UsePersonalization,
	})

	profile, history, err := e.loadUserContext(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var queryVector []float32
	if req.UsePersonalization {
		queryVector, err = e.vectors.EmbedCombined(ctx, req.Query, profile)
	} else {
		queryVector, err = e.vectors.Embed(ctx, req.Query)
	}
	if err != nil {
		return nil, err
	}

	minScore := e.policy.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	candidates, err := e.index.Search(ctx, queryVector, req.Limit*e.policy.CandidateMultiplier, filters, minScore)
	if err != nil {
		return nil, err
	}

	ranked := e.ranker.Rerank(candidates, profile, history, e.now())
	results := e.diversity.Apply(ranked, req.Limit)

	if e.events != nil {
		e.events.LogSearch(ctx, req.UserID, req.Query, len(results))
	}

	e.logger.Info("Product search completed", logger.Fields{
		"user_id":      req.UserID,
		"candidates":   len(candidates),
		"result_count": len(results),
		"search_time":  time.Since(startTime),
	})

	return &SearchResponse{
		Query:        req.Query,
		Personalized: req.UsePersonalization,
		Count:        len(results),
		Results:      results,
	}, nil
}

// SimilarProducts 查找与指定商品相似的商品，不包含商品自身
func (e *Engine) SimilarProducts(ctx context.Context, productID string, limit int) (*SimilarResponse, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, errors.ErrInvalidInput("product_id", "cannot be empty")
	}
	if limit == 0 {
		limit = e.limits.SimilarDefaultLimit
	}
	if limit < 1 || limit > e.limits.SimilarMaxLimit {
		return nil, errors.ErrInvalidInput("limit", fmt.Sprintf("must be between 1 and %d", e.limits.SimilarMaxLimit))
	}

	response := &SimilarResponse{
		ProductID:       productID,
		SimilarProducts: []*models.Candidate{},
	}

	source, err := e.index.Get(ctx, productID)
	if err != nil {
		if errors.IsNotFound(err) {
			e.logger.Debug("Source product not indexed", logger.Fields{"product_id": productID})
			return response, nil
		}
		return nil, err
	}
	if !source.HasEmbedding() {
		return response, nil
	}

	candidates, err := e.index.Search(ctx, source.Embedding, limit+1, vector.SearchFilters{}, e.policy.SimilarMinScore)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if c.Product == nil || c.Product.ID == productID {
			continue
		}
		response.SimilarProducts = append(response.SimilarProducts, c)
		if len(response.SimilarProducts) >= limit {
			break
		}
	}
	response.Count = len(response.SimilarProducts)

	return response, nil
}

// loadUserContext 并发读取个人设置和历史，缺少个人设置时使用默认值
func (e *Engine) loadUserContext(ctx context.Context, userID string) (*models.UserProfile, *models.AggregatedHistory, error) {
	var (
		profile *models.UserProfile
		history *models.AggregatedHistory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.profiles.Get(gctx, userID)
		if err != nil {
			if errors.IsNotFound(err) {
				profile = models.DefaultUserProfile(userID)
				return nil
			}
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		h, err := e.history.Aggregate(gctx, userID)
		if err != nil {
			return err
		}
		history = h
		return nil
	})

	if err := g.Wait(); err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Warn("Failed to load user context")
		return nil, nil, err
	}
	if history == nil {
		history = models.EmptyHistory()
	}
	return profile, history, nil
}

// validate 校验请求并生成过滤条件，任何依赖调用前完成
func (e *Engine) validate(req *SearchRequest) (vector.SearchFilters, error) {
	filters := vector.SearchFilters{}

	if req == nil {
		return filters, errors.ErrInvalidInput("request", "cannot be nil")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return filters, errors.ErrInvalidInput("user_id", "cannot be empty")
	}
	if strings.TrimSpace(req.Query) == "" {
		return filters, errors.ErrInvalidInput("query", "cannot be empty")
	}

	if req.Limit == 0 {
		req.Limit = e.limits.DefaultLimit
	}
	if req.Limit < 1 || req.Limit > e.limits.MaxLimit {
		return filters, errors.ErrInvalidInput("limit", fmt.Sprintf("must be between 1 and %d", e.limits.MaxLimit))
	}

	if req.Category != "" {
		category, ok := models.ParseCategory(req.Category)
		if !ok {
			return filters, errors.ErrInvalidInput("category", fmt.Sprintf("unknown category: %s", req.Category))
		}
		filters.Category = &category
	}

	if req.MinPrice != nil && *req.MinPrice < 0 {
		return filters, errors.ErrInvalidInput("min_price", "cannot be negative")
	}
	if req.MaxPrice != nil && *req.MaxPrice < 0 {
		return filters, errors.ErrInvalidInput("max_price", "cannot be negative")
	}
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return filters, errors.ErrInvalidInput("price_range", "min_price cannot exceed max_price")
	}
	if req.MinPrice != nil || req.MaxPrice != nil {
		filters.PriceRange = &vector.PriceRange{Min: req.MinPrice, Max: req.MaxPrice}
	}

	if req.MinRating != nil {
		if *req.MinRating < 0 || *req.MinRating > 5 {
			return filters, errors.ErrInvalidInput("min_rating", "must be between 0 and 5")
		}
		filters.MinRating = req.MinRating
	}

	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return filters, errors.ErrInvalidInput("min_score", "must be between 0 and 1")
	}

	return filters, nil
}
