package vector

import (
	"context"
	"fmt"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"
)

// EmbeddingStrategy 查询与画像的组合方式
type EmbeddingStrategy string

const (
	// StrategyUnified 查询和画像拼成一段文本整体向量化
	StrategyUnified EmbeddingStrategy = "unified"
	// StrategyWeighted 分别向量化后加权平均再归一化
	StrategyWeighted EmbeddingStrategy = "weighted"
)

// DefaultQueryWeight 加权策略中查询向量的权重
const DefaultQueryWeight = 0.7

// QueryVectorBuilder 构建检索用的查询向量
type QueryVectorBuilder struct {
	embedder        Embedder
	cache           ProfileVectorCache
	strategy        EmbeddingStrategy
	queryWeight     float64
	maxUnifiedChars int
	logger          *logger.Logger
}

// QueryVectorOptions 构建参数
type QueryVectorOptions struct {
	Strategy        EmbeddingStrategy
	QueryWeight     float64
	MaxUnifiedChars int
}

// NewQueryVectorBuilder 创建查询向量构建器，cache 为空时不缓存
func NewQueryVectorBuilder(embedder Embedder, cache ProfileVectorCache, opts QueryVectorOptions) *QueryVectorBuilder {
	if cache == nil {
		cache = NoopProfileCache()
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyUnified
	}
	if opts.QueryWeight <= 0 || opts.QueryWeight > 1 {
		opts.QueryWeight = DefaultQueryWeight
	}
	return &QueryVectorBuilder{
		embedder:        embedder,
		cache:           cache,
		strategy:        opts.Strategy,
		queryWeight:     opts.QueryWeight,
		maxUnifiedChars: opts.MaxUnifiedChars,
		logger:          logger.NewLogger("query-vector"),
	}
}

// Embed 仅对查询文本向量化
func (b *QueryVectorBuilder) Embed(ctx context.Context, query string) ([]float32, error) {
	vector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	return vector, nil
}

// EmbedCombined 结合用户画像生成查询向量
func (b *QueryVectorBuilder) EmbedCombined(ctx context.Context, query string, profile *models.UserProfile) ([]float32, error) {
	profileText := profile.ProfileText()

	strategy := b.strategy
	if strategy == StrategyUnified && b.maxUnifiedChars > 0 && len(query)+len(profileText) > b.maxUnifiedChars {
		b.logger.Debug("Combined passage too long, using weighted strategy", logger.Fields{
			"query_length":   len(query),
			"profile_length": len(profileText),
			"max_chars":      b.maxUnifiedChars,
		})
		strategy = StrategyWeighted
	}

	switch strategy {
	case StrategyWeighted:
		return b.embedWeighted(ctx, query, profile, profileText)
	default:
		vector, err := b.embedder.Embed(ctx, UnifiedPassage(query, profileText))
		if err != nil {
			return nil, asEmbeddingError(err)
		}
		return Normalize(vector), nil
	}
}

func (b *QueryVectorBuilder) embedWeighted(ctx context.Context, query string, profile *models.UserProfile, profileText string) ([]float32, error) {
	queryVector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, asEmbeddingError(err)
	}

	key := profile.CacheKey()
	profileVector, ok := b.cache.Get(ctx, key)
	if !ok {
		profileVector, err = b.embedder.Embed(ctx, profileText)
		if err != nil {
			return nil, asEmbeddingError(err)
		}
		b.cache.Set(ctx, key, profileVector)
	}

	combined, err := WeightedSum(queryVector, b.queryWeight, profileVector, 1-b.queryWeight)
	if err != nil {
		return nil, errors.ErrEmbeddingUnavailable("query and profile vectors differ in dimension", err)
	}
	return combined, nil
}

// UnifiedPassage 查询与画像拼接后的文本
func UnifiedPassage(query, profileText string) string {
	return fmt.Sprintf("User searching for: %s\nUser preferences and context: %s\nFind products matching the search query that align with user preferences.",
		query, profileText)
}

// asEmbeddingError 非分类错误统一归为向量化不可用
func asEmbeddingError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.ErrEmbeddingUnavailable("embedding provider failed", err)
}
