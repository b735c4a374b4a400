package ranking

import (
	"time"

	"fitrank/internal/config"
)

// Weights 最终得分的各项权重
type Weights struct {
	Vector          float64 `json:"vector"`
	Popularity      float64 `json:"popularity"`
	Personalization float64 `json:"personalization"`
	Freshness       float64 `json:"freshness"`
}

// FreshnessStep 新鲜度阶梯，商品年龄小于 MaxAge 时得分为 Score
type FreshnessStep struct {
	MaxAge time.Duration
	Score  float64
}

// Policy 排序相关的全部常量
type Policy struct {
	Weights Weights

	DefaultMinScore     float64
	SimilarMinScore     float64
	CandidateMultiplier int

	// 个性化
	PersonalizationBase   float64
	CategoryBoostStep     float64
	CategoryBoostCap      float64
	RepeatPurchasePenalty float64
	FitnessLevelBoost     float64

	// 热度
	RatingWeight   float64
	ReviewWeight   float64
	UnratedScore   float64
	MaxRating      float64
	ReviewCountCap float64

	// 新鲜度
	FreshnessSteps   []FreshnessStep
	FreshnessFloor   float64
	FreshnessMissing float64

	// 多样性
	MinCategoryGap       int
	CategoryFloor        int
	CategoryShareDivisor int
	Backfill             bool
}

const day = 24 * time.Hour

// DefaultPolicy 默认排序策略
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			Vector:          0.50,
			Popularity:      0.20,
			Personalization: 0.20,
			Freshness:       0.10,
		},
		DefaultMinScore:     0.3,
		SimilarMinScore:     0.5,
		CandidateMultiplier: 10,

		PersonalizationBase:   0.5,
		CategoryBoostStep:     0.1,
		CategoryBoostCap:      0.3,
		RepeatPurchasePenalty: 0.4,
		FitnessLevelBoost:     0.2,

		RatingWeight:   0.7,
		ReviewWeight:   0.3,
		UnratedScore:   0.5,
		MaxRating:      5.0,
		ReviewCountCap: 100,

		FreshnessSteps: []FreshnessStep{
			{MaxAge: 7 * day, Score: 1.0},
			{MaxAge: 30 * day, Score: 0.8},
			{MaxAge: 90 * day, Score: 0.6},
		},
		FreshnessFloor:   0.4,
		FreshnessMissing: 0.5,

		MinCategoryGap:       2,
		CategoryFloor:        2,
		CategoryShareDivisor: 3,
		Backfill:             true,
	}
}

// PolicyFromConfig 在默认策略上应用配置项，未设置的值保持默认
func PolicyFromConfig(cfg config.RankingConfig) Policy {
	p := DefaultPolicy()
	if cfg.CandidateMultiplier > 0 {
		p.CandidateMultiplier = cfg.CandidateMultiplier
	}
	if cfg.DefaultMinScore != nil {
		p.DefaultMinScore = *cfg.DefaultMinScore
	}
	if cfg.SimilarMinScore != nil {
		p.SimilarMinScore = *cfg.SimilarMinScore
	}
	if cfg.MinCategoryGap > 0 {
		p.MinCategoryGap = cfg.MinCategoryGap
	}
	p.Backfill = cfg.Backfill
	return p
}

// MaxPerCategory 单个类目在结果中的上限
func (p Policy) MaxPerCategory(limit int) int {
	divisor := p.CategoryShareDivisor
	if divisor <= 0 {
		divisor = 1
	}
	share := limit / divisor
	if share < p.CategoryFloor {
		return p.CategoryFloor
	}
	return share
}
