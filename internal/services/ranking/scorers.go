package ranking

import (
	"math"
	"time"

	"fitrank/internal/models"
)

// PopularityScore 根据评分和评论数计算热度，结果在 [0,1]
func (p Policy) PopularityScore(c *models.Candidate) float64 {
	if c == nil || c.Product == nil {
		return p.RatingWeight * p.UnratedScore
	}

	ratingScore := p.UnratedScore
	if c.Product.AverageRating > 0 {
		ratingScore = clamp01(c.Product.AverageRating / p.MaxRating)
	}

	reviews := float64(c.Product.TotalReview)
	if reviews < 0 {
		reviews = 0
	}
	reviewScore := math.Min(math.Log1p(reviews)/math.Log1p(p.ReviewCountCap), 1.0)

	return p.RatingWeight*ratingScore + p.ReviewWeight*reviewScore
}

// FreshnessScore 商品上架时间的阶梯得分，未来时间按最新处理
func (p Policy) FreshnessScore(c *models.Candidate, now time.Time) float64 {
	if c == nil || c.Product == nil || c.Product.CreatedAt.IsZero() {
		return p.FreshnessMissing
	}

	// 按整天计算年龄
	age := now.Sub(c.Product.CreatedAt).Truncate(day)
	for _, step := range p.FreshnessSteps {
		if age < step.MaxAge {
			return step.Score
		}
	}
	return p.FreshnessFloor
}

// PersonalizationScore 结合个人设置和历史行为计算个性化得分
func (p Policy) PersonalizationScore(c *models.Candidate, profile *models.UserProfile, history *models.AggregatedHistory) float64 {
	score := p.PersonalizationBase
	if c == nil || c.Product == nil {
		return clamp01(score)
	}

	if history != nil {
		if freq, ok := history.CategoryPurchases[c.CategoryOrUnknown()]; ok && freq > 0 {
			score += math.Min(float64(freq)*p.CategoryBoostStep, p.CategoryBoostCap)
		}
		if history.HasPurchased(c.Product.ID) {
			score -= p.RepeatPurchasePenalty
		}
	}

	if profile != nil && profile.FitnessLevel != "" {
		for _, feature := range c.Product.Features {
			if feature == string(profile.FitnessLevel) {
				score += p.FitnessLevelBoost
				break
			}
		}
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
