package ranking

import (
	"sort"
	"time"

	"fitrank/internal/logger"
	"fitrank/internal/models"
)

// Ranker 候选结果重排器，不持有可变状态
type Ranker struct {
	policy Policy
	logger *logger.Logger
}

// NewRanker 创建重排器
func NewRanker(policy Policy) *Ranker {
	return &Ranker{
		policy: policy,
		logger: logger.NewLogger("ranker"),
	}
}

// Policy 当前使用的排序策略
func (r *Ranker) Policy() Policy {
	return r.policy
}

// Rerank 计算各项得分并按最终得分降序排列，同分保持检索顺序
func (r *Ranker) Rerank(candidates []*models.Candidate, profile *models.UserProfile, history *models.AggregatedHistory, now time.Time) []*models.RankedResult {
	if len(candidates) == 0 {
		return []*models.RankedResult{}
	}
	if history == nil {
		history = models.EmptyHistory()
	}

	w := r.policy.Weights
	results := make([]*models.RankedResult, 0, len(candidates))
	for i, c := range candidates {
		if c == nil || c.Product == nil {
			continue
		}
		c.Position = i

		breakdown := models.ScoreBreakdown{
			Vector:          c.Similarity,
			Popularity:      r.policy.PopularityScore(c),
			Personalization: r.policy.PersonalizationScore(c, profile, history),
			Freshness:       r.policy.FreshnessScore(c, now),
		}

		results = append(results, &models.RankedResult{
			Candidate: c,
			Breakdown: breakdown,
			FinalScore: w.Vector*breakdown.Vector +
				w.Popularity*breakdown.Popularity +
				w.Personalization*breakdown.Personalization +
				w.Freshness*breakdown.Freshness,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	r.logger.Debug("Candidates reranked", logger.Fields{
		"candidate_count": len(candidates),
		"ranked_count":    len(results),
	})

	return results
}
