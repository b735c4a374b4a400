package ranking

import (
	"fitrank/internal/models"
)

// DiversityFilter 限制同一类目在结果中连续出现和整体占比
type DiversityFilter struct {
	MinCategoryGap int
	Backfill       bool
	policy         Policy
}

// NewDiversityFilter 根据排序策略创建多样性过滤器
func NewDiversityFilter(policy Policy) *DiversityFilter {
	return &DiversityFilter{
		MinCategoryGap: policy.MinCategoryGap,
		Backfill:       policy.Backfill,
		policy:         policy,
	}
}

// Apply 按排序顺序挑选至多 limit 个结果。
// 连续计数包含被跳过的条目；开启 Backfill 时结果不足会按原顺序补回被跳过的条目。
func (f *DiversityFilter) Apply(results []*models.RankedResult, limit int) []*models.RankedResult {
	if limit <= 0 || len(results) == 0 {
		return []*models.RankedResult{}
	}
	if f.Backfill && len(results) <= limit {
		return results
	}

	maxPerCategory := f.policy.MaxPerCategory(limit)
	gap := f.MinCategoryGap
	if gap < 1 {
		gap = 1
	}

	selected := make([]*models.RankedResult, 0, limit)
	skipped := make([]*models.RankedResult, 0)
	counts := make(map[models.ProductCategory]int)

	var lastCategory models.ProductCategory
	consecutive := 0
	for i, result := range results {
		category := result.CategoryOrUnknown()
		if i > 0 && category == lastCategory {
			consecutive++
		} else {
			consecutive = 0
			lastCategory = category
		}

		if consecutive >= gap || counts[category] >= maxPerCategory {
			skipped = append(skipped, result)
			continue
		}

		selected = append(selected, result)
		counts[category]++
		if len(selected) >= limit {
			break
		}
	}

	if f.Backfill {
		for _, result := range skipped {
			if len(selected) >= limit {
				break
			}
			selected = append(selected, result)
		}
	}

	return selected
}
