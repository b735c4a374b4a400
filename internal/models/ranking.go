package models

// Candidate 向量检索返回的候选商品
type Candidate struct {
	Product    *Product `json:"product"`
	Similarity float64  `json:"similarity"`
	// Position 在向量检索结果中的原始位置，用于稳定排序
	Position int `json:"-"`
}

// CategoryOrUnknown 缺失类目按 unknown 处理
func (c *Candidate) CategoryOrUnknown() ProductCategory {
	if c.Product == nil || c.Product.Category == "" {
		return CategoryUnknown
	}
	return c.Product.Category
}

// ScoreBreakdown 各项得分明细
type ScoreBreakdown struct {
	Vector          float64 `json:"vector"`
	Popularity      float64 `json:"popularity"`
	Personalization float64 `json:"personalization"`
	Freshness       float64 `json:"freshness"`
}

// RankedResult 重排后的结果，仅存在于单次响应中
type RankedResult struct {
	*Candidate
	Breakdown  ScoreBreakdown `json:"score_breakdown"`
	FinalScore float64        `json:"final_score"`
}
