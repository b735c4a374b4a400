package vector

import (
	"math"

	"fitrank/internal/errors"
)

// Normalize L2 归一化，零向量原样返回
func Normalize(vector []float32) []float32 {
	norm := 0.0
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(vector))
	if norm == 0 {
		copy(out, vector)
		return out
	}
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// WeightedSum 按权重合并两个向量并重新归一化
func WeightedSum(a []float32, weightA float64, b []float32, weightB float64) ([]float32, error) {
	if len(a) != len(b) {
		return nil, errors.ErrValidationFailed("vectors", "dimensions must match")
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32(weightA*float64(a[i]) + weightB*float64(b[i]))
	}
	return Normalize(out), nil
}

// CosineSimilarity 余弦相似度，范围 [-1, 1]
func CosineSimilarity(vector1, vector2 []float32) (float64, error) {
	if len(vector1) != len(vector2) {
		return 0, errors.ErrValidationFailed("vectors", "dimensions must match")
	}
	if len(vector1) == 0 {
		return 0, errors.ErrValidationFailed("vectors", "cannot be empty")
	}

	dot, norm1, norm2 := 0.0, 0.0, 0.0
	for i := range vector1 {
		dot += float64(vector1[i]) * float64(vector2[i])
		norm1 += float64(vector1[i]) * float64(vector1[i])
		norm2 += float64(vector2[i]) * float64(vector2[i])
	}

	// 避免除零
	if norm1 == 0 || norm2 == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(norm1) * math.Sqrt(norm2)), nil
}

// SimilarityFromDistance 余弦距离转换为 [0,1] 相似度
func SimilarityFromDistance(distance float64) float64 {
	return clamp01(1 - distance)
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
