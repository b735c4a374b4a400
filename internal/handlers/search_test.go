package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"fitrank/internal/errors"
	"fitrank/internal/models"
	"fitrank/internal/services/search"
	"fitrank/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	lastRequest    *search.SearchRequest
	lastProductID  string
	lastLimit      int
	searchErr      error
	similarErr     error
	searchResponse *search.SearchResponse
}

func (f *fakeSearcher) Search(ctx context.Context, req *search.SearchRequest) (*search.SearchResponse, error) {
	f.lastRequest = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchResponse != nil {
		return f.searchResponse, nil
	}
	return &search.SearchResponse{
		Query:        req.Query,
		Personalized: req.UsePersonalization,
		Results:      []*models.RankedResult{},
	}, nil
}

func (f *fakeSearcher) SimilarProducts(ctx context.Context, productID string, limit int) (*search.SimilarResponse, error) {
	f.lastProductID = productID
	f.lastLimit = limit
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return &search.SimilarResponse{ProductID: productID, SimilarProducts: []*models.Candidate{}}, nil
}

func setupSearchRouter(t *testing.T, searcher *fakeSearcher) (*testutil.TestHelper, *gin.Engine) {
	helper := testutil.NewTestHelper(t)
	r, api := helper.SetupTestGin()
	NewSearchHandler(searcher).RegisterRoutes(api)
	return helper, r
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("解析查询参数", func(t *testing.T) {
		searcher := &fakeSearcher{}
		helper := testutil.NewTestHelper(t)
		r, api := helper.SetupTestGin()
		NewSearchHandler(searcher).RegisterRoutes(api)

		w := helper.Do(r, http.MethodGet, "/api/v1/products/search?query=protein+powder&user_id=u1&limit=5&category=protein&min_price=1000&max_price=5000&min_rating=4.5&min_score=0.2&use_personalization=false", nil)
		helper.AssertStatusCode(w, http.StatusOK)

		req := searcher.lastRequest
		require.NotNil(t, req)
		assert.Equal(t, "protein powder", req.Query)
		assert.Equal(t, "u1", req.UserID)
		assert.Equal(t, 5, req.Limit)
		assert.Equal(t, "protein", req.Category)
		assert.Equal(t, int64(1000), *req.MinPrice)
		assert.Equal(t, int64(5000), *req.MaxPrice)
		assert.Equal(t, 4.5, *req.MinRating)
		assert.Equal(t, 0.2, *req.MinScore)
		assert.False(t, req.UsePersonalization)

		var body map[string]interface{}
		helper.DecodeJSON(w, &body)
		assert.Equal(t, "protein powder", body["query"])
		assert.Equal(t, false, body["personalized"])
		assert.Contains(t, body, "count")
		assert.Contains(t, body, "results")
	})

	t.Run("默认开启个性化", func(t *testing.T) {
		searcher := &fakeSearcher{}
		helper := testutil.NewTestHelper(t)
		r, api := helper.SetupTestGin()
		NewSearchHandler(searcher).RegisterRoutes(api)

		w := helper.Do(r, http.MethodGet, "/api/v1/products/search?query=bands&user_id=u1", nil)
		helper.AssertStatusCode(w, http.StatusOK)
		assert.True(t, searcher.lastRequest.UsePersonalization)
		assert.Equal(t, 0, searcher.lastRequest.Limit)
		assert.Nil(t, searcher.lastRequest.MinPrice)
	})

	t.Run("参数格式错误", func(t *testing.T) {
		for _, query := range []string{
			"limit=abc",
			"limit=0",
			"min_price=cheap",
			"max_price=1.5",
			"min_rating=high",
			"min_score=low",
			"use_personalization=maybe",
		} {
			searcher := &fakeSearcher{}
			helper := testutil.NewTestHelper(t)
			r, api := helper.SetupTestGin()
			NewSearchHandler(searcher).RegisterRoutes(api)

			w := helper.Do(r, http.MethodGet, "/api/v1/products/search?query=q&user_id=u1&"+query, nil)
			helper.AssertErrorCode(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput))
			assert.Nil(t, searcher.lastRequest, query)
		}
	})

	t.Run("错误映射", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{"参数错误", errors.ErrInvalidInput("limit", "must be between 1 and 50"), http.StatusBadRequest},
			{"向量化不可用", errors.ErrEmbeddingUnavailable("timeout", nil), http.StatusServiceUnavailable},
			{"检索不可用", errors.ErrSearchUnavailable("query collection", nil), http.StatusServiceUnavailable},
			{"数据库错误", errors.ErrDatabaseQuery("list interactions", fmt.Errorf("locked")), http.StatusInternalServerError},
			{"未分类错误", fmt.Errorf("boom"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				helper, r := setupSearchRouter(t, &fakeSearcher{searchErr: tt.err})
				w := helper.Do(r, http.MethodGet, "/api/v1/products/search?query=q&user_id=u1", nil)
				helper.AssertStatusCode(w, tt.status)

				var body ErrorResponse
				helper.DecodeJSON(w, &body)
				assert.False(t, body.Success)
				if tt.status == http.StatusInternalServerError {
					assert.Empty(t, body.Details)
				}
			})
		}
	})
}

func TestSearchHandler_Similar(t *testing.T) {
	t.Run("默认数量由引擎决定", func(t *testing.T) {
		searcher := &fakeSearcher{}
		helper := testutil.NewTestHelper(t)
		r, api := helper.SetupTestGin()
		NewSearchHandler(searcher).RegisterRoutes(api)

		w := helper.Do(r, http.MethodGet, "/api/v1/products/p-1/similar", nil)
		helper.AssertStatusCode(w, http.StatusOK)
		assert.Equal(t, "p-1", searcher.lastProductID)
		assert.Equal(t, 0, searcher.lastLimit)

		var body map[string]interface{}
		helper.DecodeJSON(w, &body)
		assert.Equal(t, "p-1", body["product_id"])
		assert.Equal(t, float64(0), body["count"])
		assert.Equal(t, []interface{}{}, body["similar_products"])
	})

	t.Run("引擎参数错误", func(t *testing.T) {
		searcher := &fakeSearcher{similarErr: errors.ErrInvalidInput("limit", "must be between 1 and 20")}
		helper := testutil.NewTestHelper(t)
		r, api := helper.SetupTestGin()
		NewSearchHandler(searcher).RegisterRoutes(api)

		w := helper.Do(r, http.MethodGet, "/api/v1/products/p-1/similar?limit=50", nil)
		helper.AssertErrorCode(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput))
		assert.Equal(t, 50, searcher.lastLimit)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.ErrValidationFailed("name", "cannot be empty")))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.ErrResourceNotFound("product", "p1")))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("wrapped: %w", errors.ErrResourceNotFound("product", "p1"))))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(errors.ErrSearchUnavailable("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.ErrLogWriteFailed("x", nil)))
}
