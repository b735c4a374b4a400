package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/models"
	"fitrank/internal/services/catalog"
	"fitrank/internal/services/ranking"
	"fitrank/internal/services/vector"
	"fitrank/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type profileMap struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	calls    int
}

func (m *profileMap) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, errors.ErrResourceNotFound("user_profile", userID)
}

type historyStub struct {
	mu      sync.Mutex
	history *models.AggregatedHistory
	err     error
	calls   int
}

func (h *historyStub) Aggregate(ctx context.Context, userID string) (*models.AggregatedHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	if h.history == nil {
		return models.EmptyHistory(), nil
	}
	return h.history, nil
}

type fixedVectors struct {
	vector          []float32
	err             error
	plainCalls      int
	combinedCalls   int
	combinedProfile *models.UserProfile
}

func (f *fixedVectors) Embed(ctx context.Context, query string) ([]float32, error) {
	f.plainCalls++
	return f.vector, f.err
}

func (f *fixedVectors) EmbedCombined(ctx context.Context, query string, profile *models.UserProfile) ([]float32, error) {
	f.combinedCalls++
	f.combinedProfile = profile
	return f.vector, f.err
}

type searchRecord struct {
	userID string
	query  string
	count  int
}

type recordingLogger struct {
	mu      sync.Mutex
	records []searchRecord
}

func (r *recordingLogger) LogSearch(ctx context.Context, userID, query string, resultCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, searchRecord{userID: userID, query: query, count: resultCount})
}

// spyIndex 记录检索参数
type spyIndex struct {
	*vector.MemoryIndex
	lastLimit    int
	lastMinScore float64
	lastFilters  vector.SearchFilters
	searchCalls  int
	getOverride  func(id string) (*models.Product, error)
	searchErr    error
}

func (s *spyIndex) Search(ctx context.Context, vec []float32, limit int, filters vector.SearchFilters, minScore float64) ([]*models.Candidate, error) {
	s.searchCalls++
	s.lastLimit = limit
	s.lastMinScore = minScore
	s.lastFilters = filters
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.MemoryIndex.Search(ctx, vec, limit, filters, minScore)
}

func (s *spyIndex) Get(ctx context.Context, id string) (*models.Product, error) {
	if s.getOverride != nil {
		return s.getOverride(id)
	}
	return s.MemoryIndex.Get(ctx, id)
}

type fixture struct {
	engine   *Engine
	profiles *profileMap
	history  *historyStub
	vectors  *fixedVectors
	index    *spyIndex
	events   *recordingLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		profiles: &profileMap{profiles: map[string]*models.UserProfile{}},
		history:  &historyStub{},
		vectors:  &fixedVectors{vector: []float32{0.8, 0.6, 0, 0}},
		index:    &spyIndex{MemoryIndex: vector.NewMemoryIndex()},
		events:   &recordingLogger{},
	}
	f.engine = NewEngine(Dependencies{
		Profiles: f.profiles,
		History:  f.history,
		Vectors:  f.vectors,
		Index:    f.index,
		Logger:   f.events,
	}, ranking.DefaultPolicy(), DefaultLimits())
	f.engine.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) index4(t *testing.T, id string, category models.ProductCategory, embedding []float32) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:            id,
		Name:          "product " + id,
		Category:      category,
		Status:        models.StatusActive,
		Price:         2999,
		AverageRating: 4.0,
		TotalReview:   20,
		Features:      datatypes.JSONSlice[string]{},
		CreatedAt:     fixedNow.AddDate(0, 0, -45),
		Embedding:     embedding,
	}
	require.NoError(t, f.index.Upsert(context.Background(), p))
	return p
}

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestEngine_Search_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *SearchRequest
	}{
		{"空请求", nil},
		{"缺少用户", &SearchRequest{Query: "whey"}},
		{"空查询", &SearchRequest{UserID: "u1", Query: "   "}},
		{"数量过大", &SearchRequest{UserID: "u1", Query: "whey", Limit: 51}},
		{"数量为负", &SearchRequest{UserID: "u1", Query: "whey", Limit: -1}},
		{"未知类目", &SearchRequest{UserID: "u1", Query: "whey", Category: "TOYS"}},
		{"负价格", &SearchRequest{UserID: "u1", Query: "whey", MinPrice: int64Ptr(-1)}},
		{"价格区间颠倒", &SearchRequest{UserID: "u1", Query: "whey", MinPrice: int64Ptr(500), MaxPrice: int64Ptr(100)}},
		{"评分越界", &SearchRequest{UserID: "u1", Query: "whey", MinRating: float64Ptr(5.5)}},
		{"最低分越界", &SearchRequest{UserID: "u1", Query: "whey", MinScore: float64Ptr(1.2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Search(context.Background(), tt.req)
			assert.True(t, errors.IsInvalidInput(err), "got %v", err)
			assert.Equal(t, 0, f.profiles.calls)
			assert.Equal(t, 0, f.history.calls)
			assert.Equal(t, 0, f.vectors.plainCalls+f.vectors.combinedCalls)
			assert.Equal(t, 0, f.index.searchCalls)
		})
	}
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("默认参数与过滤条件", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.engine.Search(ctx, &SearchRequest{
			UserID:    "u1",
			Query:     "protein",
			Category:  "protein",
			MinPrice:  int64Ptr(1000),
			MinRating: float64Ptr(4),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.Results)

		assert.Equal(t, 100, f.index.lastLimit)
		assert.Equal(t, 0.3, f.index.lastMinScore)
		require.NotNil(t, f.index.lastFilters.Category)
		assert.Equal(t, models.CategoryProtein, *f.index.lastFilters.Category)
		require.NotNil(t, f.index.lastFilters.PriceRange)
		assert.Equal(t, int64(1000), *f.index.lastFilters.PriceRange.Min)
		assert.Nil(t, f.index.lastFilters.PriceRange.Max)
		assert.Equal(t, 4.0, *f.index.lastFilters.MinRating)
	})

	t.Run("缺少个人设置时使用默认值", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Search(ctx, &SearchRequest{UserID: "new-user", Query: "bands", Limit: 3, UsePersonalization: true})
		require.NoError(t, err)

		assert.Equal(t, 1, f.vectors.combinedCalls)
		assert.Equal(t, 0, f.vectors.plainCalls)
		require.NotNil(t, f.vectors.combinedProfile)
		assert.Equal(t, "new-user", f.vectors.combinedProfile.UserID)
		assert.Equal(t, models.FitnessLevel("intermediate"), f.vectors.combinedProfile.FitnessLevel)
		assert.Equal(t, 30, f.index.lastLimit)
	})

	t.Run("关闭个性化只向量化查询", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "bands"})
		require.NoError(t, err)
		assert.False(t, resp.Personalized)
		assert.Equal(t, 1, f.vectors.plainCalls)
		assert.Equal(t, 0, f.vectors.combinedCalls)
	})

	t.Run("历史购买类目排在前面", func(t *testing.T) {
		f := newFixture(t)
		f.history.history = models.EmptyHistory()
		f.history.history.CategoryPurchases[models.CategoryProtein] = 3

		f.index4(t, "a-equipment", models.CategoryEquipment, []float32{1, 0, 0, 0})
		f.index4(t, "b-protein", models.CategoryProtein, []float32{1, 0, 0, 0})

		resp, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "protein powder", UsePersonalization: true})
		require.NoError(t, err)
		require.Equal(t, 2, resp.Count)
		assert.True(t, resp.Personalized)
		assert.Equal(t, "protein powder", resp.Query)

		top, second := resp.Results[0], resp.Results[1]
		assert.Equal(t, "b-protein", top.Product.ID)
		assert.InDelta(t, 0.8, top.Breakdown.Vector, 1e-6)
		assert.InDelta(t, top.Breakdown.Popularity, second.Breakdown.Popularity, 1e-9)
		assert.InDelta(t, 0.2*0.3, top.FinalScore-second.FinalScore, 1e-6)
	})

	t.Run("记录搜索事件", func(t *testing.T) {
		f := newFixture(t)
		f.index4(t, "p1", models.CategoryFitness, []float32{1, 0, 0, 0})

		resp, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "foam roller"})
		require.NoError(t, err)

		require.Len(t, f.events.records, 1)
		assert.Equal(t, searchRecord{userID: "u1", query: "foam roller", count: resp.Count}, f.events.records[0])
	})

	t.Run("历史读取失败", func(t *testing.T) {
		f := newFixture(t)
		f.history.err = errors.ErrDatabaseQuery("list interactions", fmt.Errorf("locked"))

		_, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "whey"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseQuery))
		assert.Equal(t, 0, f.index.searchCalls)
		assert.Empty(t, f.events.records)
	})

	t.Run("向量化不可用", func(t *testing.T) {
		f := newFixture(t)
		f.vectors.err = errors.ErrEmbeddingUnavailable("timeout", nil)

		_, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "whey", UsePersonalization: true})
		assert.True(t, errors.HasCode(err, errors.ErrCodeEmbeddingUnavailable))
		assert.Equal(t, 0, f.index.searchCalls)
	})

	t.Run("检索不可用", func(t *testing.T) {
		f := newFixture(t)
		f.index.searchErr = errors.ErrSearchUnavailable("query collection", fmt.Errorf("connection refused"))

		_, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "whey"})
		assert.True(t, errors.IsUnavailable(err))
		assert.Empty(t, f.events.records)
	})

	t.Run("同类目结果受多样性限制", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 10; i++ {
			f.index4(t, fmt.Sprintf("p%02d", i), models.CategoryProtein, []float32{1, 0, 0, 0})
		}
		f.index4(t, "z-mat", models.CategoryAccessories, []float32{1, 0, 0, 0})

		resp, err := f.engine.Search(ctx, &SearchRequest{UserID: "u1", Query: "whey", Limit: 6})
		require.NoError(t, err)
		require.Equal(t, 6, resp.Count)

		seen := map[string]bool{}
		for _, r := range resp.Results {
			seen[r.Product.ID] = true
		}
		assert.True(t, seen["z-mat"])
	})
}

func TestEngine_SimilarProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("排除商品自身", func(t *testing.T) {
		f := newFixture(t)
		f.index4(t, "source", models.CategoryProtein, []float32{1, 0, 0, 0})
		f.index4(t, "near", models.CategoryProtein, []float32{0.9, 0.1, 0, 0})
		f.index4(t, "nearer", models.CategoryProtein, []float32{0.95, 0.05, 0, 0})
		f.index4(t, "far", models.CategoryProtein, []float32{0, 0, 1, 0})

		resp, err := f.engine.SimilarProducts(ctx, "source", 0)
		require.NoError(t, err)
		assert.Equal(t, "source", resp.ProductID)
		assert.Equal(t, 6, f.index.lastLimit)
		assert.Equal(t, 0.5, f.index.lastMinScore)

		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "nearer", resp.SimilarProducts[0].Product.ID)
		assert.Equal(t, "near", resp.SimilarProducts[1].Product.ID)
	})

	t.Run("截断到请求数量", func(t *testing.T) {
		f := newFixture(t)
		f.index4(t, "source", models.CategoryProtein, []float32{1, 0, 0, 0})
		for i := 0; i < 5; i++ {
			f.index4(t, fmt.Sprintf("twin-%d", i), models.CategoryProtein, []float32{1, 0, 0, 0})
		}

		resp, err := f.engine.SimilarProducts(ctx, "source", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Count)
		for _, c := range resp.SimilarProducts {
			assert.NotEqual(t, "source", c.Product.ID)
		}
	})

	t.Run("商品不存在返回空列表", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.engine.SimilarProducts(ctx, "missing", 5)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.SimilarProducts)
		assert.Equal(t, 0, f.index.searchCalls)
	})

	t.Run("商品没有向量返回空列表", func(t *testing.T) {
		f := newFixture(t)
		f.index.getOverride = func(id string) (*models.Product, error) {
			return &models.Product{ID: id, Name: "bare"}, nil
		}
		resp, err := f.engine.SimilarProducts(ctx, "bare", 5)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
	})

	t.Run("参数校验", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.SimilarProducts(ctx, "", 5)
		assert.True(t, errors.IsInvalidInput(err))
		_, err = f.engine.SimilarProducts(ctx, "p1", 21)
		assert.True(t, errors.IsInvalidInput(err))
		_, err = f.engine.SimilarProducts(ctx, "p1", -2)
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("索引读取失败", func(t *testing.T) {
		f := newFixture(t)
		f.index.getOverride = func(id string) (*models.Product, error) {
			return nil, errors.ErrSearchUnavailable("get document", fmt.Errorf("timeout"))
		}
		_, err := f.engine.SimilarProducts(ctx, "p1", 5)
		assert.True(t, errors.IsUnavailable(err))
	})
}

// wordEmbedder 按词哈希生成确定性向量
type wordEmbedder struct{}

func (wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ",.:")))
		vec[h.Sum32()%64]++
	}
	return vector.Normalize(vec), nil
}

func TestEngine_CreateThenSearch(t *testing.T) {
	ctx := context.Background()

	db, err := storage.Open(config.DatabaseConfig{
		Type:        "sqlite",
		Path:        fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	defer db.Close()

	index := vector.NewMemoryIndex()
	embedder := wordEmbedder{}
	products := catalog.NewService(storage.NewProductStore(db), embedder, index)

	for _, p := range []*models.Product{
		{Name: "Adjustable Dumbbells", Category: models.CategoryEquipment, Description: "Pair of quick-change dumbbells for home workouts", Price: 19999},
		{Name: "Whey Isolate", Category: models.CategoryProtein, Description: "Cold filtered whey isolate", Price: 4599},
		{Name: "Multivitamin", Category: models.CategoryVitamins, Description: "Daily multivitamin tablets", Price: 1299},
	} {
		_, err := products.Create(ctx, p)
		require.NoError(t, err)
	}

	target, err := products.Create(ctx, &models.Product{
		Name:        "Foam Roller",
		Category:    models.CategoryAccessories,
		Description: "High density foam roller for muscle recovery",
		Price:       2599,
	})
	require.NoError(t, err)

	engine := NewEngine(Dependencies{
		Profiles: storage.NewProfileStore(db),
		History:  &historyStub{},
		Vectors:  vector.NewQueryVectorBuilder(embedder, vector.NewMemoryProfileCache(10), vector.QueryVectorOptions{}),
		Index:    index,
	}, ranking.DefaultPolicy(), DefaultLimits())

	candidates, err := index.Search(ctx, mustEmbed(t, embedder, "muscle recovery"), 10, vector.SearchFilters{}, 0)
	require.NoError(t, err)
	assert.Contains(t, candidateIDs(candidates), target.ID)

	for _, personalized := range []bool{false, true} {
		resp, err := engine.Search(ctx, &SearchRequest{
			UserID:             "u1",
			Query:              "muscle recovery",
			Limit:              10,
			MinScore:           float64Ptr(0),
			UsePersonalization: personalized,
		})
		require.NoError(t, err)

		ids := make([]string, 0, resp.Count)
		for _, r := range resp.Results {
			ids = append(ids, r.Product.ID)
		}
		assert.Contains(t, ids, target.ID, "personalized=%v", personalized)
	}
}

func candidateIDs(candidates []*models.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Product.ID)
	}
	return out
}

func mustEmbed(t *testing.T, e vector.Embedder, text string) []float32 {
	t.Helper()
	v, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}
