package vector

import (
	"context"
	"fmt"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"

	chroma "github.com/amikos-tech/chroma-go"
	"github.com/amikos-tech/chroma-go/types"
)

// ChromaIndex 基于 Chroma 的商品向量索引，使用余弦距离
type ChromaIndex struct {
	client     *chroma.Client
	collection *chroma.Collection
	config     config.VectorDBConfig
	logger     *logger.Logger
}

// NewChromaIndex 连接 Chroma 并获取或创建集合
func NewChromaIndex(ctx context.Context, cfg config.VectorDBConfig) (*ChromaIndex, error) {
	chromaLogger := logger.NewLogger("chroma-index")

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)

	client, err := chroma.NewClient(serverURL)
	if err != nil {
		searchErr := errors.ErrSearchUnavailable("failed to create Chroma client", err).
			WithContext(map[string]interface{}{
				"server_url": serverURL,
			})
		chromaLogger.LogFitrankError(searchErr, "Chroma client creation failed")
		return nil, searchErr
	}

	idx := &ChromaIndex{
		client: client,
		config: cfg,
		logger: chromaLogger,
	}

	if err := idx.initializeCollection(ctx); err != nil {
		return nil, err
	}

	chromaLogger.Info("Chroma index initialized", logger.Fields{
		"server_url": serverURL,
		"collection": cfg.Collection,
		"timeout":    cfg.Timeout,
	})

	return idx, nil
}

// initializeCollection 获取或创建集合
func (ci *ChromaIndex) initializeCollection(ctx context.Context) error {
	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	collection, err := ci.client.GetCollection(ctx, ci.config.Collection, nil)
	if err != nil {
		ci.logger.Info("Collection not found, creating new collection", logger.Fields{
			"collection": ci.config.Collection,
		})

		metadata := map[string]interface{}{
			"description": "Product catalog vectors",
			"created_at":  time.Now().Unix(),
		}

		collection, err = ci.client.CreateCollection(ctx, ci.config.Collection, metadata, true, nil, types.COSINE)
		if err != nil {
			searchErr := errors.ErrSearchUnavailable("failed to create Chroma collection", err).
				WithContext(map[string]interface{}{
					"collection": ci.config.Collection,
				})
			ci.logger.LogFitrankError(searchErr, "Collection creation failed")
			return searchErr
		}
	}

	ci.collection = collection
	return nil
}

func (ci *ChromaIndex) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ci.config.Timeout > 0 {
		return context.WithTimeout(ctx, ci.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func toChromaEmbedding(vector []float32) (*types.Embedding, error) {
	data := make([]interface{}, len(vector))
	for i, v := range vector {
		data[i] = v
	}
	return types.NewEmbedding(data)
}

// Search 向量检索
func (ci *ChromaIndex) Search(ctx context.Context, vector []float32, limit int, filters SearchFilters, minScore float64) ([]*models.Candidate, error) {
	if limit <= 0 {
		return []*models.Candidate{}, nil
	}

	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	startTime := time.Now()

	// 请求条数不能超过集合大小
	count, err := ci.collection.Count(ctx)
	if err != nil {
		return nil, ci.searchFailure("count collection", err)
	}
	if count == 0 {
		return []*models.Candidate{}, nil
	}
	nResults := limit
	if int(count) < nResults {
		nResults = int(count)
	}

	queryEmbedding, err := toChromaEmbedding(vector)
	if err != nil {
		return nil, errors.ErrInvalidInput("query_vector", err.Error())
	}

	queryResult, err := ci.collection.QueryWithOptions(ctx,
		types.WithQueryEmbedding(queryEmbedding),
		types.WithNResults(int32(nResults)),
		types.WithInclude(types.IDocuments, types.IMetadatas, types.IDistances),
		types.WithWhereMap(filters.WhereClause()),
	)
	if err != nil {
		return nil, ci.searchFailure("query collection", err)
	}

	candidates := make([]*models.Candidate, 0, nResults)
	if queryResult != nil && len(queryResult.Ids) > 0 {
		for i, id := range queryResult.Ids[0] {
			if len(queryResult.Distances) == 0 || len(queryResult.Distances[0]) <= i {
				continue
			}
			similarity := SimilarityFromDistance(float64(queryResult.Distances[0][i]))
			if similarity < minScore {
				continue
			}

			var metadata map[string]interface{}
			if len(queryResult.Metadatas) > 0 && len(queryResult.Metadatas[0]) > i {
				metadata = queryResult.Metadatas[0][i]
			}

			candidates = append(candidates, &models.Candidate{
				Product:    models.ProductFromDocument(id, metadata),
				Similarity: similarity,
				Position:   len(candidates),
			})
		}
	}

	ci.logger.Debug("Vector search completed", logger.Fields{
		"requested":  limit,
		"returned":   len(candidates),
		"min_score":  minScore,
		"query_time": time.Since(startTime),
	})

	return candidates, nil
}

// Get 读取商品及其向量
func (ci *ChromaIndex) Get(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	getResult, err := ci.collection.GetWithOptions(ctx,
		types.WithIds([]string{id}),
		types.WithInclude(types.IDocuments, types.IEmbeddings, types.IMetadatas),
	)
	if err != nil {
		return nil, ci.searchFailure("get document", err)
	}

	if getResult == nil || len(getResult.Ids) == 0 {
		return nil, errors.ErrResourceNotFound("product", id)
	}

	var metadata map[string]interface{}
	if len(getResult.Metadatas) > 0 {
		metadata = getResult.Metadatas[0]
	}
	product := models.ProductFromDocument(id, metadata)

	if len(getResult.Embeddings) > 0 && getResult.Embeddings[0] != nil && getResult.Embeddings[0].ArrayOfFloat32 != nil {
		product.Embedding = *getResult.Embeddings[0].ArrayOfFloat32
	}

	return product, nil
}

// Upsert 写入商品向量，已存在时覆盖
func (ci *ChromaIndex) Upsert(ctx context.Context, product *models.Product) error {
	if !product.HasEmbedding() {
		return errors.ErrInvalidInput("embedding", "product without embedding cannot be indexed")
	}

	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	embedding, err := toChromaEmbedding(product.Embedding)
	if err != nil {
		return errors.ErrInvalidInput("embedding", err.Error())
	}

	id, document, metadata := models.ProductToDocument(product)
	embeddings := []*types.Embedding{embedding}
	metadatas := []map[string]interface{}{metadata}
	documents := []string{document}
	ids := []string{id}

	existing, err := ci.collection.GetWithOptions(ctx, types.WithIds(ids))
	if err != nil {
		return ci.searchFailure("lookup document", err)
	}

	if existing != nil && len(existing.Ids) > 0 {
		_, err = ci.collection.Modify(ctx, embeddings, metadatas, documents, ids)
	} else {
		_, err = ci.collection.Add(ctx, embeddings, metadatas, documents, ids)
	}
	if err != nil {
		return ci.searchFailure("write document", err)
	}

	ci.logger.Debug("Product indexed", logger.Fields{
		"product_id": id,
		"dimension":  len(product.Embedding),
	})
	return nil
}

// Delete 删除商品向量
func (ci *ChromaIndex) Delete(ctx context.Context, id string) error {
	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	if _, err := ci.collection.Delete(ctx, []string{id}, nil, nil); err != nil {
		return ci.searchFailure("delete document", err)
	}
	return nil
}

// HealthCheck 健康检查
func (ci *ChromaIndex) HealthCheck(ctx context.Context) error {
	ctx, cancel := ci.withTimeout(ctx)
	defer cancel()

	if _, err := ci.collection.Count(ctx); err != nil {
		return ci.searchFailure("health check", err)
	}
	return nil
}

func (ci *ChromaIndex) searchFailure(op string, cause error) error {
	searchErr := errors.ErrSearchUnavailable(op, cause).
		WithContext(map[string]interface{}{
			"collection": ci.config.Collection,
		})
	ci.logger.LogFitrankError(searchErr, "Chroma operation failed")
	return searchErr
}
