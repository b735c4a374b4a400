package vector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/errors"
	"fitrank/internal/logger"

	"github.com/go-resty/resty/v2"
)

// Embedder 文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService 基于 OpenAI 兼容接口的向量化服务
type EmbeddingService struct {
	httpClient *resty.Client
	config     config.EmbeddingConfig
	logger     *logger.Logger
}

// EmbeddingResponse embeddings 接口响应
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewEmbeddingService 创建向量化服务
func NewEmbeddingService(cfg config.EmbeddingConfig) (*EmbeddingService, error) {
	if cfg.APIBase == "" {
		return nil, errors.ErrConfigMissing("embedding.api_base")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.ErrConfigInvalid("embedding.dimension", "must be greater than 0")
	}

	embeddingLogger := logger.NewLogger("embedding-service")

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.APIBase)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("Content-Type", "application/json")

	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	} else {
		embeddingLogger.Warn("Embedding API key is not set - embedding requests may fail")
	}

	// 重试属于客户端自身策略
	httpClient.SetRetryCount(cfg.RetryTimes)
	httpClient.SetRetryWaitTime(cfg.RetryDelay)
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	embeddingLogger.Info("Embedding service initialized", logger.Fields{
		"model":     cfg.Model,
		"api_base":  cfg.APIBase,
		"dimension": cfg.Dimension,
	})

	return &EmbeddingService{
		httpClient: httpClient,
		config:     cfg,
		logger:     embeddingLogger,
	}, nil
}

// Dimension 向量维度
func (es *EmbeddingService) Dimension() int {
	return es.config.Dimension
}

// Embed 生成单个文本的归一化向量
func (es *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	processed := preprocessText(text)
	if processed == "" {
		return nil, errors.ErrInvalidInput("text", "cannot be empty")
	}

	startTime := time.Now()

	embedding, tokensUsed, err := es.callEmbeddingAPI(ctx, processed)
	if err != nil {
		return nil, err
	}

	if len(embedding) != es.config.Dimension {
		embErr := errors.ErrEmbeddingUnavailable(
			fmt.Sprintf("expected dimension %d, got %d", es.config.Dimension, len(embedding)), nil)
		es.logger.LogFitrankError(embErr, "Embedding dimension mismatch")
		return nil, embErr
	}

	normalized := Normalize(embedding)

	es.logger.Debug("Embedding generated successfully", logger.Fields{
		"dimension":    len(normalized),
		"tokens_used":  tokensUsed,
		"process_time": time.Since(startTime),
		"text_length":  len(text),
	})

	return normalized, nil
}

// preprocessText 合并空白字符
func preprocessText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// callEmbeddingAPI 调用 embeddings 接口
func (es *EmbeddingService) callEmbeddingAPI(ctx context.Context, text string) ([]float32, int, error) {
	es.logger.Debug("Calling embedding API", logger.Fields{
		"text_length": len(text),
		"model":       es.config.Model,
	})

	resp, err := es.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"model": es.config.Model,
			"input": text,
		}).
		SetResult(&EmbeddingResponse{}).
		Post("/embeddings")

	if err != nil {
		embErr := errors.ErrEmbeddingUnavailable("embedding API call failed", err).
			WithContext(map[string]interface{}{
				"text_length": len(text),
			})
		es.logger.LogFitrankError(embErr, "Embedding API call failed")
		return nil, 0, embErr
	}

	if resp.StatusCode() != http.StatusOK {
		embErr := errors.ErrEmbeddingUnavailable(
			fmt.Sprintf("Status: %d, Body: %s", resp.StatusCode(), string(resp.Body())), nil).
			WithContext(map[string]interface{}{
				"status_code": resp.StatusCode(),
			})
		es.logger.LogFitrankError(embErr, "Embedding API error response")
		return nil, 0, embErr
	}

	result, ok := resp.Result().(*EmbeddingResponse)
	if !ok || result == nil || len(result.Data) == 0 {
		embErr := errors.ErrEmbeddingUnavailable("embedding API returned no data", nil)
		es.logger.LogFitrankError(embErr, "Embedding API empty response")
		return nil, 0, embErr
	}

	return result.Data[0].Embedding, result.Usage.TotalTokens, nil
}
