package interaction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"

	"github.com/google/uuid"
)

const defaultWriteTimeout = 5 * time.Second

// EventWriter 交互事件存储
type EventWriter interface {
	Append(ctx context.Context, event *models.InteractionEvent) error
}

// ProductLookup 用于补全事件中的类目和价格
type ProductLookup interface {
	Get(ctx context.Context, id string) (*models.Product, error)
}

// Logger 交互事件记录器，写入失败只记录日志不返回给调用方
type Logger struct {
	writer       EventWriter
	products     ProductLookup
	writeTimeout time.Duration
	logger       *logger.Logger

	inflight sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewLogger 创建交互事件记录器
func NewLogger(writer EventWriter, products ProductLookup, writeTimeout time.Duration) *Logger {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Logger{
		writer:       writer,
		products:     products,
		writeTimeout: writeTimeout,
		logger:       logger.NewLogger("interaction-logger"),
	}
}

// LogSearch 异步记录搜索事件，不阻塞搜索响应
func (l *Logger) LogSearch(ctx context.Context, userID, query string, resultCount int) {
	event := &models.InteractionEvent{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        models.InteractionSearch,
		Query:       query,
		ResultCount: resultCount,
		Timestamp:   time.Now(),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn("Interaction logger closed, dropping search event", logger.Fields{
			"user_id": userID,
		})
		return
	}
	l.inflight.Add(1)
	l.mu.Unlock()

	// 请求结束后仍需完成写入
	detached := context.WithoutCancel(ctx)
	go func() {
		defer l.inflight.Done()
		writeCtx, cancel := context.WithTimeout(detached, l.writeTimeout)
		defer cancel()
		l.write(writeCtx, event)
	}()
}

// LogInteraction 记录针对商品的交互事件
func (l *Logger) LogInteraction(ctx context.Context, userID, productID string, interactionType models.InteractionType, metadata map[string]interface{}) error {
	if strings.TrimSpace(userID) == "" {
		return errors.ErrInvalidInput("user_id", "cannot be empty")
	}
	if strings.TrimSpace(productID) == "" {
		return errors.ErrInvalidInput("product_id", "cannot be empty")
	}
	if !interactionType.IsProductInteraction() {
		return errors.ErrInvalidInput("interaction_type", fmt.Sprintf("unsupported interaction type: %s", interactionType))
	}

	event := &models.InteractionEvent{
		ID:             uuid.New().String(),
		UserID:         userID,
		Type:           interactionType,
		ProductID:      &productID,
		ImplicitWeight: interactionType.ImplicitWeight(),
		Metadata:       metadata,
		Timestamp:      time.Now(),
	}

	l.denormalize(ctx, event, productID)

	writeCtx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	l.write(writeCtx, event)

	return nil
}

// Close 等待异步写入完成，ctx 到期时放弃等待
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("Interaction logger drained")
		return nil
	case <-ctx.Done():
		l.logger.Warn("Interaction logger close timed out", logger.Fields{
			"error": ctx.Err().Error(),
		})
		return ctx.Err()
	}
}

// denormalize 商品不存在时类目和价格保持为空
func (l *Logger) denormalize(ctx context.Context, event *models.InteractionEvent, productID string) {
	if l.products == nil {
		return
	}

	product, err := l.products.Get(ctx, productID)
	if err != nil {
		if !errors.IsNotFound(err) {
			l.logger.Warn("Product lookup failed while logging interaction", logger.Fields{
				"product_id": productID,
				"error":      err.Error(),
			})
		}
		return
	}

	category := product.Category
	price := product.Price
	event.Category = &category
	event.Price = &price
}

func (l *Logger) write(ctx context.Context, event *models.InteractionEvent) {
	if err := l.writer.Append(ctx, event); err != nil {
		logErr, ok := errors.As(err)
		if !ok || !logErr.IsCode(errors.ErrCodeLogWriteFailed) {
			logErr = errors.ErrLogWriteFailed("append interaction", err)
		}
		l.logger.LogFitrankError(logErr, "Failed to write interaction event", logger.Fields{
			"user_id":          event.UserID,
			"interaction_type": string(event.Type),
		})
		return
	}

	l.logger.Debug("Interaction event logged", logger.Fields{
		"user_id":          event.UserID,
		"interaction_type": string(event.Type),
	})
}
