package interaction

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	mu     sync.Mutex
	events []*models.InteractionEvent
	err    error
	delay  time.Duration
}

func (w *memoryWriter) Append(ctx context.Context, event *models.InteractionEvent) error {
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func (w *memoryWriter) Events() []*models.InteractionEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*models.InteractionEvent, len(w.events))
	copy(out, w.events)
	return out
}

type productMap map[string]*models.Product

func (m productMap) Get(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, errors.ErrResourceNotFound("product", id)
}

func TestLogger_LogInteraction(t *testing.T) {
	ctx := context.Background()
	product := models.NewProduct("Whey Isolate", models.CategoryProtein, "Fast absorbing whey", 4599)
	products := productMap{product.ID: product}

	t.Run("补全类目和价格", func(t *testing.T) {
		writer := &memoryWriter{}
		l := NewLogger(writer, products, time.Second)

		err := l.LogInteraction(ctx, "user-1", product.ID, models.InteractionPurchase, map[string]interface{}{"source": "search"})
		require.NoError(t, err)

		events := writer.Events()
		require.Len(t, events, 1)
		e := events[0]
		assert.Equal(t, models.InteractionPurchase, e.Type)
		assert.Equal(t, 1.0, e.ImplicitWeight)
		require.NotNil(t, e.Category)
		assert.Equal(t, models.CategoryProtein, *e.Category)
		require.NotNil(t, e.Price)
		assert.Equal(t, int64(4599), *e.Price)
		assert.Equal(t, "search", e.Metadata["source"])
	})

	t.Run("商品不存在时字段为空", func(t *testing.T) {
		writer := &memoryWriter{}
		l := NewLogger(writer, products, time.Second)

		require.NoError(t, l.LogInteraction(ctx, "user-1", "missing", models.InteractionView, nil))

		events := writer.Events()
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Category)
		assert.Nil(t, events[0].Price)
		assert.Equal(t, 0.3, events[0].ImplicitWeight)
	})

	t.Run("非法类型", func(t *testing.T) {
		writer := &memoryWriter{}
		l := NewLogger(writer, products, time.Second)

		for _, typ := range []models.InteractionType{models.InteractionSearch, "wishlist", ""} {
			err := l.LogInteraction(ctx, "user-1", product.ID, typ, nil)
			assert.True(t, errors.IsInvalidInput(err), "type %q", typ)
		}
		assert.Empty(t, writer.Events())
	})

	t.Run("缺少用户或商品", func(t *testing.T) {
		l := NewLogger(&memoryWriter{}, products, time.Second)
		assert.True(t, errors.IsInvalidInput(l.LogInteraction(ctx, "", product.ID, models.InteractionClick, nil)))
		assert.True(t, errors.IsInvalidInput(l.LogInteraction(ctx, "user-1", " ", models.InteractionClick, nil)))
	})

	t.Run("写入失败不返回错误", func(t *testing.T) {
		writer := &memoryWriter{err: fmt.Errorf("database is locked")}
		l := NewLogger(writer, products, time.Second)

		assert.NoError(t, l.LogInteraction(ctx, "user-1", product.ID, models.InteractionAddToCart, nil))
	})
}

func TestLogger_LogSearch(t *testing.T) {
	t.Run("请求取消后仍然写入", func(t *testing.T) {
		writer := &memoryWriter{delay: 20 * time.Millisecond}
		l := NewLogger(writer, nil, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		l.LogSearch(ctx, "user-1", "protein powder", 7)
		cancel()

		require.NoError(t, l.Close(context.Background()))

		events := writer.Events()
		require.Len(t, events, 1)
		assert.Equal(t, models.InteractionSearch, events[0].Type)
		assert.Equal(t, "protein powder", events[0].Query)
		assert.Equal(t, 7, events[0].ResultCount)
		assert.Nil(t, events[0].ProductID)
	})

	t.Run("写入失败被吞掉", func(t *testing.T) {
		writer := &memoryWriter{err: errors.ErrLogWriteFailed("append interaction", fmt.Errorf("disk full"))}
		l := NewLogger(writer, nil, time.Second)

		l.LogSearch(context.Background(), "user-1", "bands", 0)
		assert.NoError(t, l.Close(context.Background()))
		assert.Empty(t, writer.Events())
	})

	t.Run("关闭后丢弃", func(t *testing.T) {
		writer := &memoryWriter{}
		l := NewLogger(writer, nil, time.Second)
		require.NoError(t, l.Close(context.Background()))

		l.LogSearch(context.Background(), "user-1", "creatine", 3)
		assert.Empty(t, writer.Events())
	})

	t.Run("关闭超时", func(t *testing.T) {
		writer := &memoryWriter{delay: 500 * time.Millisecond}
		l := NewLogger(writer, nil, time.Second)
		l.LogSearch(context.Background(), "user-1", "mat", 1)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)

		require.NoError(t, l.Close(context.Background()))
		assert.Len(t, writer.Events(), 1)
	})

	t.Run("并发写入", func(t *testing.T) {
		writer := &memoryWriter{}
		l := NewLogger(writer, nil, time.Second)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				l.LogSearch(context.Background(), fmt.Sprintf("user-%d", i), "query", i)
			}(i)
		}
		wg.Wait()

		require.NoError(t, l.Close(context.Background()))
		assert.Len(t, writer.Events(), 50)
	})
}
