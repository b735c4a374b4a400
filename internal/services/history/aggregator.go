package history

import (
	"context"
	"time"

	"fitrank/internal/logger"
	"fitrank/internal/models"
)

// DefaultWindowDays 默认回溯天数
const DefaultWindowDays = 90

// EventSource 交互事件来源
type EventSource interface {
	ListSince(ctx context.Context, userID string, since time.Time) ([]*models.InteractionEvent, error)
}

// Aggregator 将时间窗口内的交互事件聚合为用户历史
type Aggregator struct {
	source     EventSource
	windowDays int
	now        func() time.Time
	logger     *logger.Logger
}

// NewAggregator 创建历史聚合器，windowDays 非正数时使用默认值
func NewAggregator(source EventSource, windowDays int) *Aggregator {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Aggregator{
		source:     source,
		windowDays: windowDays,
		now:        time.Now,
		logger:     logger.NewLogger("history-aggregator"),
	}
}

// WindowDays 默认窗口
func (a *Aggregator) WindowDays() int {
	return a.windowDays
}

// Aggregate 使用默认窗口聚合
func (a *Aggregator) Aggregate(ctx context.Context, userID string) (*models.AggregatedHistory, error) {
	return a.AggregateWindow(ctx, userID, a.windowDays)
}

// AggregateWindow 聚合最近 windowDays 天的行为，没有事件时返回空历史
func (a *Aggregator) AggregateWindow(ctx context.Context, userID string, windowDays int) (*models.AggregatedHistory, error) {
	if windowDays <= 0 {
		windowDays = a.windowDays
	}
	since := a.now().AddDate(0, 0, -windowDays)

	events, err := a.source.ListSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	history := Build(events)

	a.logger.Debug("User history aggregated", logger.Fields{
		"user_id":     userID,
		"window_days": windowDays,
		"events":      len(events),
		"purchased":   len(history.PurchasedProducts),
		"viewed":      len(history.ViewedProducts),
	})

	return history, nil
}

// Build 根据事件列表构建历史
func Build(events []*models.InteractionEvent) *models.AggregatedHistory {
	history := models.EmptyHistory()

	for _, event := range events {
		if event == nil || event.ProductID == nil {
			continue
		}

		switch event.Type {
		case models.InteractionView:
			history.ViewedProducts[*event.ProductID] = struct{}{}

		case models.InteractionPurchase:
			history.PurchasedProducts[*event.ProductID] = struct{}{}

			category := models.CategoryUnknown
			if event.Category != nil && *event.Category != "" {
				category = *event.Category
			}
			history.CategoryPurchases[category]++

			if event.Price != nil {
				observePrice(&history.PriceRange, *event.Price)
			}
		}
	}

	return history
}

func observePrice(r *models.PriceRange, price int64) {
	if !r.Observed {
		r.Min, r.Max, r.Observed = price, price, true
		return
	}
	if price < r.Min {
		r.Min = price
	}
	if price > r.Max {
		r.Max = price
	}
}
