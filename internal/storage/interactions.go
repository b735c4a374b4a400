package storage

import (
	"context"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/models"

	"gorm.io/gorm"
)

// InteractionStore 交互事件日志，只追加
type InteractionStore struct {
	db *gorm.DB
}

// NewInteractionStore 创建交互日志仓储
func NewInteractionStore(db *Database) *InteractionStore {
	return &InteractionStore{db: db.DB}
}

// Append 追加事件
func (s *InteractionStore) Append(ctx context.Context, event *models.InteractionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// 统一存储为UTC，保证按时间字符串比较的顺序
	event.Timestamp = event.Timestamp.UTC()

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.ErrLogWriteFailed("append interaction", err)
	}
	return nil
}

// ListSince 按时间顺序读取用户在 since 之后的事件
func (s *InteractionStore) ListSince(ctx context.Context, userID string, since time.Time) ([]*models.InteractionEvent, error) {
	var events []*models.InteractionEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ?", userID, since.UTC()).
		Order("timestamp ASC").
		Find(&events).Error; err != nil {
		return nil, errors.ErrDatabaseQuery("list interactions", err)
	}
	return events, nil
}
