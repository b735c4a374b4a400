package storage

import (
	"context"
	stderrors "errors"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore 用户个人设置持久化
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore 创建个人设置仓储
func NewProfileStore(db *Database) *ProfileStore {
	return &ProfileStore{db: db.DB}
}

// Get 获取用户个人设置
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrResourceNotFound("profile", userID)
	}
	if err != nil {
		return nil, errors.ErrDatabaseQuery("get profile", err)
	}
	return &profile, nil
}

// Upsert 不存在则创建，存在则整体更新
func (s *ProfileStore) Upsert(ctx context.Context, profile *models.UserProfile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"fitness_goal", "fitness_level", "equipment_access", "equipment_owned",
			"days_per_week", "session_length", "dietary_preferences", "challenge_focus",
			"injuries", "blood_type", "updated_at",
		}),
	}).Create(profile).Error
	if err != nil {
		return errors.ErrDatabaseQuery("upsert profile", err)
	}
	return nil
}
