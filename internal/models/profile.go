package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"fitrank/internal/errors"

	"gorm.io/datatypes"
)

// FitnessLevel 训练水平
type FitnessLevel string

const (
	FitnessLevelBeginner     FitnessLevel = "BEGINNER"
	FitnessLevelIntermediate FitnessLevel = "INTERMEDIATE"
	FitnessLevelAdvanced     FitnessLevel = "ADVANCED"
)

// UserProfile 用户个人设置，每个用户一条
type UserProfile struct {
	ID                 uint                        `json:"-" gorm:"primaryKey"`
	UserID             string                      `json:"user_id" gorm:"uniqueIndex;not null"`
	FitnessGoal        string                      `json:"fitness_goal"`
	FitnessLevel       FitnessLevel                `json:"fitness_level"`
	EquipmentAccess    string                      `json:"equipment_access"`
	EquipmentOwned     datatypes.JSONSlice[string] `json:"equipment_owned" gorm:"type:json"`
	DaysPerWeek        int                         `json:"days_per_week"`
	SessionLength      string                      `json:"session_length"`
	DietaryPreferences datatypes.JSONSlice[string] `json:"dietary_preferences" gorm:"type:json"`
	ChallengeFocus     datatypes.JSONSlice[string] `json:"challenge_focus" gorm:"type:json"`
	Injuries           string                      `json:"injuries"`
	BloodType          string                      `json:"blood_type,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// DefaultUserProfile 没有个人设置的用户使用的默认值
func DefaultUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:             userID,
		FitnessGoal:        "general_fitness",
		FitnessLevel:       "intermediate",
		EquipmentAccess:    "some",
		EquipmentOwned:     datatypes.JSONSlice[string]{},
		DaysPerWeek:        3,
		SessionLength:      "30-45 min",
		DietaryPreferences: datatypes.JSONSlice[string]{},
		ChallengeFocus:     datatypes.JSONSlice[string]{},
		Injuries:           "none",
	}
}

// Validate 验证个人设置
func (p *UserProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.ErrValidationFailed("user_id", "cannot be empty")
	}
	if p.DaysPerWeek < 1 || p.DaysPerWeek > 7 {
		return errors.ErrValidationFailed("days_per_week", "must be between 1 and 7")
	}
	if p.FitnessLevel != "" {
		switch FitnessLevel(strings.ToUpper(string(p.FitnessLevel))) {
		case FitnessLevelBeginner, FitnessLevelIntermediate, FitnessLevelAdvanced:
		default:
			return errors.ErrValidationFailed("fitness_level", fmt.Sprintf("invalid fitness level: %s", p.FitnessLevel))
		}
	}
	return nil
}

// ProfileText 生成用于向量化的画像描述
func (p *UserProfile) ProfileText() string {
	return strings.Join([]string{
		"fitnessGoal: " + p.FitnessGoal,
		"fitnessLevel: " + string(p.FitnessLevel),
		"equipment: " + p.EquipmentAccess,
		"equipmentHave: " + strings.Join(p.EquipmentOwned, ", "),
		fmt.Sprintf("daysPerWeek: %d", p.DaysPerWeek),
		"sessionLength: " + p.SessionLength,
		"injuries: " + p.Injuries,
		"dietaryPreference: " + strings.Join(p.DietaryPreferences, ", "),
		"challenge: " + strings.Join(p.ChallengeFocus, ", "),
		"bloodType: " + p.BloodType,
	}, "\n")
}

// CacheKey 画像属性的归一化哈希，集合字段排序后参与计算
func (p *UserProfile) CacheKey() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	set := func(values []string) string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, norm(v))
		}
		sort.Strings(out)
		return strings.Join(out, ",")
	}

	raw := strings.Join([]string{
		norm(p.FitnessGoal),
		norm(string(p.FitnessLevel)),
		norm(p.EquipmentAccess),
		set(p.EquipmentOwned),
		fmt.Sprintf("%d", p.DaysPerWeek),
		norm(p.SessionLength),
		set(p.DietaryPreferences),
		set(p.ChallengeFocus),
		norm(p.Injuries),
		norm(p.BloodType),
	}, "|")

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
