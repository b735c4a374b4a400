package handlers

import (
	"context"
	"net/http"
	"strings"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ProfileRepository 个人设置存储接口
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
}

// ProfileRequest 个人设置请求
type ProfileRequest struct {
	FitnessGoal        string   `json:"fitness_goal"`
	FitnessLevel       string   `json:"fitness_level"`
	EquipmentAccess    string   `json:"equipment_access"`
	EquipmentOwned     []string `json:"equipment_owned"`
	DaysPerWeek        int      `json:"days_per_week"`
	SessionLength      string   `json:"session_length"`
	DietaryPreferences []string `json:"dietary_preferences"`
	ChallengeFocus     []string `json:"challenge_focus"`
	Injuries           string   `json:"injuries"`
	BloodType          string   `json:"blood_type"`
}

// ProfileHandler 个人设置API处理器
type ProfileHandler struct {
	profiles ProfileRepository
	logger   *logger.Logger
}

// NewProfileHandler 创建个人设置处理器
func NewProfileHandler(profiles ProfileRepository) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger.NewLogger("profile-handler"),
	}
}

// RegisterRoutes 注册个人设置路由
func (h *ProfileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/users/:user_id/profile", h.Upsert)
	rg.GET("/users/:user_id/profile", h.Get)
}

// Upsert 创建或更新个人设置，每个用户只有一份
// @Summary 保存个人设置
// @Tags profiles
// @Accept json
// @Produce json
// @Param user_id path string true "用户ID"
// @Param request body ProfileRequest true "个人设置"
// @Success 200 {object} models.UserProfile
// @Router /api/v1/users/{user_id}/profile [put]
func (h *ProfileHandler) Upsert(c *gin.Context) {
	userID := c.Param("user_id")

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	profile := &models.UserProfile{
		UserID:             userID,
		FitnessGoal:        req.FitnessGoal,
		FitnessLevel:       models.FitnessLevel(strings.ToUpper(strings.TrimSpace(req.FitnessLevel))),
		EquipmentAccess:    req.EquipmentAccess,
		EquipmentOwned:     stringList(req.EquipmentOwned),
		DaysPerWeek:        req.DaysPerWeek,
		SessionLength:      req.SessionLength,
		DietaryPreferences: stringList(req.DietaryPreferences),
		ChallengeFocus:     stringList(req.ChallengeFocus),
		Injuries:           req.Injuries,
		BloodType:          req.BloodType,
	}
	if err := profile.Validate(); err != nil {
		respondError(c, h.logger, err, "Invalid personal setup", logger.Fields{"user_id": userID})
		return
	}

	if err := h.profiles.Upsert(c.Request.Context(), profile); err != nil {
		respondError(c, h.logger, err, "Failed to save personal setup", logger.Fields{"user_id": userID})
		return
	}

	saved, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to reload personal setup", logger.Fields{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, saved)
}

// Get 读取个人设置
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	if strings.TrimSpace(userID) == "" {
		respondError(c, h.logger, errors.ErrInvalidInput("user_id", "cannot be empty"), "Invalid profile request", nil)
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get personal setup", logger.Fields{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func stringList(values []string) datatypes.JSONSlice[string] {
	if values == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](values)
}
