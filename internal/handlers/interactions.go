package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/logger"
	"fitrank/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// InteractionRecorder 交互事件记录接口
type InteractionRecorder interface {
	LogInteraction(ctx context.Context, userID, productID string, interactionType models.InteractionType, metadata map[string]interface{}) error
}

// InteractionRequest 交互事件请求
type InteractionRequest struct {
	UserID          string                 `json:"user_id" binding:"required"`
	ProductID       string                 `json:"product_id" binding:"required"`
	InteractionType string                 `json:"interaction_type" binding:"required"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// StatusResponse 简单状态响应
type StatusResponse struct {
	Status string `json:"status"`
}

// StreamError 流式接口中的错误帧
type StreamError struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamMaxFrame  = 64 * 1024
)

// InteractionHandler 交互事件API处理器
type InteractionHandler struct {
	recorder InteractionRecorder
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewInteractionHandler 创建交互事件处理器
func NewInteractionHandler(recorder InteractionRecorder) *InteractionHandler {
	return &InteractionHandler{
		recorder: recorder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.NewLogger("interaction-handler"),
	}
}

// RegisterRoutes 注册交互事件路由
func (h *InteractionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/interactions", h.Log)
	rg.GET("/interactions/stream", h.Stream)
}

// Log 记录单个交互事件
// @Summary 记录交互
// @Tags interactions
// @Accept json
// @Produce json
// @Param request body InteractionRequest true "交互事件"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/interactions [post]
func (h *InteractionHandler) Log(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	if err := h.record(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err, "Failed to log interaction", logger.Fields{
			"user_id":    req.UserID,
			"product_id": req.ProductID,
		})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: "logged"})
}

// Stream 通过 WebSocket 连续上报交互事件，每一帧都会得到确认或错误帧
// @Summary 交互事件流
// @Tags interactions
// @Param user_id query string false "连接级别的默认用户ID"
// @Router /api/v1/interactions/stream [get]
func (h *InteractionHandler) Stream(c *gin.Context) {
	defaultUserID := c.Query("user_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsErr := errors.ErrWebSocketMessage("upgrade failed", err)
		h.logger.LogFitrankError(wsErr, "WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(streamMaxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	h.logger.Info("Interaction stream opened", logger.Fields{
		"user_id":     defaultUserID,
		"remote_addr": c.Request.RemoteAddr,
	})

	ctx := c.Request.Context()
	frames := 0
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wsErr := errors.ErrWebSocketMessage("read failed", err)
				h.logger.LogFitrankError(wsErr, "Interaction stream closed unexpectedly")
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))

		if messageType != websocket.TextMessage {
			h.logger.Debug("Ignored non-text frame", logger.Fields{"message_type": messageType})
			continue
		}
		frames++

		reply := h.handleFrame(ctx, defaultUserID, message)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			wsErr := errors.ErrWebSocketMessage("write failed", err)
			h.logger.LogFitrankError(wsErr, "Failed to acknowledge interaction frame")
			break
		}
	}

	h.logger.Info("Interaction stream closed", logger.Fields{
		"user_id": defaultUserID,
		"frames":  frames,
	})
}

func (h *InteractionHandler) handleFrame(ctx context.Context, defaultUserID string, message []byte) interface{} {
	var req InteractionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return StreamError{
			Status:  "error",
			Code:    string(errors.ErrCodeInvalidInput),
			Message: "frame is not valid JSON",
		}
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	if err := h.record(ctx, &req); err != nil {
		frame := StreamError{Status: "error", Message: "Internal server error"}
		if fe, ok := errors.As(err); ok {
			frame.Code = string(fe.Code)
			frame.Message = fe.Message
			if fe.Details != "" {
				frame.Message += ": " + fe.Details
			}
		}
		return frame
	}

	return StatusResponse{Status: "logged"}
}

func (h *InteractionHandler) record(ctx context.Context, req *InteractionRequest) error {
	interactionType := models.InteractionType(strings.ToLower(strings.TrimSpace(req.InteractionType)))
	return h.recorder.LogInteraction(ctx, req.UserID, req.ProductID, interactionType, req.Metadata)
}
