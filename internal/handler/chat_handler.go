// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"mindpal-go/internal/model"
	"mindpal-go/internal/service"
	"mindpal-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理对话相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SendMessageRequest 定义了发送消息 API 的请求体结构。
// SessionID 可选：为 0 时表示“继续最近一次对话，没有则新开一个”。
type SendMessageRequest struct {
	Text      string `json:"text" binding:"required"`
	SessionID uint   `json:"sessionId"`
}

// SendMessage 处理一轮对话请求。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendMessage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required."})
		return
	}

	user := c.MustGet("user").(*model.User)

	result, err := h.chatService.SendMessage(c.Request.Context(), user, req.SessionID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required."})
		case errors.Is(err, service.ErrSessionNotOwned):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or not owned by user."})
		default:
			log.Errorf("SendMessage: turn failed for user %d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message."})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Message successfully processed.",
		"sessionId":  result.SessionID,
		"aiResponse": result.Reply,
	})
}

// MessageResponse 定义了转录列表中单条消息的响应结构。
type MessageResponse struct {
	ID        uint            `json:"id"`
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// GetSessionMessages 返回指定会话的完整转录，按时间升序。
func (h *ChatHandler) GetSessionMessages(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("sessionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的会话 ID"})
		return
	}

	user := c.MustGet("user").(*model.User)

	messages, err := h.chatService.GetSessionMessages(user, uint(sessionID))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotOwned) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or not owned by user."})
			return
		}
		log.Errorf("GetSessionMessages: failed for session %d: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, MessageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Text:      m.Text,
			CreatedAt: model.LocalTime(m.CreatedAt),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":     http.StatusOK,
		"message":  "success",
		"messages": resp,
	})
}
