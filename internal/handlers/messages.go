package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/service"
)

type MessageHandler struct {
	svc    *service.Service
	hub    Hub
	logger *zap.Logger
}

// NewMessageHandler builds the message endpoints. hub may be nil, in which
// case nothing is delivered live.
func NewMessageHandler(svc *service.Service, hub Hub, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, hub: hub, logger: logger}
}

type CreateMessageRequest struct {
	FromUserID   string `json:"from_user_id" binding:"required"`
	FromUsername string `json:"from_username" binding:"required"`
	ToUserID     string `json:"to_user_id" binding:"required"`
	Message      string `json:"message"`

	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`

	ReplyToID       string `json:"reply_to_id"`
	ReplyToText     string `json:"reply_to_text"`
	ReplyToUsername string `json:"reply_to_username"`
}

func (h *MessageHandler) notify(v any, userIDs ...string) {
	if h.hub == nil {
		return
	}
	for _, id := range userIDs {
		h.hub.SendPersonal(id, v)
	}
}

// GetConversation returns the messages exchanged by two users, oldest first
func (h *MessageHandler) GetConversation(c *gin.Context) {
	msgs, err := h.svc.Messages.Conversation(c.Request.Context(), c.Param("user1_id"), c.Param("user2_id"))
	respondList(c, h.logger, msgs, err, "failed to fetch messages")
}

// GetUnread returns the messages a user has not read yet
func (h *MessageHandler) GetUnread(c *gin.Context) {
	msgs, err := h.svc.Messages.Unread(c.Request.Context(), c.Param("user_id"))
	respondList(c, h.logger, msgs, err, "failed to fetch messages")
}

// CreateMessage stores a message and delivers it to a connected recipient
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	msg := h.svc.Messages.Compose(service.Draft{
		FromUserID:      req.FromUserID,
		FromUsername:    req.FromUsername,
		ToUserID:        req.ToUserID,
		Message:         req.Message,
		FileURL:         req.FileURL,
		FileType:        req.FileType,
		FileName:        req.FileName,
		ReplyToID:       req.ReplyToID,
		ReplyToText:     req.ReplyToText,
		ReplyToUsername: req.ReplyToUsername,
	})
	if err := h.svc.Messages.Create(c.Request.Context(), msg); err != nil {
		h.logger.Error("failed to create message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to create message")})
		return
	}

	h.notify(gin.H{"type": "receive-message", "message": msg}, msg.ToUserID)
	c.JSON(http.StatusOK, msg)
}

// MarkAsRead marks a message as read
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	if err := h.svc.Messages.MarkRead(c.Request.Context(), c.Param("message_id")); err != nil {
		respondWriteError(c, h.logger, err, "message not found", "failed to update message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ownMessage loads the message in the path and checks the current user sent it.
func (h *MessageHandler) ownMessage(c *gin.Context, denied string) (*models.Message, bool) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return nil, false
	}

	msg, err := h.svc.Messages.Get(c.Request.Context(), c.Param("message_id"))
	if errors.Is(err, errs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": __("message not found")})
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to fetch message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to fetch message")})
		return nil, false
	}
	if msg.FromUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": __(denied)})
		return nil, false
	}
	return msg, true
}

// EditMessage replaces the text of the caller's own message
func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req struct {
		Message *string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	msg, ok := h.ownMessage(c, "can only edit own messages")
	if !ok {
		return
	}

	editedAt := h.svc.Clock.Now()
	if err := h.svc.Messages.Edit(c.Request.Context(), msg.ID, *req.Message, editedAt); err != nil {
		respondWriteError(c, h.logger, err, "message not found", "failed to update message")
		return
	}

	h.notify(gin.H{
		"type":         "edit-message",
		"message_id":   msg.ID,
		"new_message":  *req.Message,
		"edited_at":    editedAt,
		"from_user_id": msg.FromUserID,
	}, msg.ToUserID, msg.FromUserID)
	c.JSON(http.StatusOK, gin.H{"status": "updated", "edited_at": editedAt})
}

// DeleteMessage soft-deletes a message (only sender can delete)
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, ok := h.ownMessage(c, "can only delete own messages")
	if !ok {
		return
	}

	if err := h.svc.Messages.SoftDelete(c.Request.Context(), msg.ID); err != nil {
		respondWriteError(c, h.logger, err, "message not found", "failed to delete message")
		return
	}

	h.notify(gin.H{
		"type":         "delete-message",
		"message_id":   msg.ID,
		"from_user_id": msg.FromUserID,
	}, msg.ToUserID, msg.FromUserID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ReactMessage toggles the caller's reaction on a message
func (h *MessageHandler) ReactMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	id := c.Param("message_id")
	msg, err := h.svc.Messages.Get(c.Request.Context(), id)
	if err != nil {
		respondWriteError(c, h.logger, err, "message not found", "failed to react to message")
		return
	}
	reactions, err := h.svc.Messages.ToggleReaction(c.Request.Context(), id, req.Emoji, userID)
	if err != nil {
		respondWriteError(c, h.logger, err, "message not found", "failed to react to message")
		return
	}

	h.notify(gin.H{
		"type":       "message-reaction",
		"message_id": id,
		"reactions":  reactions,
	}, msg.ToUserID, msg.FromUserID)
	c.JSON(http.StatusOK, gin.H{"message_id": id, "reactions": reactions})
}

// GetOnlineUsers lists connected users
func (h *MessageHandler) GetOnlineUsers(c *gin.Context) {
	users := []models.Presence{}
	if h.hub != nil {
		users = h.hub.Presence()
	}
	c.JSON(http.StatusOK, users)
}
