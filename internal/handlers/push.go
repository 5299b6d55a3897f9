package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/push"
)

type PushHandler struct {
	notifier *push.Notifier
	logger   *zap.Logger
}

// NewPushHandler builds the subscription endpoints. A nil notifier means
// push is not configured and every endpoint answers 404.
func NewPushHandler(notifier *push.Notifier, logger *zap.Logger) *PushHandler {
	return &PushHandler{notifier: notifier, logger: logger}
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

func (h *PushHandler) enabled(c *gin.Context) bool {
	if h.notifier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": __("push notifications disabled")})
		return false
	}
	return true
}

// VAPIDKey returns the application server key browsers subscribe with
func (h *PushHandler) VAPIDKey(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.notifier.VAPIDPublicKey()})
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid subscription")})
		return
	}

	sub, err := h.notifier.Subscribe(c.Request.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		respondWriteError(c, h.logger, err, "subscription not found", "failed to save subscription")
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *PushHandler) Unsubscribe(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid subscription")})
		return
	}

	if err := h.notifier.Unsubscribe(c.Request.Context(), userID, req.Endpoint); err != nil {
		respondWriteError(c, h.logger, err, "subscription not found", "failed to remove subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}
