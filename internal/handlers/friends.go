package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/service"
)

type FriendHandler struct {
	friends *service.Friends
	logger  *zap.Logger
}

func NewFriendHandler(friends *service.Friends, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, logger: logger}
}

type FriendRequest struct {
	FromUserID   string `json:"from_user_id" binding:"required"`
	FromUsername string `json:"from_username" binding:"required"`
	ToUsername   string `json:"to_username" binding:"required"`
}

type AcceptRequest struct {
	FromUserID string `json:"from_user_id" binding:"required"`
	ToUserID   string `json:"to_user_id" binding:"required"`
}

// SendRequest records a pending friend request. A repeated request is
// answered with an error object and status 200.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req FriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	rel, err := h.friends.SendRequest(c.Request.Context(), req.FromUserID, req.FromUsername, req.ToUsername)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Friend request sent", "request": rel})
	case errors.Is(err, errs.ErrConflict):
		c.JSON(http.StatusOK, gin.H{"error": __("friend request already exists")})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": __("user not found")})
	case errors.Is(err, errs.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": __("cannot send a friend request to yourself")})
	default:
		h.logger.Error("failed to send friend request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to send friend request")})
	}
}

// Accept turns a pending request into a friendship
func (h *FriendHandler) Accept(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	if err := h.friends.Accept(c.Request.Context(), req.FromUserID, req.ToUserID); err != nil {
		respondWriteError(c, h.logger, err, "friend request not found", "failed to accept friend request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// List returns a user's friends with their online status
func (h *FriendHandler) List(c *gin.Context) {
	friends, err := h.friends.List(c.Request.Context(), c.Param("user_id"))
	respondList(c, h.logger, friends, err, "failed to fetch friends")
}

// Pending returns requests waiting for the user's answer
func (h *FriendHandler) Pending(c *gin.Context) {
	reqs, err := h.friends.Pending(c.Request.Context(), c.Param("user_id"))
	respondList(c, h.logger, reqs, err, "failed to fetch friends")
}
