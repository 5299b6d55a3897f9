// Package handlers serves the REST side of peyvand: accounts, message
// history, friends, presence and push subscriptions.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/pkg/i18n"
)

func __(message string) string {
	return i18n.Translate(message)
}

// Hub is the live relay as seen from the HTTP API.
type Hub interface {
	Presence() []models.Presence
	SendPersonal(userID string, v any) bool
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": __(message)})
}

// respondList writes items, degrading an unreachable store to an empty list.
func respondList[T any](c *gin.Context, logger *zap.Logger, items []T, err error, failure string) {
	switch {
	case err == nil:
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, items)
	case errors.Is(err, errs.ErrBackendUnavailable):
		logger.Warn("store unavailable, returning empty list", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusOK, []T{})
	default:
		logger.Error(failure, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": __(failure)})
	}
}

// respondWriteError maps a failed write to a status code. notFound is the
// message used when the target does not exist.
func respondWriteError(c *gin.Context, logger *zap.Logger, err error, notFound, failure string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": __(notFound)})
	case errors.Is(err, errs.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
	default:
		logger.Error(failure, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": __(failure)})
	}
}

func currentUser(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	return id, id != ""
}
