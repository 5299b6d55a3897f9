package ws

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades /api/ws/:user_id/:username requests and hands the
// connection to the relay. The identity in the path is trusted.
type Handler struct {
	relay        *Relay
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	readTimeout  time.Duration
	logger       *zap.Logger
}

// NewHandler builds the upgrade handler. corsOrigins is a comma separated
// list of allowed origins, or "*".
func NewHandler(relay *Relay, corsOrigins string, pingInterval, readTimeout time.Duration, logger *zap.Logger) *Handler {
	allowed := strings.Split(corsOrigins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}
	return &Handler{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
			},
		},
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
		logger:       logger,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.Param("user_id")
	username := c.Param("username")
	if userID == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and username are required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	t := NewTransport(conn, h.pingInterval, h.readTimeout)
	h.relay.Serve(c.Request.Context(), t, userID, username)
}
