package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// Routes collects everything the HTTP surface serves.
type Routes struct {
	Auth     *AuthHandler
	Messages *MessageHandler
	Friends  *FriendHandler
	Push     *PushHandler
	WebRTC   *WebRTCConfig

	// WebSocket upgrades /api/ws/:user_id/:username.
	WebSocket gin.HandlerFunc
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	LoginLimiter    *limiter.Limiter
	RegisterLimiter *limiter.Limiter
}

// Register mounts r on router.
func (r Routes) Register(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Peyvand API"})
		})

		register := []gin.HandlerFunc{r.Auth.Register}
		login := []gin.HandlerFunc{r.Auth.Login}
		if r.RegisterLimiter != nil {
			register = append([]gin.HandlerFunc{RateLimit(r.RegisterLimiter)}, register...)
		}
		if r.LoginLimiter != nil {
			login = append([]gin.HandlerFunc{RateLimit(r.LoginLimiter)}, login...)
		}
		api.POST("/auth/register", register...)
		api.POST("/auth/login", login...)

		// Read model. Identity is taken from the path, as on the websocket.
		api.GET("/messages/:user1_id/:user2_id", r.Messages.GetConversation)
		api.GET("/messages/unread/:user_id", r.Messages.GetUnread)
		api.POST("/messages", r.Messages.CreateMessage)
		api.POST("/messages/:message_id/read", r.Messages.MarkAsRead)

		api.POST("/friends/request", r.Friends.SendRequest)
		api.POST("/friends/accept", r.Friends.Accept)
		api.GET("/friends/:user_id", r.Friends.List)
		api.GET("/friends/requests/:user_id", r.Friends.Pending)

		api.GET("/users/online", r.Messages.GetOnlineUsers)
		api.GET("/webrtc/config", r.WebRTC.Get)
		api.GET("/push/vapid-key", r.Push.VAPIDKey)
	}

	protected := api.Group("")
	protected.Use(r.Auth.AuthMiddleware())
	{
		protected.PUT("/messages/:message_id", r.Messages.EditMessage)
		protected.DELETE("/messages/:message_id", r.Messages.DeleteMessage)
		protected.POST("/messages/:message_id/react", r.Messages.ReactMessage)

		protected.POST("/push/subscribe", r.Push.Subscribe)
		protected.DELETE("/push/subscribe", r.Push.Unsubscribe)
	}

	if r.WebSocket != nil {
		router.GET("/api/ws/:user_id/:username", r.WebSocket)
	}
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": __("not found")})
	})
}
