package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agency-chat/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas del chat.
func NewRouter(
	logger *zap.Logger,
	chatH *ChatHandler,
	adminH *AdminHandler,
	jwtSvc *service.JWTService,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery. El stream websocket no lleva Content-Type JSON.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	r.GET("/chat/session/:id/stream", chatH.Stream)

	api := r.Group("", jsonContentTypeMiddleware())
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chat := api.Group("/chat")
	chat.POST("/session", chatH.EnsureSession)
	chat.GET("/session/:id/messages", chatH.ListMessages)
	chat.POST("/session/:id/messages", chatH.PostMessage)

	admin := api.Group("/admin")
	admin.POST("/login", adminH.Login)
	admin.POST("/refresh", adminH.Refresh)
	admin.POST("/logout", adminH.Logout)

	console := admin.Group("/chat", JWTAuthMiddleware(jwtSvc))
	console.GET("/sessions", adminH.ListSessions)
	console.GET("/sessions/:id/messages", adminH.SessionMessages)
	console.POST("/sessions/:id/messages", adminH.PostAgentMessage)
	console.POST("/sessions/:id/close", adminH.CloseSession)
	console.POST("/sessions/:id/reopen", adminH.ReopenSession)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
