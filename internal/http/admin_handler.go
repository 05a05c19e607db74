package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/service"
)

// AdminHandler mantiene dependencias para la consola del operador.
type AdminHandler struct {
	logger  *zap.Logger
	auth    *service.AdminAuthService
	jwtServ *service.JWTService
	console *service.AdminConsole
	manager *service.SessionManager
	log     *service.MessageLog
}

// NewAdminHandler crea una instancia de AdminHandler con dependencias necesarias.
func NewAdminHandler(
	logger *zap.Logger,
	auth *service.AdminAuthService,
	jwtServ *service.JWTService,
	console *service.AdminConsole,
	manager *service.SessionManager,
	log *service.MessageLog,
) *AdminHandler {
	return &AdminHandler{
		logger:  logger,
		auth:    auth,
		jwtServ: jwtServ,
		console: console,
		manager: manager,
		log:     log,
	}
}

// Login maneja POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid admin login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	admin, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrAdminAuthNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login disabled"})
		default:
			h.logger.Error("admin login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		}
		return
	}

	pair, err := h.jwtServ.GeneratePair(admin)
	if err != nil {
		h.logger.Error("generate admin tokens failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh maneja POST /admin/refresh.
func (h *AdminHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := h.jwtServ.RefreshPair(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrJWTInvalid) || errors.Is(err, service.ErrJWTExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		h.logger.Error("refresh admin tokens failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout maneja POST /admin/logout: revoca el refresh token recibido, o todas las sesiones
// de consola del operador con "all": true.
func (h *AdminHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
		All          bool   `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	revoked, err := h.jwtServ.RevokeRefresh(req.RefreshToken, req.All)
	if err != nil {
		if errors.Is(err, service.ErrJWTInvalid) || errors.Is(err, service.ErrJWTExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		h.logger.Error("revoke admin refresh token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
		return
	}
	h.logger.Info("admin logout", zap.Int("revoked", revoked), zap.Bool("all", req.All))
	c.Status(http.StatusNoContent)
}

// ListSessions maneja GET /admin/chat/sessions. Un error de lectura devuelve lista vacia.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	list := h.console.ListSessions(c.Request.Context())
	list = service.FilterSessions(list, service.SessionFilter{
		Query:  c.Query("q"),
		Status: c.Query("status"),
	})
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// SessionMessages maneja GET /admin/chat/sessions/:id/messages.
func (h *AdminHandler) SessionMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.console.LoadMessages(c.Request.Context(), c.Param("id"))})
}

// PostAgentMessage maneja POST /admin/chat/sessions/:id/messages: respuesta humana con remitente admin.
func (h *AdminHandler) PostAgentMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var metadata map[string]any
	if claims, ok := GetAuthClaims(c); ok {
		metadata = map[string]any{"admin_id": claims.AdminID}
	}
	msg, err := h.log.Append(c.Request.Context(), c.Param("id"), req.Message, domain.SenderAdmin, metadata)
	if err != nil {
		if errors.Is(err, service.ErrMessageInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("post agent message failed", zap.Error(err), zap.String("session_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// CloseSession maneja POST /admin/chat/sessions/:id/close.
func (h *AdminHandler) CloseSession(c *gin.Context) {
	h.setStatus(c, domain.SessionClosed)
}

// ReopenSession maneja POST /admin/chat/sessions/:id/reopen.
func (h *AdminHandler) ReopenSession(c *gin.Context) {
	h.setStatus(c, domain.SessionActive)
}

func (h *AdminHandler) setStatus(c *gin.Context, status domain.SessionStatus) {
	id := c.Param("id")
	var err error
	if status == domain.SessionClosed {
		err = h.manager.Close(c.Request.Context(), id)
	} else {
		err = h.manager.Reopen(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat session not found"})
			return
		}
		h.logger.Error("update chat session status failed", zap.Error(err), zap.String("session_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "status": status})
}
