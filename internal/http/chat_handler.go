package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/service"
)

// ChatOptions agrupa la configuracion del lado del navegador.
type ChatOptions struct {
	CookieSecure bool
	// OriginPatterns son los hosts (patrones de path.Match) que pueden abrir el stream
	// ademas del propio host de la API.
	OriginPatterns []string
}

// ChatHandler expone al widget del visitante: sesion, mensajes y stream en vivo.
type ChatHandler struct {
	logger *zap.Logger
	chat   *service.ChatService
	hub    *service.Hub
	opts   ChatOptions
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chat *service.ChatService, hub *service.Hub, opts ChatOptions) *ChatHandler {
	return &ChatHandler{
		logger: logger,
		chat:   chat,
		hub:    hub,
		opts:   opts,
	}
}

// EnsureSession maneja POST /chat/session.
func (h *ChatHandler) EnsureSession(c *gin.Context) {
	// El cuerpo es opcional: un request vacio no trae datos del visitante.
	var req domain.VisitorInfo
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid ensure session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	state, err := h.chat.EnsureSession(c.Request.Context(), newRequestStore(c, h.opts.CookieSecure), req)
	if err != nil {
		h.logger.Error("ensure chat session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start chat"})
		return
	}

	status := http.StatusOK
	if state.Created {
		status = http.StatusCreated
	}
	c.JSON(status, state)
}

// ListMessages maneja GET /chat/session/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var after time.Time
	if raw := strings.TrimSpace(c.Query("after")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after"})
			return
		}
		after = parsed
	}

	msgs, err := h.chat.Messages(c.Request.Context(), c.Param("id"), after)
	if err != nil {
		h.logger.Error("list chat messages failed", zap.Error(err), zap.String("session_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage maneja POST /chat/session/:id/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.chat.PostVisitorMessage(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		case errors.Is(err, service.ErrSessionNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "chat session not active"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		default:
			h.logger.Error("post chat message failed", zap.Error(err), zap.String("session_id", c.Param("id")))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Stream maneja GET /chat/session/:id/stream: cada mensaje persistido de la sesion se envia
// como un frame de texto JSON.
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("id"))
	if h.hub == nil || sessionID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "stream not available"})
		return
	}

	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	// El cliente no envia datos; CloseRead detecta su desconexion.
	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := writeEvent(ctx, conn, msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err), zap.String("session_id", sessionID))
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg domain.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// upgradeWriter envia el 101 directo al writer de net/http. gin marca la respuesta como escrita
// en cuanto recibe un status y despues rechaza el hijack.
type upgradeWriter struct {
	gw  gin.ResponseWriter
	raw http.ResponseWriter
}

func newUpgradeWriter(gw gin.ResponseWriter) http.ResponseWriter {
	u, ok := gw.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return gw
	}
	return &upgradeWriter{gw: gw, raw: u.Unwrap()}
}

func (w *upgradeWriter) Header() http.Header { return w.gw.Header() }

func (w *upgradeWriter) Write(b []byte) (int, error) { return w.gw.Write(b) }

func (w *upgradeWriter) WriteHeader(code int) {
	if code == http.StatusSwitchingProtocols {
		w.raw.WriteHeader(code)
		return
	}
	w.gw.WriteHeader(code)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gw.Hijack()
}
