package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/logging"
	"agency-chat/internal/repository"
)

// NoMessagesPlaceholder reemplaza last_message cuando la sesion no tiene mensajes.
const NoMessagesPlaceholder = "No messages yet"

const (
	StatusFilterAll    = "all"
	StatusFilterActive = "active"
	StatusFilterClosed = "closed"
)

// SessionFilter se aplica en memoria sobre la lista ya obtenida.
type SessionFilter struct {
	Query  string
	Status string
}

// AdminConsole es la vista de solo lectura del operador. Los errores de lectura se registran
// y se devuelven como lista vacia.
type AdminConsole struct {
	logger   *zap.Logger
	sessions repository.ChatSessionRepository
	log      *MessageLog
}

func NewAdminConsole(logger *zap.Logger, sessions repository.ChatSessionRepository, log *MessageLog) *AdminConsole {
	return &AdminConsole{logger: logger, sessions: sessions, log: log}
}

func (c *AdminConsole) ListSessions(ctx context.Context) []domain.SessionSummary {
	if c == nil || c.sessions == nil || c.log == nil {
		return []domain.SessionSummary{}
	}
	defer logging.LogDuration(ctx, c.logger, "ListSessions")()

	sessions, err := c.sessions.List(ctx)
	if err != nil {
		c.logger.Error("list chat sessions failed", zap.Error(err))
		return []domain.SessionSummary{}
	}

	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		msgs, err := c.log.Load(ctx, s.ID)
		if err != nil {
			c.logger.Error("load chat transcript failed", zap.Error(err), zap.String("session_id", s.ID))
			return []domain.SessionSummary{}
		}
		out = append(out, summarize(s, msgs))
	}
	return out
}

func (c *AdminConsole) LoadMessages(ctx context.Context, sessionID string) []domain.ChatMessage {
	if c == nil || c.log == nil {
		return []domain.ChatMessage{}
	}
	msgs, err := c.log.Load(ctx, sessionID)
	if err != nil {
		c.logger.Error("load chat transcript failed", zap.Error(err), zap.String("session_id", sessionID))
		return []domain.ChatMessage{}
	}
	return msgs
}

func summarize(s domain.ChatSession, msgs []domain.ChatMessage) domain.SessionSummary {
	summary := domain.SessionSummary{
		ChatSession:  s,
		MessageCount: len(msgs),
		LastMessage:  NoMessagesPlaceholder,
	}
	if n := len(msgs); n > 0 {
		summary.LastMessage = msgs[n-1].Body
	}
	return summary
}

// NormalizeStatusFilter devuelve all para valores vacios o desconocidos.
func NormalizeStatusFilter(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case StatusFilterActive, StatusFilterClosed:
		return s
	}
	return StatusFilterAll
}

// FilterSessions aplica el filtro de estado y la busqueda sin distinguir mayusculas sobre
// nombre, email e id de sesion.
func FilterSessions(list []domain.SessionSummary, f SessionFilter) []domain.SessionSummary {
	status := NormalizeStatusFilter(f.Status)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	return lo.Filter(list, func(s domain.SessionSummary, _ int) bool {
		if status != StatusFilterAll && string(s.Status) != status {
			return false
		}
		if query == "" {
			return true
		}
		return lo.ContainsBy([]string{s.VisitorName, s.VisitorEmail, s.ID}, func(field string) bool {
			return strings.Contains(strings.ToLower(field), query)
		})
	})
}
