package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/clientstore"
	"agency-chat/internal/domain"
	"agency-chat/internal/repository"
)

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrSessionNotActive         = errors.New("chat session not active")
)

// ReplyProducer programa la respuesta a un mensaje del visitante.
type ReplyProducer interface {
	Schedule(sessionID string)
}

// ChatService es la fachada que usa el widget: asegurar sesion, enviar y leer mensajes.
type ChatService struct {
	logger   *zap.Logger
	manager  *SessionManager
	sessions repository.ChatSessionRepository
	log      *MessageLog
	limiter  RateLimiter
	replies  ReplyProducer
}

func NewChatService(logger *zap.Logger, manager *SessionManager, sessions repository.ChatSessionRepository, log *MessageLog, limiter RateLimiter, replies ReplyProducer) *ChatService {
	if limiter == nil {
		limiter = unlimited{}
	}
	return &ChatService{
		logger:   logger,
		manager:  manager,
		sessions: sessions,
		log:      log,
		limiter:  limiter,
		replies:  replies,
	}
}

func (s *ChatService) EnsureSession(ctx context.Context, storage clientstore.Store, visitor domain.VisitorInfo) (domain.SessionState, error) {
	if s == nil || s.manager == nil {
		return domain.SessionState{}, ErrChatServiceNotConfigured
	}
	return s.manager.EnsureSession(ctx, storage, visitor)
}

// PostVisitorMessage persiste el mensaje del visitante y agenda la respuesta. La respuesta
// se agenda solo despues de que el append del visitante termino.
func (s *ChatService) PostVisitorMessage(ctx context.Context, sessionID, body string) (domain.ChatMessage, error) {
	if s == nil || s.log == nil || s.sessions == nil {
		return domain.ChatMessage{}, ErrChatServiceNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(body) == "" {
		return domain.ChatMessage{}, ErrMessageInvalidInput
	}

	if _, err := s.sessions.GetActive(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ChatMessage{}, ErrSessionNotActive
		}
		return domain.ChatMessage{}, err
	}
	if !s.limiter.Allow(sessionID) {
		return domain.ChatMessage{}, ErrRateLimited
	}

	msg, err := s.log.Append(ctx, sessionID, body, domain.SenderUser, nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if s.replies != nil {
		s.replies.Schedule(sessionID)
	}
	return msg, nil
}

func (s *ChatService) Messages(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error) {
	if s == nil || s.log == nil {
		return nil, ErrChatServiceNotConfigured
	}
	return s.log.LoadSince(ctx, sessionID, after)
}
