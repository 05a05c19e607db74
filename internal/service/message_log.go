package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/repository"
)

var (
	ErrMessageLogNotConfigured = errors.New("message log not configured")
	ErrMessageInvalidInput     = errors.New("message invalid input")
)

// sessionToucher actualiza updated_at de la sesion duena del mensaje.
type sessionToucher interface {
	Touch(ctx context.Context, id string, at time.Time) error
}

const maxTrackedSessions = 10000

// MessageLog mantiene el transcript ordenado de cada sesion. Los created_at que asigna son
// estrictamente crecientes por sesion, asi un append nunca queda antes de un mensaje existente.
type MessageLog struct {
	logger    *zap.Logger
	repo      repository.ChatMessageRepository
	sessions  sessionToucher
	publisher Publisher
	now       func() time.Time

	mu     sync.Mutex
	lastAt map[string]time.Time
}

func NewMessageLog(logger *zap.Logger, repo repository.ChatMessageRepository, sessions sessionToucher, publisher Publisher) *MessageLog {
	return &MessageLog{
		logger:    logger,
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		now:       time.Now,
		lastAt:    make(map[string]time.Time),
	}
}

func (l *MessageLog) Append(ctx context.Context, sessionID, body string, sender domain.Sender, metadata map[string]any) (domain.ChatMessage, error) {
	if l == nil || l.repo == nil {
		return domain.ChatMessage{}, ErrMessageLogNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	body = strings.TrimSpace(body)
	if sessionID == "" || body == "" || !sender.Valid() {
		return domain.ChatMessage{}, ErrMessageInvalidInput
	}

	createdAt, err := l.nextTimestamp(ctx, sessionID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Body:      body,
		Sender:    sender,
		CreatedAt: createdAt,
		Metadata:  metadata,
	}
	if err := l.repo.Create(ctx, msg); err != nil {
		return domain.ChatMessage{}, err
	}

	if l.sessions != nil {
		if err := l.sessions.Touch(ctx, sessionID, createdAt); err != nil {
			l.logger.Warn("touch chat session failed", zap.Error(err), zap.String("session_id", sessionID))
		}
	}
	if l.publisher != nil {
		l.publisher.Publish(msg)
	}
	return msg, nil
}

// Load devuelve el transcript completo en orden; un id vacio devuelve lista vacia.
func (l *MessageLog) Load(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if l == nil || l.repo == nil {
		return nil, ErrMessageLogNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := l.repo.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// LoadSince devuelve solo los mensajes posteriores a after. Con after cero equivale a Load.
func (l *MessageLog) LoadSince(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error) {
	if after.IsZero() {
		return l.Load(ctx, sessionID)
	}
	if l == nil || l.repo == nil {
		return nil, ErrMessageLogNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := l.repo.ListSince(ctx, sessionID, after.UTC())
	if err != nil {
		return nil, err
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

func (l *MessageLog) nextTimestamp(ctx context.Context, sessionID string) (time.Time, error) {
	l.mu.Lock()
	last, cached := l.lastAt[sessionID]
	l.mu.Unlock()

	if !cached {
		tail, err := l.repo.Last(ctx, sessionID)
		switch {
		case err == nil:
			last = tail.CreatedAt
		case errors.Is(err, repository.ErrNotFound):
		default:
			return time.Time{}, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.lastAt[sessionID]; ok && current.After(last) {
		last = current
	}
	// Postgres guarda microsegundos; truncar evita que el valor leido difiera del escrito.
	at := l.now().UTC().Truncate(time.Microsecond)
	if !at.After(last) {
		at = last.Add(time.Microsecond)
	}
	if len(l.lastAt) >= maxTrackedSessions {
		clear(l.lastAt)
	}
	l.lastAt[sessionID] = at
	return at, nil
}
