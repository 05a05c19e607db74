package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/clientstore"
	"agency-chat/internal/domain"
	"agency-chat/internal/repository"
)

// SeedMessage abre el transcript de toda sesion nueva, firmado por el visitante.
const SeedMessage = "Hello! I'm interested in your services."

var (
	ErrSessionManagerNotConfigured = errors.New("session manager not configured")
	ErrSessionInit                 = errors.New("chat session initialization failed")
	ErrSessionNotFound             = errors.New("chat session not found")
)

// SessionNotifier recibe aviso de cada sesion creada. Los errores solo se registran.
type SessionNotifier interface {
	NotifyNewSession(ctx context.Context, session domain.ChatSession) error
}

// SessionManager garantiza que el visitante tenga exactamente una sesion activa,
// reutilizando la guardada en su almacenamiento mientras siga activa.
type SessionManager struct {
	logger   *zap.Logger
	sessions repository.ChatSessionRepository
	log      *MessageLog
	notifier SessionNotifier
	now      func() time.Time
	newID    func() string
}

func NewSessionManager(logger *zap.Logger, sessions repository.ChatSessionRepository, log *MessageLog, notifier SessionNotifier) *SessionManager {
	return &SessionManager{
		logger:   logger,
		sessions: sessions,
		log:      log,
		notifier: notifier,
		now:      time.Now,
		newID:    NewVisitorID,
	}
}

func (m *SessionManager) EnsureSession(ctx context.Context, storage clientstore.Store, visitor domain.VisitorInfo) (domain.SessionState, error) {
	if m == nil || m.sessions == nil || m.log == nil || storage == nil {
		return domain.SessionState{}, ErrSessionManagerNotConfigured
	}

	storedID, ok, err := storage.Get(ctx, clientstore.SessionKey)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("%w: read stored id: %v", ErrSessionInit, err)
	}
	storedID = strings.TrimSpace(storedID)

	if ok && storedID != "" {
		state, resumed, err := m.resume(ctx, storedID)
		if err != nil {
			return domain.SessionState{}, err
		}
		if resumed {
			return state, nil
		}
		m.logger.Info("discarding stale chat session id", zap.String("session_id", storedID))
		if err := storage.Remove(ctx, clientstore.SessionKey); err != nil {
			return domain.SessionState{}, fmt.Errorf("%w: clear stored id: %v", ErrSessionInit, err)
		}
	}
	return m.create(ctx, storage, visitor)
}

func (m *SessionManager) resume(ctx context.Context, id string) (domain.SessionState, bool, error) {
	session, err := m.sessions.GetActive(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("%w: lookup session: %v", ErrSessionInit, err)
	}

	msgs, err := m.log.Load(ctx, session.ID)
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("%w: load transcript: %v", ErrSessionInit, err)
	}
	return domain.SessionState{Session: session, Messages: msgs}, true, nil
}

// create inserta la sesion y el mensaje semilla como escrituras separadas: si la semilla falla
// la sesion queda activa y vacia.
func (m *SessionManager) create(ctx context.Context, storage clientstore.Store, visitor domain.VisitorInfo) (domain.SessionState, error) {
	now := m.now().UTC().Truncate(time.Microsecond)
	session := domain.ChatSession{
		ID:           m.newID(),
		VisitorName:  strings.TrimSpace(visitor.Name),
		VisitorEmail: normalizeEmail(visitor.Email),
		Status:       domain.SessionActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return domain.SessionState{}, fmt.Errorf("%w: create session: %v", ErrSessionInit, err)
	}
	if err := storage.Set(ctx, clientstore.SessionKey, session.ID); err != nil {
		return domain.SessionState{}, fmt.Errorf("%w: persist session id: %v", ErrSessionInit, err)
	}
	m.logger.Info("chat session created", zap.String("session_id", session.ID))

	state := domain.SessionState{Session: session, Messages: []domain.ChatMessage{}, Created: true}
	seed, err := m.log.Append(ctx, session.ID, SeedMessage, domain.SenderUser, nil)
	if err != nil {
		m.logger.Warn("seed chat message failed", zap.Error(err), zap.String("session_id", session.ID))
	} else {
		state.Messages = append(state.Messages, seed)
		state.Session.UpdatedAt = seed.CreatedAt
	}

	m.notify(session)
	return state, nil
}

func (m *SessionManager) notify(session domain.ChatSession) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.notifier.NotifyNewSession(ctx, session); err != nil {
			m.logger.Warn("new session notification failed", zap.Error(err), zap.String("session_id", session.ID))
		}
	}()
}

func (m *SessionManager) Close(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, domain.SessionClosed)
}

func (m *SessionManager) Reopen(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, domain.SessionActive)
}

func (m *SessionManager) setStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	if m == nil || m.sessions == nil {
		return ErrSessionManagerNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionNotFound
	}
	err := m.sessions.UpdateStatus(ctx, id, status, m.now().UTC().Truncate(time.Microsecond))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// ExpireIdle cierra las sesiones activas sin actividad durante idle. Devuelve cuantas cerro.
func (m *SessionManager) ExpireIdle(ctx context.Context, idle time.Duration) (int, error) {
	if m == nil || m.sessions == nil {
		return 0, ErrSessionManagerNotConfigured
	}
	if idle <= 0 {
		return 0, nil
	}
	before := m.now().UTC().Add(-idle)
	stale, err := m.sessions.ListIdle(ctx, before)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, s := range stale {
		if err := m.setStatus(ctx, s.ID, domain.SessionClosed); err != nil {
			m.logger.Warn("expire idle session failed", zap.Error(err), zap.String("session_id", s.ID))
			continue
		}
		closed++
	}
	return closed, nil
}

const visitorIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewVisitorID genera "visitor_" seguido de 9 caracteres base36. No es criptografico.
func NewVisitorID() string {
	var b strings.Builder
	b.Grow(len("visitor_") + 9)
	b.WriteString("visitor_")
	for i := 0; i < 9; i++ {
		b.WriteByte(visitorIDAlphabet[rand.IntN(len(visitorIDAlphabet))])
	}
	return b.String()
}
