package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/clientstore"
	"agency-chat/internal/domain"
	"agency-chat/internal/repository"
	"agency-chat/internal/store"
)

type chatStack struct {
	gw       *store.MemoryGateway
	sessions *repository.GatewayChatSessionRepository
	messages repository.ChatMessageRepository
	hub      *Hub
	log      *MessageLog
	manager  *SessionManager
}

func newChatStack(t *testing.T) *chatStack {
	t.Helper()
	gw := store.NewMemoryGateway(nil)
	s := &chatStack{
		gw:       gw,
		sessions: repository.NewGatewayChatSessionRepository(gw),
		messages: repository.NewGatewayChatMessageRepository(gw),
		hub:      NewHub(zap.NewNop()),
	}
	s.log = NewMessageLog(zap.NewNop(), s.messages, s.sessions, s.hub)
	s.manager = NewSessionManager(zap.NewNop(), s.sessions, s.log, nil)
	return s
}

func (s *chatStack) sessionCount(t *testing.T) int {
	t.Helper()
	list, err := s.sessions.List(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	return len(list)
}

type failingMessageRepo struct {
	repository.ChatMessageRepository
	createErr error
}

func (f *failingMessageRepo) Create(ctx context.Context, m domain.ChatMessage) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.ChatMessageRepository.Create(ctx, m)
}

type failingSessionRepo struct {
	repository.ChatSessionRepository
	getErr error
}

func (f *failingSessionRepo) GetActive(ctx context.Context, id string) (domain.ChatSession, error) {
	if f.getErr != nil {
		return domain.ChatSession{}, f.getErr
	}
	return f.ChatSessionRepository.GetActive(ctx, id)
}

type failingStorage struct {
	clientstore.Store
	getErr error
}

func (f failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, f.getErr
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []domain.ChatSession
	done chan struct{}
}

func (n *recordingNotifier) NotifyNewSession(_ context.Context, session domain.ChatSession) error {
	n.mu.Lock()
	n.got = append(n.got, session)
	n.mu.Unlock()
	close(n.done)
	return nil
}

func TestNewVisitorID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^visitor_[0-9a-z]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewVisitorID()
		if !pattern.MatchString(id) {
			t.Fatalf("unexpected id format %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 495 {
		t.Fatalf("expected ids to be effectively unique, got %d distinct of 500", len(seen))
	}
}

func TestSessionManager_CreatesSessionWithSeed(t *testing.T) {
	s := newChatStack(t)
	s.manager.newID = func() string { return "visitor_ab12cd34e" }
	storage := clientstore.NewMemory()

	state, err := s.manager.EnsureSession(context.Background(), storage, domain.VisitorInfo{Name: " Ana ", Email: " ANA@Example.com "})
	if err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	if !state.Created || state.Session.ID != "visitor_ab12cd34e" || state.Session.Status != domain.SessionActive {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Session.VisitorName != "Ana" || state.Session.VisitorEmail != "ana@example.com" {
		t.Fatalf("expected normalized visitor info, got %+v", state.Session)
	}
	if len(state.Messages) != 1 || state.Messages[0].Body != SeedMessage || state.Messages[0].Sender != domain.SenderUser {
		t.Fatalf("expected seed message, got %+v", state.Messages)
	}
	stored, ok, _ := storage.Get(context.Background(), clientstore.SessionKey)
	if !ok || stored != "visitor_ab12cd34e" {
		t.Fatalf("expected id persisted, got %q ok=%v", stored, ok)
	}
}

func TestSessionManager_ResumesActiveSession(t *testing.T) {
	s := newChatStack(t)
	storage := clientstore.NewMemory()
	ctx := context.Background()

	first, err := s.manager.EnsureSession(ctx, storage, domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := s.manager.EnsureSession(ctx, storage, domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	if second.Created || second.Session.ID != first.Session.ID {
		t.Fatalf("expected resumed session %s, got %+v", first.Session.ID, second)
	}
	if s.sessionCount(t) != 1 {
		t.Fatalf("expected no new session record, got %d", s.sessionCount(t))
	}
	if len(second.Messages) != 1 || second.Messages[0].Body != SeedMessage {
		t.Fatalf("expected history loaded on resume, got %+v", second.Messages)
	}
}

func TestSessionManager_ReplacesInactiveOrUnknownSession(t *testing.T) {
	cases := map[string]func(t *testing.T, s *chatStack, storage clientstore.Store) string{
		"closed session": func(t *testing.T, s *chatStack, storage clientstore.Store) string {
			state, err := s.manager.EnsureSession(context.Background(), storage, domain.VisitorInfo{})
			if err != nil {
				t.Fatalf("ensure: %v", err)
			}
			if err := s.manager.Close(context.Background(), state.Session.ID); err != nil {
				t.Fatalf("close: %v", err)
			}
			return state.Session.ID
		},
		"unknown id": func(t *testing.T, s *chatStack, storage clientstore.Store) string {
			_ = storage.Set(context.Background(), clientstore.SessionKey, "visitor_gone00000")
			return "visitor_gone00000"
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			s := newChatStack(t)
			storage := clientstore.NewMemory()
			oldID := setup(t, s, storage)
			before := s.sessionCount(t)

			state, err := s.manager.EnsureSession(context.Background(), storage, domain.VisitorInfo{})
			if err != nil {
				t.Fatalf("ensure: %v", err)
			}
			if !state.Created || state.Session.ID == oldID {
				t.Fatalf("expected a new session, got %+v", state)
			}
			if got := s.sessionCount(t); got != before+1 {
				t.Fatalf("expected exactly one new session, before=%d after=%d", before, got)
			}
			stored, _, _ := storage.Get(context.Background(), clientstore.SessionKey)
			if stored != state.Session.ID {
				t.Fatalf("expected new id persisted, got %q", stored)
			}
		})
	}
}

func TestSessionManager_SeedFailureLeavesEmptyActiveSession(t *testing.T) {
	s := newChatStack(t)
	failing := &failingMessageRepo{ChatMessageRepository: s.messages, createErr: errors.New("insert failed")}
	s.log = NewMessageLog(zap.NewNop(), failing, s.sessions, nil)
	s.manager = NewSessionManager(zap.NewNop(), s.sessions, s.log, nil)

	state, err := s.manager.EnsureSession(context.Background(), clientstore.NewMemory(), domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("expected seed failure to be non-fatal, got %v", err)
	}
	if !state.Created || len(state.Messages) != 0 {
		t.Fatalf("expected created session with empty transcript, got %+v", state)
	}
	got, err := s.sessions.GetActive(context.Background(), state.Session.ID)
	if err != nil || got.Status != domain.SessionActive {
		t.Fatalf("expected session to remain active, got %+v err=%v", got, err)
	}
	msgs, _ := s.messages.ListBySessionID(context.Background(), state.Session.ID)
	if len(msgs) != 0 {
		t.Fatalf("expected no stored messages, got %d", len(msgs))
	}
}

func TestSessionManager_StoreFailuresSurfaceAsInitError(t *testing.T) {
	t.Run("lookup error", func(t *testing.T) {
		s := newChatStack(t)
		repo := &failingSessionRepo{ChatSessionRepository: s.sessions, getErr: errors.New("connection refused")}
		mgr := NewSessionManager(zap.NewNop(), repo, s.log, nil)
		storage := clientstore.NewMemory()
		_ = storage.Set(context.Background(), clientstore.SessionKey, "visitor_ab12cd34e")

		_, err := mgr.EnsureSession(context.Background(), storage, domain.VisitorInfo{})
		if !errors.Is(err, ErrSessionInit) {
			t.Fatalf("expected ErrSessionInit, got %v", err)
		}
		if v, ok, _ := storage.Get(context.Background(), clientstore.SessionKey); !ok || v != "visitor_ab12cd34e" {
			t.Fatalf("expected stored id kept on transient error")
		}
	})

	t.Run("storage error", func(t *testing.T) {
		s := newChatStack(t)
		_, err := s.manager.EnsureSession(context.Background(), failingStorage{getErr: errors.New("disk")}, domain.VisitorInfo{})
		if !errors.Is(err, ErrSessionInit) {
			t.Fatalf("expected ErrSessionInit, got %v", err)
		}
	})

	t.Run("nil manager", func(t *testing.T) {
		var mgr *SessionManager
		if _, err := mgr.EnsureSession(context.Background(), clientstore.NewMemory(), domain.VisitorInfo{}); !errors.Is(err, ErrSessionManagerNotConfigured) {
			t.Fatalf("expected ErrSessionManagerNotConfigured, got %v", err)
		}
	})
}

func TestSessionManager_NotifiesNewSession(t *testing.T) {
	s := newChatStack(t)
	notifier := &recordingNotifier{done: make(chan struct{})}
	s.manager.notifier = notifier

	state, err := s.manager.EnsureSession(context.Background(), clientstore.NewMemory(), domain.VisitorInfo{Name: "Ana"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected notification")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.got) != 1 || notifier.got[0].ID != state.Session.ID {
		t.Fatalf("unexpected notifications %+v", notifier.got)
	}
}

func TestSessionManager_StatusAndIdleExpiry(t *testing.T) {
	s := newChatStack(t)
	ctx := context.Background()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.manager.now = func() time.Time { return clock }
	s.log.now = func() time.Time { return clock }

	old, _ := s.manager.EnsureSession(ctx, clientstore.NewMemory(), domain.VisitorInfo{})
	clock = clock.Add(2 * time.Hour)
	fresh, _ := s.manager.EnsureSession(ctx, clientstore.NewMemory(), domain.VisitorInfo{})

	closed, err := s.manager.ExpireIdle(ctx, time.Hour)
	if err != nil {
		t.Fatalf("expire idle: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 expired session, got %d", closed)
	}
	if _, err := s.sessions.GetActive(ctx, old.Session.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected old session closed, got %v", err)
	}
	if _, err := s.sessions.GetActive(ctx, fresh.Session.ID); err != nil {
		t.Fatalf("expected fresh session active, got %v", err)
	}

	if err := s.manager.Reopen(ctx, old.Session.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := s.sessions.GetActive(ctx, old.Session.ID); err != nil {
		t.Fatalf("expected reopened session active, got %v", err)
	}
	if err := s.manager.Close(ctx, "visitor_missing00"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if n, err := s.manager.ExpireIdle(ctx, 0); err != nil || n != 0 {
		t.Fatalf("expected disabled expiry to be a no-op, got %d %v", n, err)
	}
}
