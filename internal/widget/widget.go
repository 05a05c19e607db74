// Package widget modela el chat del visitante como una maquina de estados independiente de la
// presentacion. El renderer (terminal, navegador) lee View y drena Notices.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/domain"
)

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Delivery es el estado de entrega de una entrada del transcript local.
type Delivery string

const (
	DeliverySent    Delivery = "sent"
	DeliveryPending Delivery = "pending"
	DeliveryFailed  Delivery = "failed"
)

const (
	NoticeStartFailed = "Could not start chat. Please try again."
	NoticeSendFailed  = "Message not sent. You can retry."
	NoticePollFailed  = "Connection lost. Trying to reconnect..."

	maxNotices = 8
)

var (
	ErrNotConnected   = errors.New("chat widget not connected")
	ErrUnknownMessage = errors.New("chat widget message not retryable")
)

// Backend es lo que el widget necesita del servidor. El almacenamiento del id de sesion
// queda del lado del backend.
type Backend interface {
	EnsureSession(ctx context.Context) (domain.SessionState, error)
	Send(ctx context.Context, sessionID, body string) (domain.ChatMessage, error)
	Messages(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error)
}

// Entry es un mensaje tal como lo ve el visitante. Los ecos locales llevan id temp-<n>
// hasta que el servidor confirma.
type Entry struct {
	Message  domain.ChatMessage
	Delivery Delivery
}

// View es una copia del estado para renderizar sin tomar el lock.
type View struct {
	State     State
	Minimized bool
	Typing    bool
	SessionID string
	Entries   []Entry
}

type Widget struct {
	logger  *zap.Logger
	backend Backend
	now     func() time.Time

	mu        sync.Mutex
	state     State
	minimized bool
	typing    bool
	ready     bool
	session   domain.ChatSession
	entries   []Entry
	tempSeq   int
	notices   []string
}

func New(logger *zap.Logger, backend Backend) *Widget {
	return &Widget{
		logger:  logger,
		backend: backend,
		now:     time.Now,
		state:   StateClosed,
	}
}

// Open muestra el chat. Solo la primera apertura exitosa consulta al backend; si falla,
// la siguiente llamada reintenta.
func (w *Widget) Open(ctx context.Context) error {
	w.mu.Lock()
	w.minimized = false
	if w.ready {
		w.state = StateConnected
		w.mu.Unlock()
		return nil
	}
	if w.state == StateConnecting {
		w.mu.Unlock()
		return nil
	}
	w.state = StateConnecting
	w.mu.Unlock()

	st, err := w.backend.EnsureSession(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warn("chat session start failed", zap.Error(err))
		w.state = StateDisconnected
		w.pushNotice(NoticeStartFailed)
		return err
	}
	w.session = st.Session
	w.entries = w.entries[:0]
	for _, m := range st.Messages {
		w.entries = append(w.entries, Entry{Message: m, Delivery: DeliverySent})
	}
	w.sortEntries()
	w.ready = true
	w.state = StateConnected
	return nil
}

func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateClosed
	w.minimized = false
}

func (w *Widget) Minimize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateClosed {
		w.minimized = true
	}
}

func (w *Widget) Maximize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = false
}

// Submit agrega un eco pendiente y lo envia. El texto en blanco se ignora.
func (w *Widget) Submit(ctx context.Context, text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil
	}

	w.mu.Lock()
	if !w.ready {
		w.mu.Unlock()
		return ErrNotConnected
	}
	w.tempSeq++
	tempID := fmt.Sprintf("temp-%d", w.tempSeq)
	w.entries = append(w.entries, Entry{
		Message: domain.ChatMessage{
			ID:        tempID,
			SessionID: w.session.ID,
			Body:      body,
			Sender:    domain.SenderUser,
			CreatedAt: w.now().UTC(),
		},
		Delivery: DeliveryPending,
	})
	w.mu.Unlock()

	return w.deliver(ctx, tempID, body)
}

// Retry reenvia un eco marcado como failed.
func (w *Widget) Retry(ctx context.Context, tempID string) error {
	w.mu.Lock()
	idx := w.indexOf(tempID)
	if idx < 0 || w.entries[idx].Delivery != DeliveryFailed {
		w.mu.Unlock()
		return ErrUnknownMessage
	}
	w.entries[idx].Delivery = DeliveryPending
	body := w.entries[idx].Message.Body
	w.mu.Unlock()

	return w.deliver(ctx, tempID, body)
}

func (w *Widget) deliver(ctx context.Context, tempID, body string) error {
	w.mu.Lock()
	w.typing = true
	sessionID := w.session.ID
	w.mu.Unlock()

	stored, err := w.backend.Send(ctx, sessionID, body)

	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.indexOf(tempID)
	if err != nil {
		w.logger.Warn("chat message send failed", zap.Error(err), zap.String("session_id", sessionID))
		w.typing = false
		if idx >= 0 {
			w.entries[idx].Delivery = DeliveryFailed
		}
		w.pushNotice(NoticeSendFailed)
		return err
	}
	if idx < 0 {
		return nil
	}
	// Un poll concurrente pudo haber traido ya el mensaje confirmado.
	if w.indexOf(stored.ID) >= 0 {
		w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
		return nil
	}
	w.entries[idx] = Entry{Message: stored, Delivery: DeliverySent}
	w.sortEntries()
	return nil
}

// Poll trae los mensajes posteriores al ultimo confirmado y los mezcla por id. Devuelve
// solo los nuevos.
func (w *Widget) Poll(ctx context.Context) ([]domain.ChatMessage, error) {
	w.mu.Lock()
	if !w.ready {
		w.mu.Unlock()
		return nil, ErrNotConnected
	}
	sessionID := w.session.ID
	after := w.newestConfirmed()
	w.mu.Unlock()

	msgs, err := w.backend.Messages(ctx, sessionID, after)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if w.state == StateConnected {
			w.state = StateDisconnected
			w.pushNotice(NoticePollFailed)
		}
		return nil, err
	}
	if w.state == StateDisconnected {
		w.state = StateConnected
	}

	var added []domain.ChatMessage
	for _, m := range msgs {
		if w.indexOf(m.ID) >= 0 {
			continue
		}
		w.entries = append(w.entries, Entry{Message: m, Delivery: DeliverySent})
		added = append(added, m)
		if m.Sender == domain.SenderAI || m.Sender == domain.SenderAdmin {
			w.typing = false
		}
	}
	if len(added) > 0 {
		w.sortEntries()
	}
	return added, nil
}

// ScrollAnchor es el id del mensaje mas nuevo renderizado, o vacio.
func (w *Widget) ScrollAnchor() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.entries) == 0 {
		return ""
	}
	return w.entries[len(w.entries)-1].Message.ID
}

// Notices drena la cola de avisos pendientes.
func (w *Widget) Notices() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notices
	w.notices = nil
	return out
}

func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	entries := make([]Entry, len(w.entries))
	copy(entries, w.entries)
	return View{
		State:     w.state,
		Minimized: w.minimized,
		Typing:    w.typing,
		SessionID: w.session.ID,
		Entries:   entries,
	}
}

func (w *Widget) pushNotice(n string) {
	if len(w.notices) >= maxNotices {
		w.notices = w.notices[1:]
	}
	w.notices = append(w.notices, n)
}

func (w *Widget) indexOf(id string) int {
	for i := range w.entries {
		if w.entries[i].Message.ID == id {
			return i
		}
	}
	return -1
}

func (w *Widget) newestConfirmed() time.Time {
	var newest time.Time
	for _, e := range w.entries {
		if e.Delivery == DeliverySent && e.Message.CreatedAt.After(newest) {
			newest = e.Message.CreatedAt
		}
	}
	return newest
}

// sortEntries deja los confirmados en orden de transcript y los ecos sin confirmar al final
// en el orden en que se escribieron.
func (w *Widget) sortEntries() {
	sort.SliceStable(w.entries, func(i, j int) bool {
		a, b := w.entries[i], w.entries[j]
		aSent, bSent := a.Delivery == DeliverySent, b.Delivery == DeliverySent
		switch {
		case aSent && bSent:
			return domain.MessageBefore(a.Message, b.Message)
		case aSent != bSent:
			return aSent
		}
		return false
	})
}
