package service

import (
	"sync"

	"go.uber.org/zap"

	"agency-chat/internal/domain"
)

// Publisher recibe cada mensaje recien persistido.
type Publisher interface {
	Publish(msg domain.ChatMessage)
}

// Hub reparte mensajes nuevos a los suscriptores de cada sesion. Un suscriptor lento pierde
// eventos en lugar de bloquear al que escribe.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch   chan domain.ChatMessage
	once sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		buffer: 16,
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

// Subscribe devuelve el canal de la sesion y la funcion que lo cierra. Llamarla dos veces es seguro.
func (h *Hub) Subscribe(sessionID string) (<-chan domain.ChatMessage, func()) {
	sub := &subscription{ch: make(chan domain.ChatMessage, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Publish(msg domain.ChatMessage) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[msg.SessionID] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("dropping chat event for slow subscriber",
				zap.String("session_id", msg.SessionID),
				zap.String("message_id", msg.ID),
			)
		}
	}
}

// Subscribers cuenta los suscriptores activos de una sesion.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
