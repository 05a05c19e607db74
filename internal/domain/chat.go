package domain

import (
	"sort"
	"strings"
	"time"
)

// Sender clasifica al autor de un mensaje del chat.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAI    Sender = "ai"
	SenderAdmin Sender = "admin"
)

// Valid indica si el remitente es uno de los tres conocidos.
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAI, SenderAdmin:
		return true
	}
	return false
}

// ParseSender normaliza texto libre a un Sender; devuelve false si no es valido.
func ParseSender(raw string) (Sender, bool) {
	s := Sender(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// SessionStatus es el estado del ciclo de vida de una sesion de chat.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

func (s SessionStatus) Valid() bool {
	return s == SessionActive || s == SessionClosed
}

// ChatSession es la conversacion de un visitante, identificada por un id generado en el cliente.
type ChatSession struct {
	ID           string        `json:"session_id"`
	VisitorName  string        `json:"visitor_name,omitempty"`
	VisitorEmail string        `json:"visitor_email,omitempty"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ChatMessage es inmutable una vez persistido.
type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Body      string         `json:"message"`
	Sender    Sender         `json:"sender"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionSummary agrega a la sesion los datos derivados que muestra la consola de administracion.
type SessionSummary struct {
	ChatSession
	MessageCount int    `json:"message_count"`
	LastMessage  string `json:"last_message"`
}

// VisitorInfo son los datos opcionales que el visitante puede aportar al abrir el chat.
type VisitorInfo struct {
	Name  string `json:"visitor_name,omitempty"`
	Email string `json:"visitor_email,omitempty"`
}

// SessionState es el resultado de asegurar una sesion: la sesion activa y su historial.
type SessionState struct {
	Session  ChatSession   `json:"session"`
	Messages []ChatMessage `json:"messages"`
	Created  bool          `json:"created"`
}

// MessageBefore define el orden total del transcript: created_at ascendente, empate por id.
func MessageBefore(a, b ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMessages ordena in-place segun MessageBefore.
func SortMessages(msgs []ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return MessageBefore(msgs[i], msgs[j])
	})
}
