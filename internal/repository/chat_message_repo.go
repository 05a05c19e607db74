package repository

import (
	"context"
	"time"

	"agency-chat/internal/domain"
	"agency-chat/internal/store"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message domain.ChatMessage) error
	ListBySessionID(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	ListSince(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error)
	Last(ctx context.Context, sessionID string) (domain.ChatMessage, error)
}

type GatewayChatMessageRepository struct {
	gw store.Gateway
}

func NewGatewayChatMessageRepository(gw store.Gateway) *GatewayChatMessageRepository {
	return &GatewayChatMessageRepository{gw: gw}
}

var transcriptOrder = []store.Order{store.Asc("created_at"), store.Asc("id")}

func (r *GatewayChatMessageRepository) Create(ctx context.Context, message domain.ChatMessage) error {
	row := store.Row{
		"id":         message.ID,
		"session_id": message.SessionID,
		"message":    message.Body,
		"sender":     string(message.Sender),
		"created_at": message.CreatedAt,
	}
	if len(message.Metadata) > 0 {
		row["metadata"] = message.Metadata
	}
	return r.gw.Insert(ctx, store.TableChatMessages, row)
}

func (r *GatewayChatMessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := r.gw.Select(ctx, store.TableChatMessages, store.Query{
		Filters: []store.Filter{store.Eq("session_id", sessionID)},
		Order:   transcriptOrder,
	})
	if err != nil {
		return nil, err
	}
	return messagesFromRows(rows), nil
}

func (r *GatewayChatMessageRepository) ListSince(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error) {
	rows, err := r.gw.Select(ctx, store.TableChatMessages, store.Query{
		Filters: []store.Filter{store.Eq("session_id", sessionID), store.Gt("created_at", after)},
		Order:   transcriptOrder,
	})
	if err != nil {
		return nil, err
	}
	return messagesFromRows(rows), nil
}

// Last devuelve el mensaje mas reciente de la sesion segun el orden del transcript.
func (r *GatewayChatMessageRepository) Last(ctx context.Context, sessionID string) (domain.ChatMessage, error) {
	rows, err := r.gw.Select(ctx, store.TableChatMessages, store.Query{
		Filters: []store.Filter{store.Eq("session_id", sessionID)},
		Order:   []store.Order{store.Desc("created_at"), store.Desc("id")},
		Limit:   1,
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if len(rows) == 0 {
		return domain.ChatMessage{}, ErrNotFound
	}
	return messageFromRow(rows[0]), nil
}

func messageFromRow(row store.Row) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        row.String("id"),
		SessionID: row.String("session_id"),
		Body:      row.String("message"),
		Sender:    domain.Sender(row.String("sender")),
		CreatedAt: row.Time("created_at"),
		Metadata:  row.Map("metadata"),
	}
}

func messagesFromRows(rows []store.Row) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromRow(row))
	}
	return messages
}
