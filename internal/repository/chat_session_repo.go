package repository

import (
	"context"
	"fmt"
	"time"

	"agency-chat/internal/domain"
	"agency-chat/internal/store"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session domain.ChatSession) error
	GetByID(ctx context.Context, id string) (domain.ChatSession, error)
	GetActive(ctx context.Context, id string) (domain.ChatSession, error)
	List(ctx context.Context) ([]domain.ChatSession, error)
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
	ListIdle(ctx context.Context, before time.Time) ([]domain.ChatSession, error)
}

type GatewayChatSessionRepository struct {
	gw store.Gateway
}

func NewGatewayChatSessionRepository(gw store.Gateway) *GatewayChatSessionRepository {
	return &GatewayChatSessionRepository{gw: gw}
}

func (r *GatewayChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) error {
	return r.gw.Insert(ctx, store.TableChatSessions, store.Row{
		"session_id":    session.ID,
		"visitor_name":  session.VisitorName,
		"visitor_email": session.VisitorEmail,
		"status":        string(session.Status),
		"created_at":    session.CreatedAt,
		"updated_at":    session.UpdatedAt,
	})
}

func (r *GatewayChatSessionRepository) GetByID(ctx context.Context, id string) (domain.ChatSession, error) {
	return r.first(ctx, store.Eq("session_id", id))
}

// GetActive busca la sesion solo si sigue activa; una sesion cerrada cuenta como inexistente.
func (r *GatewayChatSessionRepository) GetActive(ctx context.Context, id string) (domain.ChatSession, error) {
	return r.first(ctx, store.Eq("session_id", id), store.Eq("status", string(domain.SessionActive)))
}

func (r *GatewayChatSessionRepository) List(ctx context.Context) ([]domain.ChatSession, error) {
	rows, err := r.gw.Select(ctx, store.TableChatSessions, store.Query{
		Order: []store.Order{store.Desc("updated_at"), store.Asc("session_id")},
	})
	if err != nil {
		return nil, err
	}
	return sessionsFromRows(rows), nil
}

func (r *GatewayChatSessionRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, at time.Time) error {
	n, err := r.gw.Update(ctx, store.TableChatSessions,
		store.Row{"status": string(status), "updated_at": at},
		store.Eq("session_id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

func (r *GatewayChatSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.gw.Update(ctx, store.TableChatSessions,
		store.Row{"updated_at": at},
		store.Eq("session_id", id))
	return err
}

func (r *GatewayChatSessionRepository) ListIdle(ctx context.Context, before time.Time) ([]domain.ChatSession, error) {
	rows, err := r.gw.Select(ctx, store.TableChatSessions, store.Query{
		Filters: []store.Filter{
			store.Eq("status", string(domain.SessionActive)),
			store.Lt("updated_at", before),
		},
		Order: []store.Order{store.Asc("updated_at")},
	})
	if err != nil {
		return nil, err
	}
	return sessionsFromRows(rows), nil
}

func (r *GatewayChatSessionRepository) first(ctx context.Context, filters ...store.Filter) (domain.ChatSession, error) {
	rows, err := r.gw.Select(ctx, store.TableChatSessions, store.Query{Filters: filters, Limit: 1})
	if err != nil {
		return domain.ChatSession{}, err
	}
	if len(rows) == 0 {
		return domain.ChatSession{}, ErrNotFound
	}
	return sessionFromRow(rows[0]), nil
}

func sessionFromRow(row store.Row) domain.ChatSession {
	return domain.ChatSession{
		ID:           row.String("session_id"),
		VisitorName:  row.String("visitor_name"),
		VisitorEmail: row.String("visitor_email"),
		Status:       domain.SessionStatus(row.String("status")),
		CreatedAt:    row.Time("created_at"),
		UpdatedAt:    row.Time("updated_at"),
	}
}

func sessionsFromRows(rows []store.Row) []domain.ChatSession {
	sessions := make([]domain.ChatSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, sessionFromRow(row))
	}
	return sessions
}
