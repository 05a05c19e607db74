package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/repository"
)

type failingListRepo struct {
	repository.ChatSessionRepository
}

func (failingListRepo) List(context.Context) ([]domain.ChatSession, error) {
	return nil, errors.New("db down")
}

func TestAdminConsole_ListSessionsSummaries(t *testing.T) {
	s := newChatStack(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"visitor_empty0000", "visitor_busy00000"} {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := s.sessions.Create(ctx, domain.ChatSession{ID: id, Status: domain.SessionActive, CreatedAt: at, UpdatedAt: at}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	s.log.now = func() time.Time { return base.Add(time.Hour) }
	for _, body := range []string{"first", "second", "latest"} {
		if _, err := s.log.Append(ctx, "visitor_busy00000", body, domain.SenderUser, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	console := NewAdminConsole(zap.NewNop(), s.sessions, s.log)
	list := console.ListSessions(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %+v", list)
	}
	byID := map[string]domain.SessionSummary{}
	for _, item := range list {
		byID[item.ID] = item
	}
	if got := byID["visitor_busy00000"]; got.MessageCount != 3 || got.LastMessage != "latest" {
		t.Fatalf("unexpected busy summary %+v", got)
	}
	if got := byID["visitor_empty0000"]; got.MessageCount != 0 || got.LastMessage != NoMessagesPlaceholder {
		t.Fatalf("unexpected empty summary %+v", got)
	}
	if list[0].ID != "visitor_busy00000" {
		t.Fatalf("expected most recently updated first, got %s", list[0].ID)
	}
}

func TestAdminConsole_FetchFailureYieldsEmptyList(t *testing.T) {
	s := newChatStack(t)
	console := NewAdminConsole(zap.NewNop(), failingListRepo{s.sessions}, s.log)

	list := console.ListSessions(context.Background())
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", list)
	}
	if msgs := console.LoadMessages(context.Background(), "visitor_missing00"); msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty transcript, got %v", msgs)
	}
}

func TestFilterSessions(t *testing.T) {
	list := []domain.SessionSummary{
		{ChatSession: domain.ChatSession{ID: "visitor_aaaaaaaaa", VisitorName: "Ana Lopez", VisitorEmail: "ana@example.com", Status: domain.SessionActive}},
		{ChatSession: domain.ChatSession{ID: "visitor_bbbbbbbbb", VisitorName: "Bruno", Status: domain.SessionClosed}},
		{ChatSession: domain.ChatSession{ID: "visitor_ccccccccc", VisitorEmail: "carla@EXAMPLE.com", Status: domain.SessionActive}},
	}

	cases := []struct {
		name   string
		filter SessionFilter
		want   []string
	}{
		{"no filter", SessionFilter{}, []string{"visitor_aaaaaaaaa", "visitor_bbbbbbbbb", "visitor_ccccccccc"}},
		{"status active", SessionFilter{Status: "active"}, []string{"visitor_aaaaaaaaa", "visitor_ccccccccc"}},
		{"status closed", SessionFilter{Status: " CLOSED "}, []string{"visitor_bbbbbbbbb"}},
		{"unknown status", SessionFilter{Status: "archived"}, []string{"visitor_aaaaaaaaa", "visitor_bbbbbbbbb", "visitor_ccccccccc"}},
		{"query by name", SessionFilter{Query: "ANA"}, []string{"visitor_aaaaaaaaa"}},
		{"query by email", SessionFilter{Query: "example.com"}, []string{"visitor_aaaaaaaaa", "visitor_ccccccccc"}},
		{"query by id", SessionFilter{Query: "bbbb"}, []string{"visitor_bbbbbbbbb"}},
		{"query and status", SessionFilter{Query: "example", Status: "closed"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterSessions(list, tc.filter)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got)
			}
			for i := range tc.want {
				if got[i].ID != tc.want[i] {
					t.Fatalf("expected %v, got %+v", tc.want, got)
				}
			}
		})
	}

	original := FilterSessions(list, SessionFilter{})
	if len(list) != 3 || len(original) != 3 {
		t.Fatalf("expected input to stay untouched")
	}
}
