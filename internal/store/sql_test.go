package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

type recordingBackend struct {
	lastSQL string
	args    []any
	rows    [][]any
	err     error
}

func (b *recordingBackend) exec(_ context.Context, query string, args ...any) (int64, error) {
	b.lastSQL = query
	b.args = args
	if b.err != nil {
		return 0, b.err
	}
	return 1, nil
}

func (b *recordingBackend) query(_ context.Context, query string, _ int, args ...any) ([][]any, error) {
	b.lastSQL = query
	b.args = args
	if b.err != nil {
		return nil, b.err
	}
	return b.rows, nil
}

func TestSQLGatewayBuildSelect_Postgres(t *testing.T) {
	backend := &recordingBackend{}
	g := newSQLGateway(backend, postgresDialect, nil)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))

	_, err := g.Select(context.Background(), TableChatMessages, Query{
		Filters: []Filter{Eq("session_id", "s1"), Gt("created_at", since)},
		Order:   []Order{Asc("created_at"), Asc("id")},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := "SELECT id, session_id, message, sender, created_at, metadata FROM chat_messages WHERE session_id = $1 AND created_at > $2 ORDER BY created_at ASC, id ASC LIMIT $3"
	if backend.lastSQL != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", backend.lastSQL, want)
	}
	if len(backend.args) != 3 || backend.args[2] != 5 {
		t.Fatalf("unexpected args %+v", backend.args)
	}
	if ts, ok := backend.args[1].(time.Time); !ok || ts.Location() != time.UTC {
		t.Fatalf("expected utc time arg, got %+v", backend.args[1])
	}
}

func TestSQLGatewayBuildUpdate_SQLite(t *testing.T) {
	backend := &recordingBackend{}
	g := newSQLGateway(backend, sqliteDialect, nil)
	now := time.Unix(0, 42)

	_, err := g.Update(context.Background(), TableChatSessions,
		Row{"status": "closed", "updated_at": now}, Eq("session_id", "s1"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := "UPDATE chat_sessions SET status = ?, updated_at = ? WHERE session_id = ?"
	if backend.lastSQL != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", backend.lastSQL, want)
	}
	if backend.args[1] != int64(42) {
		t.Fatalf("expected unix nanos, got %#v", backend.args[1])
	}
}

func TestSQLGateway_RejectsBeforeReachingBackend(t *testing.T) {
	backend := &recordingBackend{}
	g := newSQLGateway(backend, postgresDialect, nil)
	ctx := context.Background()

	if _, err := g.Select(ctx, TableChatSessions, Query{Filters: []Filter{Eq("1=1; --", "x")}}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if _, err := g.Delete(ctx, TableChatSessions); !errors.Is(err, ErrMissingFilter) {
		t.Fatalf("expected ErrMissingFilter, got %v", err)
	}
	if _, err := g.Select(ctx, TableChatSessions, Query{Filters: []Filter{{Column: "status", Op: "LIKE", Value: "%"}}}); err == nil {
		t.Fatalf("expected unsupported operator error")
	}
	if backend.lastSQL != "" {
		t.Fatalf("expected no sql to reach backend, got %s", backend.lastSQL)
	}
}

func TestSQLGatewaySelect_DecodesRows(t *testing.T) {
	ts := time.Date(2024, 3, 3, 3, 3, 3, 0, time.UTC)
	backend := &recordingBackend{rows: [][]any{
		{[]byte("m1"), "s1", "hola", "user", ts.UnixNano(), `{"source":"canned"}`},
	}}
	g := newSQLGateway(backend, sqliteDialect, nil)

	rows, err := g.Select(context.Background(), TableChatMessages, Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if rows[0].String("id") != "m1" {
		t.Fatalf("expected bytes decoded to string, got %#v", rows[0]["id"])
	}
	if !rows[0].Time("created_at").Equal(ts) {
		t.Fatalf("expected %v, got %v", ts, rows[0].Time("created_at"))
	}
	if rows[0].Map("metadata")["source"] != "canned" {
		t.Fatalf("expected decoded metadata, got %#v", rows[0]["metadata"])
	}
}

const testSQLiteDDL = `
CREATE TABLE chat_sessions (
	session_id TEXT PRIMARY KEY,
	visitor_name TEXT,
	visitor_email TEXT,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	message TEXT NOT NULL,
	sender TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	metadata TEXT
);`

func TestSQLiteGateway_RoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(testSQLiteDDL); err != nil {
		t.Fatalf("ddl: %v", err)
	}

	g := NewSQLiteGateway(db, nil)
	base := seedMessages(t, g)

	rows, err := g.Select(context.Background(), TableChatMessages, Query{
		Filters: []Filter{Eq("session_id", "s1"), Gt("created_at", base)},
		Order:   []Order{Asc("created_at"), Asc("id")},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 || rows[0].String("id") != "m0" || rows[1].String("id") != "m2" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if !rows[0].Time("created_at").Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected created_at %v", rows[0].Time("created_at"))
	}

	other, err := g.Select(context.Background(), TableChatMessages, Query{Filters: []Filter{Eq("id", "x1")}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if other[0].Map("metadata")["source"] != "canned" {
		t.Fatalf("expected metadata round trip, got %#v", other[0]["metadata"])
	}

	n, err := g.Delete(context.Background(), TableChatMessages, Eq("session_id", "s2"))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted, got %d err=%v", n, err)
	}
}
