package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPClientComplete(t *testing.T) {
	t.Run("returns first choice", func(t *testing.T) {
		var got chatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
				t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hi there  "}}]}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL+"/", "key", "test-model", zap.NewNop())
		out, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hello"}})
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if out != "hi there" {
			t.Fatalf("expected trimmed content, got %q", out)
		}
		if got.Model != "test-model" || len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
			t.Fatalf("unexpected request body %+v", got)
		}
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		if _, err := NewHTTPClient(srv.URL, "key", "m", nil).Complete(context.Background(), nil); err == nil {
			t.Fatalf("expected error on 429")
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		if _, err := NewHTTPClient(srv.URL, "key", "m", nil).Complete(context.Background(), nil); err == nil {
			t.Fatalf("expected error on empty choices")
		}
	})

	t.Run("api error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
		}))
		defer srv.Close()
		if _, err := NewHTTPClient(srv.URL, "key", "m", nil).Complete(context.Background(), nil); err == nil {
			t.Fatalf("expected api error")
		}
	})
}
