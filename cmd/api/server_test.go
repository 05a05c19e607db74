package main

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	waited    bool
	late      bool
}

func (s *recordingScheduler) Schedule(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waited {
		s.late = true
	}
	s.scheduled = append(s.scheduled, sessionID)
}

func (s *recordingScheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waited = true
}

func TestServe_DrainsRequestsBeforeWaitingReplies(t *testing.T) {
	replies := &recordingScheduler{}
	entered := make(chan struct{})
	var finished atomic.Bool

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(300 * time.Millisecond)
		replies.Schedule("visitor_ab12cd34e")
		finished.Store(true)
		w.WriteHeader(http.StatusCreated)
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- serve(ctx, zap.NewNop(), server, ln, replies) }()

	statuses := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/chat/session/visitor_ab12cd34e/messages", "application/json", nil)
		if err != nil {
			statuses <- 0
			return
		}
		resp.Body.Close()
		statuses <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("request never reached the handler")
	}
	cancel()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}

	if !finished.Load() {
		t.Fatalf("serve returned while a request was still running")
	}
	replies.mu.Lock()
	defer replies.mu.Unlock()
	if !replies.waited || replies.late || len(replies.scheduled) != 1 {
		t.Fatalf("expected reply scheduled before Wait, got %+v", replies)
	}
	if code := <-statuses; code != http.StatusCreated {
		t.Fatalf("expected in-flight request to complete with 201, got %d", code)
	}
}
