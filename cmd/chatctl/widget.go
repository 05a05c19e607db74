package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"agency-chat/internal/chatclient"
	"agency-chat/internal/clientstore"
	"agency-chat/internal/console"
	"agency-chat/internal/domain"
	"agency-chat/internal/widget"
)

const widgetHelp = `Type a message and press enter. Commands:
  /retry <temp-id>   resend a failed message
  /min, /max         minimize or restore the chat
  /close, /open      hide or show the chat
  /quit              exit`

func newWidgetCmd(root *rootOptions) *cobra.Command {
	var (
		statePath string
		name      string
		email     string
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Chat as a website visitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--poll must be positive")
			}
			storage := clientstore.NewFile(statePath)
			client := chatclient.New(root.apiURL, storage, domain.VisitorInfo{Name: name, Email: email}, root.logger())
			w := widget.New(root.logger(), client)
			return runWidget(cmd.Context(), w, cmd.InOrStdin(), cmd.OutOrStdout(), interval)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", defaultStatePath(), "File that keeps the chat session id")
	cmd.Flags().StringVar(&name, "name", "", "Visitor name")
	cmd.Flags().StringVar(&email, "email", "", "Visitor email")
	cmd.Flags().DurationVar(&interval, "poll", 2*time.Second, "Interval between message polls")
	return cmd
}

// terminal serializa la salida del loop de input y la del poll.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *terminal) redraw(w *widget.Widget) {
	t.render(w.View(), w.Notices())
}

func (t *terminal) render(v widget.View, notices []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	console.RenderWidget(t.out, v, notices)
}

func (t *terminal) messages(w *widget.Widget, msgs []domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := w.View()
	if v.Minimized || v.State == widget.StateClosed {
		return
	}
	console.RenderMessages(t.out, msgs)
	if v.Typing {
		fmt.Fprintln(t.out, "Assistant is typing...")
	}
}

func (t *terminal) println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

func runWidget(ctx context.Context, w *widget.Widget, in io.Reader, out io.Writer, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	term := &terminal{out: out}

	_ = w.Open(ctx)
	term.redraw(w)
	term.println(widgetHelp)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pollLoop(ctx, w, term, interval)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if quit := handleLine(ctx, w, term, line); quit {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func handleLine(ctx context.Context, w *widget.Widget, term *terminal, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/min":
		w.Minimize()
	case "/max":
		w.Maximize()
	case "/close":
		w.Close()
	case "/open":
		_ = w.Open(ctx)
	case "/retry":
		if err := w.Retry(ctx, strings.TrimSpace(arg)); errors.Is(err, widget.ErrUnknownMessage) {
			term.println("Nothing to retry with id", arg)
			return false
		}
	case "/help":
		term.println(widgetHelp)
		return false
	default:
		if err := w.Submit(ctx, line); errors.Is(err, widget.ErrNotConnected) {
			if w.Open(ctx) == nil {
				_ = w.Submit(ctx, line)
			}
		}
	}
	term.redraw(w)
	return false
}

func pollLoop(ctx context.Context, w *widget.Widget, term *terminal, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			added, err := w.Poll(ctx)
			if err != nil {
				if notices := w.Notices(); len(notices) > 0 {
					term.render(w.View(), notices)
				}
				continue
			}
			if len(added) > 0 {
				term.messages(w, added)
			}
		}
	}
}
