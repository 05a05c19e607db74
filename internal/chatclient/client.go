// Package chatclient habla con la API HTTP del chat. Implementa widget.Backend para el
// visitante y expone las lecturas de la consola para el operador.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/clientstore"
	"agency-chat/internal/domain"
)

// SessionHeader transporta el id guardado cuando el cliente no maneja cookies.
const SessionHeader = "X-Chat-Session"

var (
	ErrRateLimited  = errors.New("chat api rate limited")
	ErrUnauthorized = errors.New("chat api unauthorized")
)

// APIError es una respuesta de error de la API con su cuerpo {"error": ...}.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error: status=%d message=%s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	client  *http.Client
	storage clientstore.Store
	visitor domain.VisitorInfo
	logger  *zap.Logger
	token   string
}

// New construye el cliente. storage puede ser nil para un cliente solo de operador.
func New(baseURL string, storage clientstore.Store, visitor domain.VisitorInfo, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		storage: storage,
		visitor: visitor,
		logger:  logger,
	}
}

// SetToken fija el access token que acompana las llamadas de administracion.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) EnsureSession(ctx context.Context) (domain.SessionState, error) {
	if c.storage == nil {
		return domain.SessionState{}, errors.New("chat client has no session storage")
	}
	storedID, _, err := c.storage.Get(ctx, clientstore.SessionKey)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("read stored session: %w", err)
	}

	headers := map[string]string{}
	if storedID = strings.TrimSpace(storedID); storedID != "" {
		headers[SessionHeader] = storedID
	}
	var state domain.SessionState
	if err := c.do(ctx, http.MethodPost, "/chat/session", headers, c.visitor, &state); err != nil {
		return domain.SessionState{}, err
	}
	if state.Session.ID != storedID {
		if err := c.storage.Set(ctx, clientstore.SessionKey, state.Session.ID); err != nil {
			return domain.SessionState{}, fmt.Errorf("persist session id: %w", err)
		}
	}
	return state, nil
}

func (c *Client) Send(ctx context.Context, sessionID, body string) (domain.ChatMessage, error) {
	var resp struct {
		Message domain.ChatMessage `json:"message"`
	}
	req := struct {
		Message string `json:"message"`
	}{Message: body}
	if err := c.do(ctx, http.MethodPost, "/chat/session/"+url.PathEscape(sessionID)+"/messages", nil, req, &resp); err != nil {
		return domain.ChatMessage{}, err
	}
	return resp.Message, nil
}

func (c *Client) Messages(ctx context.Context, sessionID string, after time.Time) ([]domain.ChatMessage, error) {
	path := "/chat/session/" + url.PathEscape(sessionID) + "/messages"
	if !after.IsZero() {
		path += "?after=" + url.QueryEscape(after.UTC().Format(time.RFC3339Nano))
	}
	var resp struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Login autentica al operador y guarda el access token para las llamadas siguientes.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/admin/login", nil, req, &resp); err != nil {
		return err
	}
	c.SetToken(resp.AccessToken)
	return nil
}

func (c *Client) ListSessions(ctx context.Context, query, status string) ([]domain.SessionSummary, error) {
	params := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		params.Set("q", q)
	}
	if s := strings.TrimSpace(status); s != "" {
		params.Set("status", s)
	}
	path := "/admin/chat/sessions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp struct {
		Sessions []domain.SessionSummary `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, path, c.authHeader(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) Transcript(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var resp struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	path := "/admin/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, c.authHeader(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) authHeader() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug("chat api error status", zap.Int("status", resp.StatusCode), zap.String("path", path))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return ErrRateLimited
		case http.StatusUnauthorized:
			return ErrUnauthorized
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
