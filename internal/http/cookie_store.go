package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agency-chat/internal/clientstore"
)

// SessionHeader permite a clientes sin cookies (CLI, apps) enviar el id guardado.
const SessionHeader = "X-Chat-Session"

const sessionCookieMaxAge = 60 * 60 * 24 * 30

// requestStore adapta cookie y cabecera del request al clientstore.Store del visitante.
// La cabecera tiene prioridad sobre la cookie.
type requestStore struct {
	c      *gin.Context
	secure bool
}

func newRequestStore(c *gin.Context, secure bool) clientstore.Store {
	return &requestStore{c: c, secure: secure}
}

func (s *requestStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == clientstore.SessionKey {
		if v := strings.TrimSpace(s.c.GetHeader(SessionHeader)); v != "" {
			return v, true, nil
		}
	}
	v, err := s.c.Cookie(key)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *requestStore) Set(_ context.Context, key, value string) error {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, value, sessionCookieMaxAge, "/", "", s.secure, true)
	if key == clientstore.SessionKey {
		s.c.Header(SessionHeader, value)
	}
	return nil
}

func (s *requestStore) Remove(_ context.Context, key string) error {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, "", -1, "/", "", s.secure, true)
	return nil
}
