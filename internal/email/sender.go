package email

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"agency-chat/internal/domain"
)

// Sender avisa por correo al equipo de la agencia.
type Sender interface {
	SendNewSessionNotice(ctx context.Context, recipients []string, session domain.ChatSession) error
}

// ParseRecipients convierte "ops@a.com, Sales@a.com" en direcciones normalizadas, sin vacios ni repetidas.
func ParseRecipients(raw string) []string {
	addrs := lo.Map(strings.Split(raw, ","), func(addr string, _ int) string {
		return strings.ToLower(strings.TrimSpace(addr))
	})
	return lo.Uniq(lo.Compact(addrs))
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendNewSessionNotice(_ context.Context, _ []string, _ domain.ChatSession) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
