package service

import (
	"context"

	"agency-chat/internal/domain"
	"agency-chat/internal/email"
)

// EmailSessionNotifier avisa por correo al equipo cuando un visitante abre el chat.
type EmailSessionNotifier struct {
	sender     email.Sender
	recipients []string
}

// NewEmailSessionNotifier recibe la lista de destinatarios separada por comas. Devuelve nil
// si no queda ninguno, lo que desactiva los avisos.
func NewEmailSessionNotifier(sender email.Sender, to string) SessionNotifier {
	recipients := email.ParseRecipients(to)
	if sender == nil || len(recipients) == 0 {
		return nil
	}
	return &EmailSessionNotifier{sender: sender, recipients: recipients}
}

func (n *EmailSessionNotifier) NotifyNewSession(ctx context.Context, session domain.ChatSession) error {
	return n.sender.SendNewSessionNotice(ctx, n.recipients, session)
}
