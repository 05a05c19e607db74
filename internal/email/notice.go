package email

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"agency-chat/internal/domain"
)

// Notice es el contenido de un aviso antes de armar el mensaje SMTP.
type Notice struct {
	Subject string
	Body    string
	// ReplyTo permite contestarle al visitante directo desde el correo.
	ReplyTo string
}

// NewSessionNotice arma el aviso de un chat nuevo. Con consoleURL agrega el enlace a la
// sesion en la consola de operadores.
func NewSessionNotice(session domain.ChatSession, consoleURL string) Notice {
	visitor := strings.TrimSpace(session.VisitorName)
	if visitor == "" {
		visitor = "Anonymous visitor"
	}
	visitorEmail := strings.TrimSpace(session.VisitorEmail)

	var b strings.Builder
	fmt.Fprintf(&b, "%s opened the chat widget and is waiting for a reply.\n\n", visitor)
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	if visitorEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", visitorEmail)
	}
	fmt.Fprintf(&b, "Started: %s UTC\n", session.CreatedAt.UTC().Format(time.RFC3339))
	if link := sessionLink(consoleURL, session.ID); link != "" {
		fmt.Fprintf(&b, "\nOpen in console: %s\n", link)
	}

	return Notice{
		Subject: fmt.Sprintf("New chat: %s", visitor),
		Body:    b.String(),
		ReplyTo: visitorEmail,
	}
}

func sessionLink(consoleURL, sessionID string) string {
	base := strings.TrimRight(strings.TrimSpace(consoleURL), "/")
	if base == "" || sessionID == "" {
		return ""
	}
	return base + "/sessions/" + url.PathEscape(sessionID)
}
