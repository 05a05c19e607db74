// Package console dibuja en terminal la vista del operador y del visitante.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"agency-chat/internal/domain"
	"agency-chat/internal/widget"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	visitorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			Padding(0, 2)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// Avatar devuelve la etiqueta y el estilo de cada remitente.
func Avatar(sender domain.Sender) (string, lipgloss.Style) {
	switch sender {
	case domain.SenderUser:
		return "Visitor", visitorStyle
	case domain.SenderAI:
		return "Assistant", assistantStyle
	case domain.SenderAdmin:
		return "Agent", agentStyle
	}
	return string(sender), mutedStyle
}

func RenderTranscript(w io.Writer, sessionID string, msgs []domain.ChatMessage) {
	fmt.Fprintln(w, headerStyle.Render("Session "+sessionID))
	if len(msgs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("(no messages)"))
		return
	}
	RenderMessages(w, msgs)
}

// RenderMessages imprime mensajes sueltos, por ejemplo los que trae un poll.
func RenderMessages(w io.Writer, msgs []domain.ChatMessage) {
	for _, m := range msgs {
		renderMessage(w, m, "")
	}
}

func renderMessage(w io.Writer, m domain.ChatMessage, suffix string) {
	label, style := Avatar(m.Sender)
	header := style.Render(label)
	if !m.CreatedAt.IsZero() {
		header += " " + mutedStyle.Render(m.CreatedAt.Local().Format(time.TimeOnly))
	}
	if suffix != "" {
		header += " " + suffix
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, bodyStyle.Render(m.Body))
}

// RenderSessions imprime la tabla de sesiones de la consola.
func RenderSessions(w io.Writer, list []domain.SessionSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No chat sessions found."))
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Session", "Visitor", "Status", "Messages", "Last Message", "Updated"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.AppendBulk(lo.Map(list, func(s domain.SessionSummary, _ int) []string {
		return []string{
			s.ID,
			visitorLabel(s.ChatSession),
			string(s.Status),
			strconv.Itoa(s.MessageCount),
			truncate(s.LastMessage, 48),
			s.UpdatedAt.Local().Format(time.DateTime),
		}
	}))
	table.Render()
}

// RenderWidget dibuja el estado del widget del visitante.
func RenderWidget(w io.Writer, v widget.View, notices []string) {
	status := fmt.Sprintf("[%s]", v.State)
	if v.Minimized {
		status += " (minimized)"
	}
	fmt.Fprintln(w, headerStyle.Render("Chat with us")+" "+mutedStyle.Render(status))
	for _, n := range notices {
		fmt.Fprintln(w, noticeStyle.Render("! "+n))
	}
	if v.Minimized || v.State == widget.StateClosed {
		return
	}
	for _, e := range v.Entries {
		suffix := ""
		switch e.Delivery {
		case widget.DeliveryPending:
			suffix = mutedStyle.Render("sending...")
		case widget.DeliveryFailed:
			suffix = noticeStyle.Render("failed, /retry " + e.Message.ID)
		}
		renderMessage(w, e.Message, suffix)
	}
	if v.Typing {
		fmt.Fprintln(w, mutedStyle.Render("Assistant is typing..."))
	}
}

func visitorLabel(s domain.ChatSession) string {
	switch {
	case s.VisitorName != "" && s.VisitorEmail != "":
		return s.VisitorName + " <" + s.VisitorEmail + ">"
	case s.VisitorName != "":
		return s.VisitorName
	case s.VisitorEmail != "":
		return s.VisitorEmail
	}
	return "Anonymous"
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
