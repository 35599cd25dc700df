package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/liao/pdf-chatbot/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	logBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Document Chatbot"))
	b.WriteString("\n")

	if m.screen == screenLogin {
		b.WriteString(subtleStyle.Render("Login"))
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(m.username.View() + "\n" + m.password.View()))
	} else {
		b.WriteString(subtleStyle.Render("User: " + m.sess.User + "  (ctrl+l log out, ctrl+c quit)"))
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(m.question.View()))
		b.WriteString("\n")
		b.WriteString(logBoxStyle.Render(m.viewport.View()))
	}
	b.WriteString("\n")

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	if m.isErr {
		b.WriteString(errorStyle.Render(status))
	} else {
		b.WriteString(statusStyle.Render(status))
	}
	return b.String()
}

// renderLog 问答记录，最新的在最上面
func renderLog(sess *session.Session, width int) string {
	if sess == nil {
		return ""
	}
	log := sess.Log()
	if len(log) == 0 {
		return subtleStyle.Render("No questions yet.")
	}

	body := lipgloss.NewStyle().Width(max(10, width-2))
	parts := make([]string, 0, len(log))
	for _, ex := range log {
		entry := queryStyle.Render("Q: "+ex.Query) + "\n" + body.Render("A: "+ex.Answer)
		if ex.Notice != "" {
			entry += "\n" + noticeStyle.Render(ex.Notice)
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "\n\n")
}
