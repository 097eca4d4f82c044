package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gmailsorter/internal/model"
	"gmailsorter/internal/sorter"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingBottom(1)
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func renderReport(rep model.Report) string {
	n := sorter.NoticeFor(rep)
	var b strings.Builder
	if rep.Err != nil {
		b.WriteString(errorStyle.Render(n.Title))
	} else {
		b.WriteString(headerStyle.Render(n.Title))
	}
	b.WriteString("\n")
	b.WriteString(n.Body)
	b.WriteString("\n")
	for _, it := range n.Items {
		b.WriteString("\n• ")
		b.WriteString(it.Title)
		b.WriteString("\n  ")
		b.WriteString(it.Message)
	}
	return b.String()
}

func reportFooter() string {
	return footerStyle.Render("esc: back  q: quit")
}
