package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// Speaker labels shown above each entry
const (
	userLabel   = "Você"
	botLabel    = "Aiko"
	systemLabel = "Sistema"
	noClock     = "--:--"
)

var (
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	botStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	systemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	clockStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	provisionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Clock formats the entry timestamp as HH:MM in local time
func Clock(m entity.Message) string {
	t := m.Time()
	if t.IsZero() {
		return noClock
	}
	return t.Local().Format("15:04")
}

// RenderTimeline renders entries in order. Entries missing id, text or sender
// are skipped. width <= 0 disables wrapping.
func RenderTimeline(entries []entity.Message, width int) string {
	var b strings.Builder
	for _, m := range entries {
		if !m.IsValid() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderEntry(m, width))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderEntry renders one entry as a header line followed by the wrapped text
func RenderEntry(m entity.Message, width int) string {
	var label string
	switch m.Sender {
	case entity.SenderUser:
		label = userStyle.Render(userLabel)
	case entity.SenderBot:
		label = botStyle.Render(botLabel)
	default:
		label = systemStyle.Render(systemLabel)
	}

	header := label + " " + clockStyle.Render(Clock(m))
	if m.IsProvisional() {
		header += " " + provisionalStyle.Render("…")
	}

	text := m.Text
	if width > 0 {
		text = WrapText(text, width)
	}
	if m.Sender == entity.SenderSystem {
		text = systemStyle.Render(text)
	}
	return header + "\n" + text
}

// WrapText applies auto-wrapping to text, correctly handling wide character widths
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 10 {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = wrapLine(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

// wrapLine wraps a single line at display width
func wrapLine(line string, maxWidth int) string {
	if runewidth.StringWidth(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	var currentLine strings.Builder
	currentWidth := 0

	for _, r := range line {
		runeW := runewidth.RuneWidth(r)

		// If adding this character exceeds width, wrap first
		if currentWidth+runeW > maxWidth && currentWidth > 0 {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
			currentWidth = 0
		}

		currentLine.WriteRune(r)
		currentWidth += runeW
	}

	if currentLine.Len() > 0 {
		result.WriteString(currentLine.String())
	}
	return result.String()
}
