package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

// UI configuration constants
const (
	defaultInputWidth     = 100
	defaultViewportWidth  = 100
	defaultViewportHeight = 30
	defaultWindowWidth    = 100
	defaultWindowHeight   = 40
	inputCharLimit        = 4000
	inputHeightReserved   = 2
	statusHeightReserved  = 4
	minContentHeight      = 10
	statusRefresh         = time.Second
	commandPrefix         = "/"
)

// Style definitions
var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// ChatProgram encapsulates the chat TUI program
type ChatProgram struct {
	session *chatsync.Session
}

// NewChatProgram creates a new chat program instance for a started session
func NewChatProgram(session *chatsync.Session) *ChatProgram {
	return &ChatProgram{session: session}
}

// Run starts the chat TUI program. It returns when the user quits or ctx is cancelled.
func (p *ChatProgram) Run(ctx context.Context) error {
	program := tea.NewProgram(initialModel(ctx, p.session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// inputAction is what the Enter key does with the typed text
type inputAction int

const (
	actionNone inputAction = iota
	actionSend
	actionCommand
	actionUnknownCommand
)

// parseInput routes typed text. "/bloquear" and "/desbloquear" go to the
// dispatcher; anything else not starting with "/" is a chat message.
func parseInput(raw string) (inputAction, string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return actionNone, ""
	}
	if !strings.HasPrefix(text, commandPrefix) {
		return actionSend, text
	}
	word := strings.TrimPrefix(text, commandPrefix)
	if chatsync.ParseCommand(word) == chatsync.CommandUnknown {
		return actionUnknownCommand, word
	}
	return actionCommand, word
}

// chatModel is the Bubble Tea model containing all chat interface state
type chatModel struct {
	// Dependencies
	ctx     context.Context
	session *chatsync.Session

	// UI components
	input       textinput.Model
	contentView viewport.Model
	spinner     spinner.Model

	// Local hint shown under the banner (unknown command etc.)
	hint string

	// Window dimensions
	width  int
	height int
}

// initialModel creates the initial chat model
func initialModel(ctx context.Context, session *chatsync.Session) chatModel {
	input := textinput.New()
	input.Placeholder = "Digite sua mensagem..."
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultInputWidth
	input.Prompt = ""

	contentViewport := viewport.New(defaultViewportWidth, defaultViewportHeight)
	contentViewport.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	m := chatModel{
		ctx:         ctx,
		session:     session,
		input:       input,
		contentView: contentViewport,
		spinner:     sp,
		width:       defaultWindowWidth,
		height:      defaultWindowHeight,
	}
	m.refreshContent()
	return m
}

// Message type definitions
type (
	timelineChangedMsg struct{}
	sessionStoppedMsg  struct{}
	actionDoneMsg      struct{ err error }
	statusTickMsg      time.Time
)

// Init initializes the model (Bubble Tea interface)
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.session),
		statusTick(),
	)
}

// waitForChange blocks until the timeline changes or the session stops
func waitForChange(s *chatsync.Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.Timeline().Changes():
			return timelineChangedMsg{}
		case <-s.Done():
			return sessionStoppedMsg{}
		}
	}
}

// statusTick refreshes the typing indicator and "last synced" line
func statusTick() tea.Cmd {
	return tea.Tick(statusRefresh, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Update processes messages and updates the model (Bubble Tea interface)
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		keyCmds, handled := m.handleKeyPress(msg)
		cmds = append(cmds, keyCmds...)
		if handled {
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)

	case timelineChangedMsg:
		m.refreshContent()
		cmds = append(cmds, waitForChange(m.session))

	case sessionStoppedMsg:
		return m, tea.Quit

	case actionDoneMsg:
		// errors are already reflected in the timeline and banner
		m.refreshContent()

	case statusTickMsg:
		cmds = append(cmds, statusTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input. handled keys are not forwarded to the input.
func (m *chatModel) handleKeyPress(msg tea.KeyMsg) (cmds []tea.Cmd, handled bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return []tea.Cmd{tea.Quit}, true

	case tea.KeyEnter:
		action, text := parseInput(m.input.Value())
		m.hint = ""
		switch action {
		case actionSend:
			m.input.Reset()
			cmds = append(cmds, m.send(text))
		case actionCommand:
			m.input.Reset()
			cmds = append(cmds, m.command(text))
		case actionUnknownCommand:
			m.hint = fmt.Sprintf("Comando desconhecido: /%s (use /bloquear ou /desbloquear)", text)
		}
		return cmds, true

	case tea.KeyCtrlL:
		m.session.ClearChat()
		m.refreshContent()
		return nil, true

	case tea.KeyCtrlB:
		return []tea.Cmd{m.command(chatsync.CommandBlock.String())}, true

	case tea.KeyCtrlU:
		return []tea.Cmd{m.command(chatsync.CommandUnblock.String())}, true

	case tea.KeyCtrlR:
		m.session.PollNow()
		return nil, true

	case tea.KeyUp:
		m.contentView.LineUp(1)
		return nil, true

	case tea.KeyDown:
		m.contentView.LineDown(1)
		return nil, true

	case tea.KeyPgUp:
		m.contentView.ViewUp()
		return nil, true

	case tea.KeyPgDown:
		m.contentView.ViewDown()
		return nil, true
	}

	return nil, false
}

func (m *chatModel) send(text string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: s.Send(ctx, text)}
	}
}

func (m *chatModel) command(raw string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		_, err := s.Command(ctx, raw)
		return actionDoneMsg{err: err}
	}
}

// handleWindowResize handles window size changes
func (m *chatModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - inputHeightReserved - statusHeightReserved
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	m.contentView.Width = msg.Width
	m.contentView.Height = contentHeight
	m.input.Width = msg.Width - 3

	// Reapply wrapping when window size changes
	m.refreshContent()
}

// refreshContent re-renders the timeline snapshot into the viewport
func (m *chatModel) refreshContent() {
	entries := m.session.Timeline().Snapshot()
	var display string
	if len(entries) == 0 {
		display = dimStyle.Render("Nenhuma mensagem ainda. Diga olá!")
	} else {
		display = ui.RenderTimeline(entries, m.width)
	}

	m.contentView.SetContent(display)
	m.contentView.GotoBottom()
}

// statusLine shows who is logged in, the poll state and the last sync time
func (m chatModel) statusLine(now time.Time) string {
	user := m.session.User()
	parts := []string{fmt.Sprintf("%s <%s>", user.Name, user.Email)}

	switch last := m.session.LastSync(); {
	case m.session.PollState() == chatsync.StateIdle:
		parts = append(parts, "carregando histórico")
	case last.IsZero():
		parts = append(parts, "sem sincronização")
	default:
		parts = append(parts, "sincronizado "+humanize.RelTime(last, now, "atrás", "à frente"))
	}
	return dimStyle.Render(strings.Join(parts, " • "))
}

// View renders the UI (Bubble Tea interface)
func (m chatModel) View() string {
	now := time.Now()
	parts := []string{m.statusLine(now)}

	if banner := m.session.Banner(); banner != "" {
		parts = append(parts, errorStyle.Render("⚠ "+banner))
	} else if m.hint != "" {
		parts = append(parts, dimStyle.Render(m.hint))
	} else {
		parts = append(parts, "")
	}

	parts = append(parts, m.contentView.View())

	// Activity line
	switch {
	case m.session.Busy():
		parts = append(parts, m.spinner.View()+dimStyle.Render(" enviando..."))
	case m.session.Typing(now):
		parts = append(parts, m.spinner.View()+accentStyle.Render(" Aiko está digitando..."))
	default:
		parts = append(parts, "")
	}

	parts = append(parts,
		promptStyle.Render("> ")+m.input.View(),
		dimStyle.Render("Enter enviar • /bloquear /desbloquear • ^B/^U bloquear/desbloquear • ^L limpar • ^R atualizar • Esc sair"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
