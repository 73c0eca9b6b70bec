// Package ui is the terminal dashboard: conversation list with unread
// badges, delivery ticks per message, and live typing indicators, all
// driven by engine updates.
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weftlabs/weft/internal/directory"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/types"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	badgeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	readStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	tickStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	typingStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("157"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	draftStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
)

// refreshMsg asks the model to re-read engine snapshots. Both flushed
// updates and out-of-band invalidations collapse to the same repaint.
type refreshMsg struct{}

type model struct {
	eng *engine.Engine

	convs    []directory.Conversation
	selected int
	draft    string
	width    int
	height   int
	quitting bool
}

func newModel(e *engine.Engine) model {
	return model{eng: e, convs: e.Conversations()}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.convs = m.eng.Conversations()
		if m.selected >= len(m.convs) && len(m.convs) > 0 {
			m.selected = len(m.convs) - 1
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		m.eng.StopTyping()
		return m, tea.Quit

	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case tea.KeyDown:
		if m.selected < len(m.convs)-1 {
			m.selected++
		}
		return m, nil

	case tea.KeyEnter:
		if m.draft != "" {
			if _, err := m.eng.SendMessage(m.draft); err == nil {
				m.draft = ""
			}
			return m, nil
		}
		if m.selected < len(m.convs) {
			m.eng.SetActiveConversation(m.convs[m.selected].ID)
		}
		return m, nil

	case tea.KeyBackspace:
		if m.draft != "" {
			m.draft = m.draft[:len(m.draft)-1]
		}
		return m, nil

	case tea.KeySpace:
		m.draft += " "
		m.eng.StartTyping()
		return m, nil

	case tea.KeyRunes:
		m.draft += string(msg.Runes)
		m.eng.StartTyping()
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	global := m.eng.GlobalUnread()
	title := "WEFT"
	if global > 0 {
		title = fmt.Sprintf("WEFT (%d unread)", global)
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.convs) == 0 {
		b.WriteString(helpStyle.Render("no conversations yet"))
		b.WriteString("\n")
	}

	active := m.eng.ActiveConversation()
	for i, conv := range m.convs {
		line := conv.Name
		if line == "" {
			line = conv.ID
		}
		if n := m.eng.UnreadCount(conv.ID); n > 0 {
			line += " " + badgeStyle.Render(fmt.Sprintf("[%d]", n))
		}
		if conv.ID == active {
			line += " " + tickStyle.Render("(open)")
		}
		prefix := "  "
		if i == m.selected {
			prefix = "> "
			line = selectedStyle.Render(line)
		}
		b.WriteString(prefix + line + "\n")
	}

	if active != "" {
		b.WriteString("\n")
		for _, st := range m.eng.ConversationStatuses(active) {
			b.WriteString(fmt.Sprintf("  %s %s\n", st.MessageID, renderTicks(st.Rendered)))
		}
		if line := typingLine(m.eng.TypingUsers(active)); line != "" {
			b.WriteString(typingStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(draftStyle.Render("> " + m.draft))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select · enter open/send · esc quit"))
	b.WriteString("\n")
	return b.String()
}

// renderTicks maps a status to the familiar chat glyphs: one tick sent,
// two delivered, two colored read.
func renderTicks(level types.StatusLevel) string {
	switch level {
	case types.StatusSent:
		return tickStyle.Render("✓")
	case types.StatusDelivered:
		return tickStyle.Render("✓✓")
	case types.StatusRead:
		return readStyle.Render("✓✓")
	}
	return tickStyle.Render("…")
}

func typingLine(users []types.TypingUser) string {
	if len(users) == 0 {
		return ""
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		name := u.UserName
		if name == "" {
			name = u.UserID
		}
		names = append(names, name)
	}
	if len(names) == 1 {
		return names[0] + " is typing..."
	}
	return strings.Join(names, ", ") + " are typing..."
}

// Run starts the dashboard and blocks until the user quits. Engine
// callbacks are bridged into the bubbletea message loop.
func Run(e *engine.Engine) error {
	p := tea.NewProgram(newModel(e), tea.WithAltScreen())
	e.OnUpdate(func(*types.Update) { p.Send(refreshMsg{}) })
	e.OnInvalidate(func() { p.Send(refreshMsg{}) })
	_, err := p.Run()
	return err
}
