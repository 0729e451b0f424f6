package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth   = 100
	defaultHistory = 12
	refreshPeriod  = 500 * time.Millisecond
	maxMessageLen  = 1000
)

// Controller is the session surface the chat screen drives.
type Controller interface {
	Snapshot() session.Snapshot
	Updates() <-chan session.Snapshot
	SendChatMessage(text string) error
	Retry() error
}

type snapshotMsg session.Snapshot

type closedMsg struct{}

type refreshMsg time.Time

// ChatModel is the room screen: header, own name, chat history and input on
// the left, one tile per remote user on the right.
type ChatModel struct {
	ctl     Controller
	link    string
	snap    session.Snapshot
	input   textinput.Model
	spinner spinner.Model
	notice  string
	width   int
	height  int
	closed  bool
}

// NewChatModel creates the room screen for ctl. link is shown for sharing.
func NewChatModel(ctl Controller, link string) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press Enter"
	ti.CharLimit = maxMessageLen
	ti.Prompt = IconChat + " "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &ChatModel{
		ctl:     ctl,
		link:    link,
		snap:    ctl.Snapshot(),
		input:   ti,
		spinner: s,
		width:   defaultWidth,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForSnapshot(),
		refresh(),
	)
}

func (m *ChatModel) waitForSnapshot() tea.Cmd {
	updates := m.ctl.Updates()
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// refresh re-renders periodically so audio indicators follow the streams.
func refresh() tea.Cmd {
	return tea.Tick(refreshPeriod, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.closed = true
			return m, tea.Quit

		case "ctrl+r":
			if m.snap.Status == session.StatusFailed {
				m.notice = ""
				if err := m.ctl.Retry(); err != nil {
					m.notice = err.Error()
				}
			}
			return m, nil

		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, m.leftWidth()-6)

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		cmds = append(cmds, m.waitForSnapshot())

	case closedMsg:
		m.closed = true
		return m, tea.Quit

	case refreshMsg:
		cmds = append(cmds, refresh())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the input line. Nothing is sent while the room is not joined.
func (m *ChatModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	if m.snap.Status != session.StatusConnected {
		m.notice = "Not connected yet"
		return
	}

	m.notice = ""
	if err := m.ctl.SendChatMessage(text); err != nil {
		m.notice = err.Error()
	}
	m.snap = m.ctl.Snapshot()
	m.input.Reset()
}

func (m *ChatModel) View() string {
	if m.closed {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Room: %s", IconRoom, m.snap.Room)))
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n\n")

	left := PanelStyle.Width(m.leftWidth()).Render(lipgloss.JoinVertical(lipgloss.Left,
		SelfNameStyle.Render(IconMic+" "+m.selfName()),
		"",
		m.viewHistory(),
		"",
		m.input.View(),
	))
	rightWidth := max(tileOuterWidth, m.width-m.leftWidth()-6)
	right := PanelStyle.Width(rightWidth).Render(TileGrid(m.snap.Users, rightWidth-2))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))

	if m.notice != "" {
		b.WriteString("\n" + WarningStyle.Render(IconWarning+" "+m.notice))
	}
	b.WriteString("\n" + m.viewFooter())
	return b.String()
}

func (m *ChatModel) viewStatus() string {
	switch m.snap.Status {
	case session.StatusConnecting:
		return fmt.Sprintf("%s Joining room...", m.spinner.View())
	case session.StatusFailed:
		msg := "connection failed"
		if m.snap.Err != nil {
			msg = m.snap.Err.Error()
		}
		return ErrorBoxStyle.Render(fmt.Sprintf("%s %s\n%s", IconError, msg, MutedStyle.Render("Press ctrl+r to retry")))
	case session.StatusClosed:
		return MutedStyle.Render("Session closed")
	}

	line := fmt.Sprintf("%s Connected %s %d in room", SuccessStyle.Render(IconConnect), MutedStyle.Render("·"), len(m.snap.Users)+1)
	if m.link != "" {
		line += MutedStyle.Render("  " + IconLink + " " + m.link)
	}
	if m.snap.Err != nil {
		line += "\n" + WarningStyle.Render(IconWarning+" "+m.snap.Err.Error())
	}
	return line
}

func (m *ChatModel) viewHistory() string {
	if len(m.snap.Messages) == 0 {
		return MutedStyle.Render("No messages yet")
	}

	limit := defaultHistory
	if m.height > 0 {
		limit = max(3, m.height-14)
	}
	msgs := m.snap.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		style := SenderStyle
		if msg.Sender == m.snap.LocalID {
			style = SelfSenderStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s", style.Render(m.senderName(msg.Sender)+":"), msg.Text))
	}
	return strings.Join(lines, "\n")
}

func (m *ChatModel) viewFooter() string {
	return FooterStyle.Render("Enter: send · ctrl+r: retry · ctrl+c: leave")
}

func (m *ChatModel) selfName() string {
	if name := m.snap.SelfName(); name != "" {
		return name
	}
	return "connecting..."
}

// senderName is the sender's current display name, falling back to its id.
func (m *ChatModel) senderName(id string) string {
	if id == m.snap.LocalID {
		return m.selfName()
	}
	for _, u := range m.snap.Users {
		if u.ID == id {
			return u.DisplayName()
		}
	}
	return id
}

func (m *ChatModel) leftWidth() int {
	return max(30, m.width*2/5)
}
