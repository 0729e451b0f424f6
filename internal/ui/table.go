package ui

import (
	"fmt"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ParticipantsView renders the room members as a table.
func ParticipantsView(users []chat.User) string {
	if len(users) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	rows := make([][]string, 0, len(users))
	for i, u := range users {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncate(u.DisplayName(), 24),
			truncate(u.ID, 20),
			audioLabel(u.Stream),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "Peer", "Audio").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomInfo is the box printed when a room is joined.
type RoomInfo struct {
	Room string
	Link string
	Self string
}

func (r RoomInfo) View() string {
	content := fmt.Sprintf("%s Joined room\n\n%s Room:  %s\n%s You:   %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.Room),
		IconPeer, BoldStyle.Render(r.Self),
	)
	if r.Link != "" {
		content += fmt.Sprintf("\n%s Link:  %s", IconLink, MutedStyle.Render(r.Link))
	}
	return InfoBoxStyle.Render(content)
}

func audioLabel(s chat.Stream) string {
	switch {
	case s == nil:
		return IconMuted + " waiting"
	case isLive(s):
		return IconSpeaker + " live"
	default:
		return IconSpeaker + " silent"
	}
}

// isLive reports whether a stream is currently carrying audio. Streams that
// cannot tell are treated as live.
func isLive(s chat.Stream) bool {
	if s == nil {
		return false
	}
	if a, ok := s.(interface{ Active() bool }); ok {
		return a.Active()
	}
	return true
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
