package ui

import (
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

// TileWidth is the inner width of one user tile.
const TileWidth = 16

// tileOuterWidth adds the border.
const tileOuterWidth = TileWidth + 2

// Tile renders one remote user: name (or id) and audio state.
func Tile(u chat.User) string {
	style := TileStyle
	if isLive(u.Stream) {
		style = LiveTileStyle
	}
	icon := IconMuted
	if u.Stream != nil {
		icon = IconSpeaker
	}
	return style.Render(icon + "\n" + truncate(u.DisplayName(), TileWidth))
}

// TileGrid lays the tiles out in rows that fit width.
func TileGrid(users []chat.User, width int) string {
	if len(users) == 0 {
		return MutedStyle.Render("Waiting for others to join...")
	}

	perRow := max(1, width/tileOuterWidth)
	rows := lo.Map(lo.Chunk(users, perRow), func(row []chat.User, _ int) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, lo.Map(row, func(u chat.User, _ int) string {
			return Tile(u)
		})...)
	})
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
