package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/session"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

// SummaryView renders the end-of-session statistics.
func SummaryView(sum session.Summary) string {
	names := lo.Map(sum.Participants, func(u chat.User, _ int) string { return u.DisplayName() })

	t := table.NewWriter()
	t.SetTitle("Session Summary")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", sum.Room},
		{"Peer ID", lo.Ternary(sum.LocalID != "", sum.LocalID, "-")},
		{"Duration", FormatDuration(sum.Duration)},
		{"Participants", len(sum.Participants)},
		{"Messages received", sum.Received},
		{"Messages sent", sum.Sent},
	})
	if len(names) > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Seen", strings.Join(names, ", ")})
	}
	return t.Render()
}

// RenderSummary writes the summary table to w.
func RenderSummary(w io.Writer, sum session.Summary) {
	fmt.Fprintln(w, SummaryView(sum))
}

// FormatDuration formats d as 1h 2m 3s, dropping leading zero units.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
