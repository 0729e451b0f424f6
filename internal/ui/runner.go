package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

// RunChat shows the interactive room screen until the user leaves or the
// session ends.
func RunChat(ctx context.Context, ctl Controller, link string) error {
	// Inline mode keeps previous terminal output visible.
	p := tea.NewProgram(NewChatModel(ctl, link), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat screen: %w", err)
	}
	return nil
}

// RunPlain is the line-oriented mode for terminals without a TUI. Changes
// are printed to out as they happen and each line read from in is sent as a
// chat message. "/retry" restarts a failed session and "/who" lists users.
func RunPlain(ctx context.Context, ctl Controller, in io.Reader, out io.Writer, link string) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sp := NewConnectionSpinner("Joining room...")
	sp.Start()
	defer sp.Stop()

	prev := session.Snapshot{Room: ctl.Snapshot().Room}
	updates := ctl.Updates()
	input := lines

	for {
		select {
		case <-ctx.Done():
			return nil

		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.Status != session.StatusConnecting {
				sp.Stop()
			}
			if snap.Status == session.StatusConnected && prev.Status != session.StatusConnected {
				fmt.Fprintln(out, RoomInfo{Room: snap.Room, Link: link, Self: snap.SelfName()}.View())
			}
			for _, line := range PlainChanges(prev, snap) {
				fmt.Fprintln(out, line)
			}
			prev = snap

		case line, ok := <-input:
			if !ok {
				// Input ended; keep listening until the session closes.
				input = nil
				continue
			}
			handlePlainInput(ctl, out, strings.TrimSpace(line))
		}
	}
}

func handlePlainInput(ctl Controller, out io.Writer, line string) {
	switch line {
	case "":
		return
	case "/retry":
		if err := ctl.Retry(); err != nil {
			fmt.Fprintln(out, FormatError(err))
		}
		return
	case "/who":
		fmt.Fprintln(out, ParticipantsView(ctl.Snapshot().Users))
		return
	}

	if err := ctl.SendChatMessage(line); err != nil {
		fmt.Fprintln(out, FormatError(err))
	}
}

// PlainChanges describes what changed between two snapshots, one line per
// change: failures and warnings, users joining, leaving or renaming, and
// new messages.
func PlainChanges(prev, next session.Snapshot) []string {
	var out []string

	if next.Status != prev.Status {
		switch next.Status {
		case session.StatusFailed:
			msg := "connection failed"
			if next.Err != nil {
				msg = next.Err.Error()
			}
			out = append(out, FormatError(fmt.Errorf("%s (type /retry to try again)", msg)))
		}
	}

	// A room error from the service does not end a connected session.
	if next.Status == session.StatusConnected && next.Err != nil && next.Err != prev.Err {
		out = append(out, FormatWarning(next.Err.Error()))
	}

	// A new generation starts with an empty room.
	if next.LocalID != prev.LocalID {
		prev.Users, prev.Messages = nil, nil
	}

	before := lo.SliceToMap(prev.Users, func(u chat.User) (string, chat.User) { return u.ID, u })
	for _, u := range next.Users {
		old, ok := before[u.ID]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s %s joined", IconPeer, u.DisplayName()))
		case old.Name != u.Name && u.Name != "":
			out = append(out, fmt.Sprintf("%s %s is now %s", IconPeer, old.DisplayName(), u.Name))
		case old.Stream == nil && u.Stream != nil:
			out = append(out, fmt.Sprintf("%s receiving audio from %s", IconSpeaker, u.DisplayName()))
		}
	}

	after := lo.SliceToMap(next.Users, func(u chat.User) (string, struct{}) { return u.ID, struct{}{} })
	for _, u := range prev.Users {
		if _, ok := after[u.ID]; !ok {
			out = append(out, fmt.Sprintf("%s %s left", IconPeer, u.DisplayName()))
		}
	}

	if len(next.Messages) > len(prev.Messages) {
		names := lo.SliceToMap(next.Users, func(u chat.User) (string, string) { return u.ID, u.DisplayName() })
		names[next.LocalID] = next.SelfName()
		for _, msg := range next.Messages[len(prev.Messages):] {
			name := lo.ValueOr(names, msg.Sender, msg.Sender)
			out = append(out, fmt.Sprintf("%s %s", SenderStyle.Render(name+":"), msg.Text))
		}
	}

	return out
}
