package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/device"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/media"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/route"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/session"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/ui"
	"github.com/mattn/go-isatty"
)

// Session is what the screens and the summary need from a running session.
type Session interface {
	ui.Controller
	Start(ctx context.Context) error
	Summary() session.Summary
	Close() error
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, session.NewError("load config", err)
	}
	return cfg, nil
}

// RoomTarget is the room to join and the link to share it with.
type RoomTarget struct {
	Room     string
	Link     string
	Replaced bool
}

// ResolveRoom decides which room to join. arg is what the user typed: a
// room name, a link carrying ?room=, or nothing. The room stored in the
// config (--room, VOICECHAT_ROOM) wins over a link's parameter.
func ResolveRoom(cfg *config.Config, arg string) (RoomTarget, error) {
	stateRoom, rawURL := cfg.Room, cfg.Origin()
	switch {
	case isLink(arg):
		rawURL = arg
	case arg != "" && stateRoom == "":
		stateRoom = arg
	}

	d, err := route.Resolve(stateRoom, rawURL)
	if err != nil {
		return RoomTarget{}, session.NewError("resolve room", err)
	}

	switch d.Action {
	case route.ActionRedirect:
		site := d.URL
		if site == "" {
			site = cfg.Origin()
		}
		return RoomTarget{}, session.WrapError("resolve room", session.ErrNoRoom, "pick a room at "+site)
	case route.ActionReplace:
		link := d.URL
		if !strings.Contains(link, "://") {
			link = cfg.RoomLink(d.Room)
		}
		return RoomTarget{Room: d.Room, Link: link, Replaced: true}, nil
	default:
		link := d.URL
		if !strings.Contains(link, "://") {
			link = cfg.RoomLink(d.Room)
		}
		return RoomTarget{Room: d.Room, Link: link}, nil
	}
}

func isLink(arg string) bool {
	return strings.Contains(arg, "://") || strings.Contains(arg, "?")
}

// NewSession wires the session to the mesh network and the local audio.
func NewSession(cfg *config.Config, room string) Session {
	return session.New(
		session.Config{
			Room:     room,
			UserName: cfg.UserName,
			Device:   device.Preference{InputDeviceID: cfg.InputDeviceID},
		},
		session.NewMeshNetwork(cfg),
		session.NewMediaSource(media.NewSource()),
	)
}

// RunSession starts s, shows the room until the user leaves, then prints
// the summary. A session that ended in failure returns its error.
func RunSession(ctx context.Context, s Session, target RoomTarget, plain bool) (err error) {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close()
		switch {
		case closeErr != nil && err != nil:
			ui.PrintWarning("leave room: " + closeErr.Error())
		case closeErr != nil:
			err = session.NewError("leave room", closeErr)
		case err == nil:
			ui.PrintSuccess("Left room " + target.Room)
		}
		fmt.Fprintln(ui.Output)
		ui.RenderSummary(ui.Output, s.Summary())
	}()

	if plain {
		err = ui.RunPlain(ctx, s, os.Stdin, os.Stdout, target.Link)
	} else {
		err = ui.RunChat(ctx, s, target.Link)
	}
	if err != nil {
		return err
	}

	if snap := s.Snapshot(); snap.Status == session.StatusFailed && snap.Err != nil {
		return snap.Err
	}
	return nil
}

// interactive reports whether stdin and stdout are a terminal.
func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}

// isNoRoom lets callers tell a missing room apart from other failures.
func isNoRoom(err error) bool {
	return errors.Is(err, session.ErrNoRoom)
}
