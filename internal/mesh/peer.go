package mesh

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// RoomOptions configures JoinRoom.
type RoomOptions struct {
	// Mode is the room topology; only signaling.ModeMesh is supported.
	Mode string
	// Stream is published to every member. Nil joins receive-only.
	Stream pion.TrackLocal
}

// Peer is this client's identity on the signalling service.
type Peer struct {
	id      string
	cfg     *config.Config
	client  *signaling.Client
	handler *signaling.Handler

	mu        sync.Mutex
	room      *Room
	destroyed bool
}

// Connect opens a connection to the signalling service with the configured
// API key and waits until the service assigns a peer id.
func Connect(ctx context.Context, cfg *config.Config) (*Peer, error) {
	client := signaling.NewClient(cfg.WebSocketURL(), cfg.APIKey)
	if err := client.Connect(ctx); err != nil {
		return nil, NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	select {
	case id, ok := <-handler.Open:
		if !ok || id == "" {
			client.Close()
			return nil, WrapError("open", ErrSignaling, "connection closed before a peer id was assigned")
		}
		slog.Info("connection established", "peer", id, "client", client.ClientID())
		return &Peer{id: id, cfg: cfg, client: client, handler: handler}, nil

	case errMsg := <-handler.Error:
		client.Close()
		return nil, WrapError("open", ErrSignaling, errMsg)

	case <-ctx.Done():
		client.Close()
		return nil, NewError("open", ctx.Err())
	}
}

// ID is the peer id assigned by the service.
func (p *Peer) ID() string {
	return p.id
}

// JoinRoom enters the named room and starts negotiating with every member.
func (p *Peer) JoinRoom(ctx context.Context, name string, opts RoomOptions) (*Room, error) {
	if opts.Mode == "" {
		opts.Mode = signaling.ModeMesh
	}
	if opts.Mode != signaling.ModeMesh {
		return nil, WrapError("join room", ErrSignaling, "unsupported mode "+opts.Mode)
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil, NewError("join room", ErrClosed)
	}
	if p.room != nil {
		p.mu.Unlock()
		return nil, NewError("join room", ErrAlreadyInRoom)
	}
	p.mu.Unlock()

	msg, err := signaling.NewMessage(signaling.MessageTypeJoinRoom, signaling.JoinPayload{Mode: opts.Mode})
	if err != nil {
		return nil, NewError("join room", err)
	}
	msg.Room = name
	if err := p.client.SendMessage(msg); err != nil {
		return nil, NewError("join room", err)
	}

	var opened *signaling.RoomOpened
	select {
	case o, ok := <-p.handler.RoomOpened:
		if !ok {
			return nil, WrapError("join room", ErrSignaling, "connection closed")
		}
		opened = o
	case errMsg := <-p.handler.Error:
		return nil, WrapError("join room", ErrSignaling, errMsg)
	case <-ctx.Done():
		return nil, NewError("join room", ctx.Err())
	}

	room := newRoom(p, name, opts.Stream)

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		room.Close()
		return nil, NewError("join room", ErrClosed)
	}
	p.room = room
	p.mu.Unlock()

	slog.Info("joined room", "room", name, "peers", len(opened.Peers))
	room.start(opened)
	return room, nil
}

// Destroy leaves the room, closes every peer connection and the signalling
// connection. It is safe to call more than once.
func (p *Peer) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	room := p.room
	p.room = nil
	p.mu.Unlock()

	var err error
	if room != nil {
		err = room.Close()
	}
	p.client.Close()
	return err
}

func (p *Peer) send(msg *signaling.Message) error {
	return p.client.SendMessage(msg)
}
