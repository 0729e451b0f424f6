package session

import (
	"context"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/device"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/media"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/mesh"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// Network connects to the signalling service.
type Network interface {
	Connect(ctx context.Context) (Peer, error)
}

// Peer is the local identity on the signalling service.
type Peer interface {
	ID() string
	JoinRoom(ctx context.Context, room string, stream LocalStream) (Room, error)
	Destroy() error
}

// Room is a joined mesh room.
type Room interface {
	Events() <-chan mesh.Event
	Send(data []byte) error
}

// LocalStream is the microphone audio published to the room.
type LocalStream interface {
	ID() string
	Track() pion.TrackLocal
	Close() error
}

// MediaSource opens the microphone.
type MediaSource interface {
	Acquire(ctx context.Context, c device.Audio) (LocalStream, error)
}

type meshNetwork struct {
	cfg *config.Config
}

// NewMeshNetwork returns a Network backed by the mesh package.
func NewMeshNetwork(cfg *config.Config) Network {
	return &meshNetwork{cfg: cfg}
}

func (n *meshNetwork) Connect(ctx context.Context) (Peer, error) {
	p, err := mesh.Connect(ctx, n.cfg)
	if err != nil {
		return nil, err
	}
	return &meshPeer{peer: p}, nil
}

type meshPeer struct {
	peer *mesh.Peer
}

func (p *meshPeer) ID() string {
	return p.peer.ID()
}

func (p *meshPeer) JoinRoom(ctx context.Context, room string, stream LocalStream) (Room, error) {
	opts := mesh.RoomOptions{Mode: signaling.ModeMesh}
	if stream != nil {
		opts.Stream = stream.Track()
	}
	r, err := p.peer.JoinRoom(ctx, room, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *meshPeer) Destroy() error {
	return p.peer.Destroy()
}

type mediaSource struct {
	src *media.Source
}

// NewMediaSource adapts a media.Source.
func NewMediaSource(src *media.Source) MediaSource {
	return &mediaSource{src: src}
}

func (m *mediaSource) Acquire(ctx context.Context, c device.Audio) (LocalStream, error) {
	s, err := m.src.Acquire(ctx, c)
	if err != nil {
		return nil, err
	}
	return s, nil
}
