package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/device"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/mesh"
	"github.com/samber/lo"
)

// DefaultJoinTimeout bounds connecting, opening the microphone and joining.
const DefaultJoinTimeout = 30 * time.Second

// Status is the lifecycle state of a session.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config describes one session.
type Config struct {
	Room        string
	UserName    string
	Device      device.Preference
	JoinTimeout time.Duration
}

// Snapshot is a copy of everything the presentation shows.
type Snapshot struct {
	Status   Status
	Err      error
	Room     string
	UserName string
	LocalID  string
	Users    []chat.User
	Messages []chat.Message
}

// SelfName is the local name, or the peer id when no name is set.
func (s Snapshot) SelfName() string {
	if s.UserName != "" {
		return s.UserName
	}
	return s.LocalID
}

// Summary describes a finished session.
type Summary struct {
	Room         string
	LocalID      string
	Duration     time.Duration
	Participants []chat.User
	Received     int
	Sent         int
}

// Session joins one room at a time and keeps the room state current.
//
// Each bootstrap run gets a generation number. Results that arrive after
// the session moved on (switch, retry, close) are released and dropped.
type Session struct {
	cfg     Config
	network Network
	source  MediaSource

	mu         sync.Mutex
	parent     context.Context
	generation uint64
	cancel     context.CancelFunc
	status     Status
	err        error
	localID    string
	peer       Peer
	stream     LocalStream
	dispatcher *chat.Dispatcher
	closed     bool

	started  time.Time
	seen     map[string]chat.User
	order    []string
	received int
	sent     int

	updates chan Snapshot
}

// New creates a session. Nothing happens until Start.
func New(cfg Config, network Network, source MediaSource) *Session {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	return &Session{
		cfg:     cfg,
		network: network,
		source:  source,
		status:  StatusConnecting,
		seen:    make(map[string]chat.User),
		updates: make(chan Snapshot, 1),
	}
}

// Updates delivers the latest snapshot after every change. Older snapshots
// that were not read are replaced. The channel is closed by Close.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start joins the configured room. The session stops when ctx is done.
// A session starts once; use SwitchRoom or Retry afterwards.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewError("start", ErrClosed)
	}
	if s.parent != nil {
		return NewError("start", ErrStarted)
	}
	if s.cfg.Room == "" {
		return NewError("start", ErrNoRoom)
	}
	s.parent = ctx
	s.started = time.Now()
	s.launchLocked()

	context.AfterFunc(ctx, func() { s.Close() })
	return nil
}

// SwitchRoom leaves the current room and joins room.
func (s *Session) SwitchRoom(room string) error {
	if room == "" {
		return NewError("switch room", ErrNoRoom)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError("switch room", ErrClosed)
	}
	if s.parent == nil {
		s.cfg.Room = room
		s.mu.Unlock()
		return nil
	}
	if room == s.cfg.Room && s.status != StatusFailed {
		s.mu.Unlock()
		return nil
	}
	peer, stream := s.teardownLocked()
	s.cfg.Room = room
	s.launchLocked()
	s.mu.Unlock()

	releaseQuietly(peer, stream)
	return nil
}

// Retry restarts the bootstrap for the current room.
func (s *Session) Retry() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError("retry", ErrClosed)
	}
	if s.parent == nil {
		s.mu.Unlock()
		return NewError("retry", ErrNotJoined)
	}
	peer, stream := s.teardownLocked()
	s.launchLocked()
	s.mu.Unlock()

	releaseQuietly(peer, stream)
	return nil
}

// SendChatMessage broadcasts text to the room and appends it to the local
// history.
func (s *Session) SendChatMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dispatcher == nil {
		return NewError("send message", ErrNotJoined)
	}
	err := s.dispatcher.SendChatMessage(text)
	s.sent++
	s.publishLocked()
	if err != nil {
		return WrapError("send message", ErrSignaling, err.Error())
	}
	return nil
}

// Close leaves the room and releases the microphone. Later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	peer, stream := s.teardownLocked()
	s.status = StatusClosed
	s.publishLocked()
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	return release(peer, stream)
}

// Summary reports who took part and how much was said.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Room:         s.cfg.Room,
		LocalID:      s.localID,
		Participants: lo.Map(s.order, func(id string, _ int) chat.User { return s.seen[id] }),
		Received:     s.received,
		Sent:         s.sent,
	}
	if !s.started.IsZero() {
		sum.Duration = time.Since(s.started)
	}
	return sum
}

// launchLocked starts a new generation for the current room.
func (s *Session) launchLocked() {
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.status = StatusConnecting
	s.err = nil
	s.localID = ""
	s.dispatcher = nil
	s.publishLocked()

	go s.bootstrap(ctx, gen, s.cfg.Room)
}

// teardownLocked invalidates the running generation and hands back its
// resources, to be released once the lock is dropped.
func (s *Session) teardownLocked() (Peer, LocalStream) {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.dispatcher = nil
	peer, stream := s.peer, s.stream
	s.peer, s.stream = nil, nil
	return peer, stream
}

func (s *Session) bootstrap(ctx context.Context, gen uint64, room string) {
	joinCtx, cancel := context.WithTimeout(ctx, s.cfg.JoinTimeout)
	defer cancel()

	slog.Debug("connecting", "room", room, "generation", gen)
	peer, err := s.network.Connect(joinCtx)
	if err != nil {
		s.fail(gen, classify("connect to server", ErrSignaling, err))
		return
	}
	if !s.setPeer(gen, peer) {
		releaseQuietly(peer, nil)
		return
	}

	stream, err := s.source.Acquire(joinCtx, device.Constraints(s.cfg.Device))
	if err != nil {
		s.fail(gen, classify("open microphone", ErrMicrophone, err))
		return
	}
	if !s.setStream(gen, stream) {
		releaseQuietly(nil, stream)
		return
	}

	r, err := peer.JoinRoom(joinCtx, room, stream)
	if err != nil {
		s.fail(gen, classify("join room "+room, ErrSignaling, err))
		return
	}
	if !s.joined(gen, peer.ID(), r) {
		return
	}
	slog.Info("in room", "room", room, "peer", peer.ID())

	for ev := range r.Events() {
		if !s.apply(gen, ev) {
			return
		}
	}
	s.fail(gen, WrapError("room "+room, ErrSignaling, "connection to the signalling service ended"))
}

func (s *Session) setPeer(gen uint64, peer Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.peer = peer
	s.localID = peer.ID()
	s.publishLocked()
	return true
}

func (s *Session) setStream(gen uint64, stream LocalStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.stream = stream
	return true
}

func (s *Session) joined(gen uint64, self string, r Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.dispatcher = chat.NewDispatcher(self, s.cfg.UserName, r)
	s.status = StatusConnected
	s.publishLocked()
	return true
}

// fail records err for gen and releases what that generation acquired.
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		slog.Debug("dropping stale failure", "generation", gen, "error", err)
		return
	}
	slog.Warn("session failed", "error", err)
	peer, stream := s.peer, s.stream
	s.peer, s.stream = nil, nil
	s.dispatcher = nil
	s.status = StatusFailed
	s.err = err
	s.publishLocked()
	s.mu.Unlock()

	releaseQuietly(peer, stream)
}

// apply feeds one room event to the dispatcher. It reports false once gen
// is stale.
func (s *Session) apply(gen uint64, ev mesh.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.dispatcher == nil {
		return false
	}

	switch ev := ev.(type) {
	case mesh.Opened:
		s.dispatcher.Handle(chat.RoomOpened{})
	case mesh.PeerJoined:
		s.dispatcher.Handle(chat.PeerJoined{PeerID: ev.PeerID})
	case mesh.PeerLeft:
		s.dispatcher.Handle(chat.PeerLeft{PeerID: ev.PeerID})
	case mesh.StreamAdded:
		s.dispatcher.Handle(chat.StreamReceived{PeerID: ev.Stream.PeerID(), Stream: ev.Stream})
	case mesh.Data:
		payload, err := chat.Decode(ev.Data)
		if err != nil {
			slog.Warn("dropping room data", "src", ev.Src, "error", err)
			return true
		}
		if payload.Type == chat.MessageAction && ev.Src != s.localID {
			s.received++
		}
		s.dispatcher.Handle(chat.DataReceived{Src: ev.Src, Payload: payload})
	case mesh.Failed:
		slog.Warn("room error", "error", ev.Err)
		s.err = ev.Err
	default:
		return true
	}

	s.remember(s.dispatcher.State().Users)
	s.publishLocked()
	return true
}

// remember keeps every user seen during the session for the summary.
func (s *Session) remember(users []chat.User) {
	for _, u := range users {
		prev, ok := s.seen[u.ID]
		if !ok {
			s.order = append(s.order, u.ID)
		}
		if u.Name == "" {
			u.Name = prev.Name
		}
		u.Stream = nil
		s.seen[u.ID] = u
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:   s.status,
		Err:      s.err,
		Room:     s.cfg.Room,
		UserName: s.cfg.UserName,
		LocalID:  s.localID,
	}
	if s.dispatcher != nil {
		st := s.dispatcher.State()
		snap.Users = st.Users
		snap.Messages = st.Messages
	}
	return snap
}

// publishLocked replaces any unread snapshot with the current one. Only
// lock holders send, so the buffered send never blocks.
func (s *Session) publishLocked() {
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- s.snapshotLocked()
}

func release(peer Peer, stream LocalStream) error {
	var errs []error
	if peer != nil {
		errs = append(errs, peer.Destroy())
	}
	if stream != nil {
		errs = append(errs, stream.Close())
	}
	return errors.Join(errs...)
}

func releaseQuietly(peer Peer, stream LocalStream) {
	if err := release(peer, stream); err != nil {
		slog.Warn("release session", "error", err)
	}
}
