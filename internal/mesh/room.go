package mesh

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/signaling"
	pion "github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

const (
	dataChannelLabel = "room-data"
	dataChannelID    = 0
	eventBuffer      = 256

	// outboxLimit caps the payloads held for a channel that has not opened.
	outboxLimit = 64
)

// Room is a joined mesh room. It holds one peer connection per member and
// reports what happens on Events.
type Room struct {
	name   string
	peer   *Peer
	stream pion.TrackLocal

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool

	eventsMu sync.RWMutex
	events   chan Event
	done     chan struct{}
	once     sync.Once
}

func newRoom(p *Peer, name string, stream pion.TrackLocal) *Room {
	return &Room{
		name:   name,
		peer:   p,
		stream: stream,
		conns:  make(map[string]*conn),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Name is the room name.
func (r *Room) Name() string {
	return r.name
}

// Events delivers room events in order. The channel is closed when the room
// closes or the signalling connection ends.
func (r *Room) Events() <-chan Event {
	return r.events
}

// Peers lists the members this client is connected to.
func (r *Room) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.conns)
}

// start offers a connection to each existing member, then announces the
// room. Newcomers offer; members already in the room answer.
func (r *Room) start(opened *signaling.RoomOpened) {
	for _, id := range opened.Peers {
		if id == r.peer.id {
			continue
		}
		c, err := r.connFor(id)
		if err != nil {
			slog.Warn("cannot connect to peer", "peer", id, "error", err)
			continue
		}
		if err := c.offer(); err != nil {
			slog.Warn("offer failed", "peer", id, "error", err)
		}
	}

	// Connections exist before Opened so a send made on it is held for them.
	r.emit(Opened{Room: r.name, Peers: opened.Peers})
	go r.loop()
}

func (r *Room) loop() {
	h := r.peer.handler
	defer r.Close()

	for {
		select {
		case id, ok := <-h.PeerJoined:
			if !ok {
				return
			}
			if id == r.peer.id {
				continue
			}
			if _, err := r.connFor(id); err != nil {
				slog.Warn("cannot prepare connection", "peer", id, "error", err)
			}
			r.emit(PeerJoined{PeerID: id})

		case id, ok := <-h.PeerLeft:
			if !ok {
				return
			}
			r.drop(id)
			r.emit(PeerLeft{PeerID: id})

		case sig, ok := <-h.Signal:
			if !ok {
				return
			}
			r.handleSignal(sig)

		case errMsg, ok := <-h.Error:
			if !ok {
				return
			}
			r.emit(Failed{Err: WrapError("room "+r.name, ErrSignaling, errMsg)})

		case <-r.done:
			return
		}
	}
}

func (r *Room) handleSignal(sig *signaling.Signal) {
	if sig.From == "" || sig.From == r.peer.id {
		return
	}
	c, err := r.connFor(sig.From)
	if err != nil {
		slog.Warn("cannot accept signal", "peer", sig.From, "error", err)
		return
	}
	if err := c.handleSignal(&sig.Payload); err != nil {
		slog.Warn("signal handling error", "peer", sig.From, "error", err)
	}
}

// connFor returns the connection to id, creating it when needed.
func (r *Room) connFor(id string) (*conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.conns[id]; ok {
		return c, nil
	}

	c, err := newConn(r, id)
	if err != nil {
		return nil, err
	}
	r.conns[id] = c
	return c, nil
}

func (r *Room) drop(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if ok {
		c.close()
	}
}

// Send delivers data to every member. Data for a member whose channel is
// still opening is held and flushed in order once it opens.
func (r *Room) Send(data []byte) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return NewError("send", ErrClosed)
	}
	conns := lo.Values(r.conns)
	r.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.send(data); err != nil {
			errs = append(errs, NewPeerError("send", c.peerID, err))
		}
	}
	return errors.Join(errs...)
}

// Close leaves the room and closes every peer connection.
func (r *Room) Close() error {
	r.once.Do(func() {
		close(r.done)

		r.mu.Lock()
		r.closed = true
		conns := r.conns
		r.conns = make(map[string]*conn)
		r.mu.Unlock()

		for _, c := range conns {
			c.close()
		}

		if err := r.peer.send(&signaling.Message{Type: signaling.MessageTypeLeaveRoom, Room: r.name}); err != nil {
			slog.Debug("leave room not sent", "room", r.name, "error", err)
		}

		r.eventsMu.Lock()
		close(r.events)
		r.eventsMu.Unlock()

		r.peer.mu.Lock()
		if r.peer.room == r {
			r.peer.room = nil
		}
		r.peer.mu.Unlock()
	})
	return nil
}

// emit queues ev unless the room is closing.
func (r *Room) emit(ev Event) {
	r.eventsMu.RLock()
	defer r.eventsMu.RUnlock()

	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Room) signal(dst string, payload signaling.SignalPayload) error {
	msg, err := signaling.NewMessage(signaling.MessageTypeSignal, payload)
	if err != nil {
		return err
	}
	msg.Dst = dst
	msg.Room = r.name
	return r.peer.send(msg)
}

// conn is the peer connection to one room member.
type conn struct {
	room   *Room
	peerID string
	pc     *pion.PeerConnection
	dc     *pion.DataChannel

	mu         sync.Mutex
	remoteSet  bool
	pendingICE []pion.ICECandidateInit
	open       bool
	closed     bool
	outbox     [][]byte
}

func newConn(r *Room, peerID string) (*conn, error) {
	pc, err := newPeerConnection(r.peer.cfg)
	if err != nil {
		return nil, err
	}

	c := &conn{room: r, peerID: peerID, pc: pc}

	if r.stream != nil {
		sender, err := pc.AddTrack(r.stream)
		if err != nil {
			pc.Close()
			return nil, NewPeerError("add local track", peerID, err)
		}
		go drainRTCP(sender)
	} else if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, NewPeerError("add transceiver", peerID, err)
	}

	// Both sides create the same pre-negotiated channel, so no
	// ondatachannel round trip is needed.
	negotiated := true
	id := uint16(dataChannelID)
	ordered := true
	dc, err := pc.CreateDataChannel(dataChannelLabel, &pion.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		pc.Close()
		return nil, NewPeerError("create data channel", peerID, err)
	}
	c.dc = dc

	c.setupHandlers()
	return c, nil
}

func (c *conn) setupHandlers() {
	c.pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			return
		}
		raw, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		if err := c.room.signal(c.peerID, signaling.SignalPayload{ICECandidate: raw}); err != nil {
			slog.Debug("ice candidate not sent", "peer", c.peerID, "error", err)
		}
	})

	c.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", c.peerID, "state", state.String())
	})

	c.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if track.Kind() != pion.RTPCodecTypeAudio {
			return
		}
		stream := newRemoteStream(c.peerID, track.StreamID())
		slog.Info("streaming start", "peer", c.peerID, "stream", stream.ID())
		go stream.drain(track, c.room.peer.cfg.RecordDir)
		c.room.emit(StreamAdded{Stream: stream})
	})

	c.dc.OnOpen(c.flushOutbox)

	c.dc.OnClose(func() {
		c.mu.Lock()
		c.closed = true
		c.outbox = nil
		c.mu.Unlock()
	})

	c.dc.OnMessage(func(msg pion.DataChannelMessage) {
		c.room.emit(Data{Src: c.peerID, Data: msg.Data})
	})
}

// offer creates a WebRTC offer with trickle ICE (doesn't wait for gathering).
func (c *conn) offer() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return NewPeerError("create offer", c.peerID, err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return NewPeerError("set local description", c.peerID, err)
	}
	return c.room.signal(c.peerID, signaling.SignalPayload{Type: offer.Type.String(), SDP: offer.SDP})
}

// handleSignal processes incoming signaling messages (SDP and ICE candidates).
func (c *conn) handleSignal(payload *signaling.SignalPayload) error {
	if payload.SDP != "" {
		if err := c.handleSDP(payload); err != nil {
			return err
		}
	}

	if len(payload.ICECandidate) > 0 {
		var ice pion.ICECandidateInit
		if err := json.Unmarshal(payload.ICECandidate, &ice); err != nil {
			return NewPeerError("parse ICE candidate", c.peerID, err)
		}
		return c.addCandidate(ice)
	}
	return nil
}

func (c *conn) handleSDP(payload *signaling.SignalPayload) error {
	desc := pion.SessionDescription{Type: pion.NewSDPType(payload.Type), SDP: payload.SDP}

	switch desc.Type {
	case pion.SDPTypeOffer:
		if err := c.pc.SetRemoteDescription(desc); err != nil {
			return NewPeerError("set remote description", c.peerID, err)
		}
		c.flushCandidates()

		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return NewPeerError("create answer", c.peerID, err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return NewPeerError("set local description", c.peerID, err)
		}
		return c.room.signal(c.peerID, signaling.SignalPayload{Type: answer.Type.String(), SDP: answer.SDP})

	case pion.SDPTypeAnswer:
		if err := c.pc.SetRemoteDescription(desc); err != nil {
			return NewPeerError("set remote description", c.peerID, err)
		}
		c.flushCandidates()
		return nil

	default:
		return WrapError("handle signal", ErrUnexpectedSDP, payload.Type)
	}
}

// addCandidate applies ice, or holds it until the remote description is set.
func (c *conn) addCandidate(ice pion.ICECandidateInit) error {
	c.mu.Lock()
	if !c.remoteSet {
		c.pendingICE = append(c.pendingICE, ice)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.pc.AddICECandidate(ice); err != nil {
		return NewPeerError("add ICE candidate", c.peerID, err)
	}
	return nil
}

func (c *conn) flushCandidates() {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.pendingICE
	c.pendingICE = nil
	c.mu.Unlock()

	for _, ice := range pending {
		if err := c.pc.AddICECandidate(ice); err != nil {
			slog.Debug("dropping ICE candidate", "peer", c.peerID, "error", err)
		}
	}
}

// send writes data to the channel, or holds it until the channel opens.
func (c *conn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrChannelClosed
	case !c.open:
		if len(c.outbox) >= outboxLimit {
			return ErrOutboxFull
		}
		c.outbox = append(c.outbox, append([]byte(nil), data...))
		return nil
	default:
		return c.dc.Send(data)
	}
}

// flushOutbox runs when the data channel opens. Held payloads go out under
// the lock so later sends cannot overtake them.
func (c *conn) flushOutbox() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.open = true
	for _, data := range c.outbox {
		if err := c.dc.Send(data); err != nil {
			slog.Warn("held data not sent", "peer", c.peerID, "error", err)
		}
	}
	c.outbox = nil
}

func (c *conn) close() {
	c.mu.Lock()
	c.closed = true
	c.outbox = nil
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		slog.Debug("closing peer connection", "peer", c.peerID, "error", err)
	}
}

// drainRTCP reads RTCP for the sender so interceptors keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
