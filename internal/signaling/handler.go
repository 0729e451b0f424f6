package signaling

import (
	"encoding/json"
	"log/slog"
)

// Handler routes incoming signaling messages to appropriate channels.
// Every channel is closed once the connection ends.
type Handler struct {
	client     *Client
	Open       chan string
	RoomOpened chan *RoomOpened
	PeerJoined chan string
	PeerLeft   chan string
	Signal     chan *Signal
	Error      chan string
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:     client,
		Open:       make(chan string, 1),
		RoomOpened: make(chan *RoomOpened, 1),
		PeerJoined: make(chan string, 16),
		PeerLeft:   make(chan string, 16),
		Signal:     make(chan *Signal, 64),
		Error:      make(chan string, 4),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes.
func (h *Handler) Start() {
	defer h.close()

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case MessageTypeOpen:
			deliver(h, h.Open, msg.PeerID)

		case MessageTypeRoomOpened:
			h.handleRoomOpened(msg)

		case MessageTypePeerJoined:
			deliver(h, h.PeerJoined, msg.PeerID)

		case MessageTypePeerLeft:
			deliver(h, h.PeerLeft, msg.PeerID)

		case MessageTypeSignal:
			h.handleSignal(msg)

		case MessageTypeError:
			h.handleError(msg)

		default:
			slog.Debug("ignoring signaling message", "type", msg.Type)
		}
	}
}

// handleRoomOpened extracts the current members of the joined room.
func (h *Handler) handleRoomOpened(msg *Message) {
	var payload RoomOpenedPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			deliver(h, h.Error, "Failed to parse room payload")
			return
		}
	}
	deliver(h, h.RoomOpened, &RoomOpened{Room: msg.Room, Peers: payload.Peers})
}

// handleSignal parses the WebRTC signaling payload and sends it.
func (h *Handler) handleSignal(msg *Message) {
	var payload SignalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("dropping malformed signal", "src", msg.Src, "error", err)
		return
	}
	deliver(h, h.Signal, &Signal{From: msg.Src, Payload: payload})
}

// handleError parses the error message and sends it through the Error channel.
func (h *Handler) handleError(msg *Message) {
	var errPayload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil || errPayload.Error == "" {
		deliver(h, h.Error, "Unknown error from server")
		return
	}
	deliver(h, h.Error, errPayload.Error)
}

// deliver blocks until v is consumed or the client is closed.
func deliver[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.client.Done():
	}
}

func (h *Handler) close() {
	close(h.Open)
	close(h.RoomOpened)
	close(h.PeerJoined)
	close(h.PeerLeft)
	close(h.Signal)
	close(h.Error)
}
