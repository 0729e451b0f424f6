package chat

// Stream is a live audio stream received from a peer.
type Stream interface {
	ID() string
}

// User is a connected remote peer.
type User struct {
	ID     string
	Name   string
	Stream Stream
}

// DisplayName is the name shown on the peer's tile.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Message is one line of chat history.
type Message struct {
	Sender string
	Text   string
}

// State is everything the presentation needs about a room.
// Self is the local peer id and never appears in Users.
type State struct {
	Self     string
	Users    []User
	Messages []Message
}

// NewState returns the empty state for the local peer self.
func NewState(self string) State {
	return State{Self: self}
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := State{Self: s.Self}
	if s.Users != nil {
		c.Users = append([]User(nil), s.Users...)
	}
	if s.Messages != nil {
		c.Messages = append([]Message(nil), s.Messages...)
	}
	return c
}

// User looks up the entry for id.
func (s State) User(id string) (User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// NameOf returns the display name for a chat sender.
func (s State) NameOf(id string) string {
	if u, ok := s.User(id); ok {
		return u.DisplayName()
	}
	return id
}
