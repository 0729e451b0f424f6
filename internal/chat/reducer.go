package chat

import "github.com/samber/lo"

// Reduce applies ev to s and returns the new state. s is never modified.
// Updates are idempotent: duplicate or reordered events converge on a
// single entry per peer.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case PeerLeft:
		return removeUser(s, ev.PeerID)
	case StreamReceived:
		return upsertStream(s, ev.PeerID, ev.Stream)
	case DataReceived:
		return applyData(s, ev.Src, ev.Payload)
	case MessageSent:
		return appendMessage(s, ev.Sender, ev.Text)
	default:
		return s
	}
}

func applyData(s State, src string, p Payload) State {
	switch p.Type {
	case NoticeName:
		return upsertName(s, src, p.Name)
	case MessageAction:
		return appendMessage(s, src, p.Message)
	default:
		return s
	}
}

func removeUser(s State, id string) State {
	if _, idx, ok := lo.FindIndexOf(s.Users, func(u User) bool { return u.ID == id }); ok {
		next := s.Clone()
		next.Users = append(next.Users[:idx], next.Users[idx+1:]...)
		return next
	}
	return s
}

func upsertStream(s State, id string, stream Stream) State {
	if id == "" || id == s.Self {
		return s
	}
	next := s.Clone()
	if _, idx, ok := lo.FindIndexOf(next.Users, func(u User) bool { return u.ID == id }); ok {
		next.Users[idx].Stream = stream
		return next
	}
	next.Users = append(next.Users, User{ID: id, Stream: stream})
	return next
}

// upsertName also renames a known peer so a later notice is not lost.
func upsertName(s State, id, name string) State {
	if id == "" || id == s.Self {
		return s
	}
	next := s.Clone()
	if _, idx, ok := lo.FindIndexOf(next.Users, func(u User) bool { return u.ID == id }); ok {
		next.Users[idx].Name = name
		return next
	}
	next.Users = append(next.Users, User{ID: id, Name: name})
	return next
}

func appendMessage(s State, sender, text string) State {
	next := s.Clone()
	next.Messages = append(next.Messages, Message{Sender: sender, Text: text})
	return next
}
