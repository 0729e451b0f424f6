package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("mesh closed")
	ErrSignaling     = errors.New("signaling server error")
	ErrTimeout       = errors.New("timeout")
	ErrUnexpectedSDP = errors.New("unexpected signal type")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrChannelClosed = errors.New("data channel closed")
	ErrOutboxFull    = errors.New("data channel not open and too much data is waiting")
)

// Error records the mesh operation that failed.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
