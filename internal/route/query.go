package route

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RoomParam is the query key carrying the room name.
const RoomParam = "room"

// ErrNoRoom is returned when neither the stored state nor the link names a room.
var ErrNoRoom = errors.New("no room name")

// Param is a single query value. Defined is false for a key written without "=".
type Param struct {
	Value   string
	Defined bool
}

// Query maps each key of a raw query string to its value.
type Query map[string]Param

// ParseQuery splits a raw query string (without the leading "?") into its
// key/value pairs. Nothing is unescaped.
func ParseQuery(query string) Query {
	params := make(Query)
	for _, pair := range strings.Split(query, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) < 2 {
			params[parts[0]] = Param{}
			continue
		}
		params[parts[0]] = Param{Value: parts[1], Defined: true}
	}
	return params
}

// Get returns the value for key and whether it was defined.
func (q Query) Get(key string) (string, bool) {
	p, ok := q[key]
	if !ok || !p.Defined {
		return "", false
	}
	return p.Value, true
}

// Has reports whether key appears in the query at all.
func (q Query) Has(key string) bool {
	_, ok := q[key]
	return ok
}

// Action tells the caller what to do with a resolved room link.
type Action int

const (
	// ActionRedirect sends the user back to the site root.
	ActionRedirect Action = iota
	// ActionReplace rewrites the link so it carries ?room=<name>.
	ActionReplace
	// ActionPersist stores the room name into application state.
	ActionPersist
)

func (a Action) String() string {
	switch a {
	case ActionRedirect:
		return "redirect"
	case ActionReplace:
		return "replace"
	case ActionPersist:
		return "persist"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of Resolve.
type Decision struct {
	Action Action
	Room   string
	URL    string
}

// Resolve picks the room name from stored state or, failing that, from the
// room parameter of rawURL, and decides how the link must be normalised.
func Resolve(stateRoom, rawURL string) (Decision, error) {
	origin, query, err := split(rawURL)
	if err != nil {
		return Decision{}, err
	}

	params := ParseQuery(query)
	room := stateRoom
	if room == "" {
		room, _ = params.Get(RoomParam)
	}

	switch {
	case room == "":
		return Decision{Action: ActionRedirect, URL: origin}, nil
	case !params.Has(RoomParam):
		return Decision{Action: ActionReplace, Room: room, URL: Link(origin, room)}, nil
	default:
		return Decision{Action: ActionPersist, Room: room, URL: rawURL}, nil
	}
}

// Link builds the canonical chat link for room.
func Link(origin, room string) string {
	return fmt.Sprintf("%s/chat?%s=%s", strings.TrimSuffix(origin, "/"), RoomParam, room)
}

// split returns the origin (scheme://host) and the raw query of rawURL.
// A bare room name is treated as a link without a query.
func split(rawURL string) (string, string, error) {
	if rawURL == "" {
		return "", "", nil
	}
	if !strings.Contains(rawURL, "://") {
		if i := strings.Index(rawURL, "?"); i >= 0 {
			return "", rawURL[i+1:], nil
		}
		return "", "", nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid room link: %w", err)
	}
	return u.Scheme + "://" + u.Host, u.RawQuery, nil
}
