package overlay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the interaction state of a region
type State int

const (
	Display State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Display:
		return "display"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalJSON encodes the state by name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EventKind identifies an interaction event
type EventKind int

const (
	Activate EventKind = iota
	Input
	Confirm
	Cancel
	Blur
)

var eventNames = map[EventKind]string{
	Activate: "activate",
	Input:    "input",
	Confirm:  "confirm",
	Cancel:   "cancel",
	Blur:     "blur",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind parses an event name such as "activate" or "confirm"
func ParseEventKind(s string) (EventKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range eventNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", s)
}

// Event is one user interaction with the overlay.
// Index is only read by Activate, Text only by Input.
type Event struct {
	Kind  EventKind
	Index int
	Text  string
}
