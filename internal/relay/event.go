// Package relay implements the live highlight propagation channel: a thin
// websocket relay that forwards newly created highlights between connected
// sessions, and the client used to speak to it. The relay stores nothing,
// validates nothing, and guarantees no ordering or delivery; durability is
// the sync coordinator's job.
package relay

import (
	"encoding/json"
	"fmt"

	"sharedscriptures/api/internal/highlight"
)

const (
	EventAuth      = "auth"
	EventHighlight = "highlight"
)

// Event is the wire envelope. An auth event carries only UserID and is sent
// once per connection; a highlight event carries the full highlight value.
// The highlight payload never includes a persisted id - recipients must not
// assume persisted identity.
type Event struct {
	Type      string               `json:"type"`
	UserID    string               `json:"userId,omitempty"`
	Highlight *highlight.Highlight `json:"highlight,omitempty"`
}

func authEvent(userID string) ([]byte, error) {
	return json.Marshal(Event{Type: EventAuth, UserID: userID})
}

func highlightEvent(h highlight.Highlight) ([]byte, error) {
	h.ID = ""
	return json.Marshal(Event{Type: EventHighlight, Highlight: &h})
}

func parseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	return ev, nil
}
