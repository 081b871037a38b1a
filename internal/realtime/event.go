// Package realtime pushes change notifications to connected players over
// websockets, optionally fanned out across instances through Redis.
package realtime

import (
	"encoding/json"
	"time"
)

const (
	TypeWelcome         = "welcome"
	TypeManifestChanged = "manifest.changed"
)

// Event is the JSON envelope sent to every websocket client.
type Event struct {
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	Src    string    `json:"src,omitempty"`
	At     time.Time `json:"at"`
}

func ManifestChanged(reason, src string) Event {
	return Event{Type: TypeManifestChanged, Reason: reason, Src: src, At: time.Now().UTC()}
}

func (e Event) Encode() ([]byte, error) { return json.Marshal(e) }
