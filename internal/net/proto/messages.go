// Package proto defines the client↔room wire messages and validates
// inbound payloads before they reach the state engine.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Xyzrr/virtual-office-server/internal/room"
)

// Inbound message kinds.
const (
	MsgJoin         = "join"
	MsgLeave        = "leave"
	MsgSetPosition  = "setPosition"
	MsgSetDirection = "setDirection"
	MsgSetSpeed     = "setSpeed"
	MsgUpdatePlayer = "updatePlayer"
	MsgSetCursor    = "setCursor"
	MsgSetSharedApp = "setSharedApp"
)

// Broadcast-only kinds: relayed verbatim with a server-stamped sender,
// never persisted in room state.
const (
	MsgChat            = "chat"
	MsgCursorMouseDown = "cursorMouseDown"
	MsgCommand         = "command"
)

// BroadcastOnly reports whether kind is relayed rather than applied.
func BroadcastOnly(kind string) bool {
	switch kind {
	case MsgChat, MsgCursorMouseDown, MsgCommand:
		return true
	default:
		return false
	}
}

// ErrMalformed rejects a payload at the router boundary; the room is
// unaffected.
var ErrMalformed = errors.New("malformed payload")

// ClientMessage is the envelope for every inbound frame. Pointer
// fields distinguish absent from zero.
type ClientMessage struct {
	Ver  int    `json:"ver,omitempty"`
	Type string `json:"type"`

	// join
	Identity      string `json:"identity,omitempty"`
	Name          string `json:"name,omitempty"`
	AudioInputOn  bool   `json:"audioInputOn,omitempty"`
	VideoInputOn  bool   `json:"videoInputOn,omitempty"`
	ScreenShareOn bool   `json:"screenShareOn,omitempty"`

	// movement
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Dir   *float64 `json:"dir,omitempty"`
	Speed *float64 `json:"speed,omitempty"`

	// updatePlayer / setCursor / setSharedApp
	Attributes json.RawMessage `json:"attributes,omitempty"`
	Cursor     json.RawMessage `json:"cursor,omitempty"`
	App        json.RawMessage `json:"app,omitempty"`

	// broadcast-only kinds
	Data json.RawMessage `json:"data,omitempty"`
}

// Position extracts and validates a setPosition payload.
func (m *ClientMessage) Position() (float64, float64, error) {
	if m.X == nil || m.Y == nil {
		return 0, 0, fmt.Errorf("%w: setPosition requires x and y", ErrMalformed)
	}
	if !finite(*m.X) || !finite(*m.Y) {
		return 0, 0, fmt.Errorf("%w: non-finite position", ErrMalformed)
	}
	return *m.X, *m.Y, nil
}

// Direction extracts and validates a setDirection payload.
func (m *ClientMessage) Direction() (float64, error) {
	if m.Dir == nil {
		return 0, fmt.Errorf("%w: setDirection requires dir", ErrMalformed)
	}
	if !finite(*m.Dir) {
		return 0, fmt.Errorf("%w: non-finite direction", ErrMalformed)
	}
	return *m.Dir, nil
}

// SpeedValue extracts and validates a setSpeed payload.
func (m *ClientMessage) SpeedValue() (float64, error) {
	if m.Speed == nil {
		return 0, fmt.Errorf("%w: setSpeed requires speed", ErrMalformed)
	}
	if !finite(*m.Speed) {
		return 0, fmt.Errorf("%w: non-finite speed", ErrMalformed)
	}
	return *m.Speed, nil
}

// ParseAttributes decodes an updatePlayer payload into the allow-listed
// attribute set. Unknown keys are dropped silently; a payload that
// decodes but sets nothing is still valid.
func (m *ClientMessage) ParseAttributes() (room.Attributes, error) {
	if len(m.Attributes) == 0 {
		return room.Attributes{}, fmt.Errorf("%w: updatePlayer requires attributes", ErrMalformed)
	}
	var attrs room.Attributes
	if err := json.Unmarshal(m.Attributes, &attrs); err != nil {
		return room.Attributes{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return attrs, nil
}

// ParseCursor decodes a setCursor payload. A JSON null or absent field
// clears the cursor.
func (m *ClientMessage) ParseCursor() (*room.Cursor, error) {
	if len(m.Cursor) == 0 || string(m.Cursor) == "null" {
		return nil, nil
	}
	var cursor room.Cursor
	if err := json.Unmarshal(m.Cursor, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !finite(cursor.X) || !finite(cursor.Y) {
		return nil, fmt.Errorf("%w: non-finite cursor position", ErrMalformed)
	}
	return &cursor, nil
}

// ParseSharedApp decodes a setSharedApp payload. A JSON null or absent
// field clears the shared app.
func (m *ClientMessage) ParseSharedApp() (*room.SharedApp, error) {
	if len(m.App) == 0 || string(m.App) == "null" {
		return nil, nil
	}
	var app room.SharedApp
	if err := json.Unmarshal(m.App, &app); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &app, nil
}

// ErrorMessage reports a rejected operation back to the sender only.
type ErrorMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
