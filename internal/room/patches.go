package room

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	// PatchPlayerJoined carries the full record for a new player.
	PatchPlayerJoined PatchKind = "player_joined"
	// PatchPlayerRemoved signals that a player left the room for good.
	PatchPlayerRemoved PatchKind = "player_removed"
	// PatchPlayerPos updates a player's position.
	PatchPlayerPos PatchKind = "player_pos"
	// PatchPlayerDir updates a player's heading.
	PatchPlayerDir PatchKind = "player_dir"
	// PatchPlayerSpeed updates a player's scalar speed.
	PatchPlayerSpeed PatchKind = "player_speed"
	// PatchPlayerAttrs carries the applied subset of an attribute merge.
	PatchPlayerAttrs PatchKind = "player_attrs"
	// PatchPlayerCursor replaces or clears a player's cursor.
	PatchPlayerCursor PatchKind = "player_cursor"
	// PatchPlayerSharedApp replaces or clears a player's shared app.
	PatchPlayerSharedApp PatchKind = "player_shared_app"
	// PatchPlayerConnected flips a player's connected flag.
	PatchPlayerConnected PatchKind = "player_connected"
)

// Patch is one diff entry observable by every session in the room.
type Patch struct {
	Kind     PatchKind `json:"kind"`
	Identity string    `json:"identity"`
	Payload  any       `json:"payload,omitempty"`
}

// PositionPayload captures the coordinates for a position patch.
type PositionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DirectionPayload captures the heading for a direction patch.
type DirectionPayload struct {
	Dir float64 `json:"dir"`
}

// SpeedPayload captures the scalar speed for a speed patch.
type SpeedPayload struct {
	Speed float64 `json:"speed"`
}

// CursorPayload captures the replacement cursor; nil clears it.
type CursorPayload struct {
	Cursor *Cursor `json:"cursor"`
}

// SharedAppPayload captures the replacement shared app; nil clears it.
type SharedAppPayload struct {
	SharedApp *SharedApp `json:"sharedApp"`
}

// ConnectedPayload captures the connected flag for a presence patch.
type ConnectedPayload struct {
	Connected bool `json:"connected"`
}

// Attributes is the allow-listed set of externally settable player
// fields. Unknown keys in client payloads never reach this struct.
type Attributes struct {
	Name          *string `json:"name,omitempty"`
	Color         *int    `json:"color,omitempty"`
	AudioInputOn  *bool   `json:"audioInputOn,omitempty"`
	VideoInputOn  *bool   `json:"videoInputOn,omitempty"`
	ScreenShareOn *bool   `json:"screenShareOn,omitempty"`
	WhisperingTo  *string `json:"whisperingTo,omitempty"`
}

// Empty reports whether no allow-listed field is set.
func (a Attributes) Empty() bool {
	return a.Name == nil && a.Color == nil && a.AudioInputOn == nil &&
		a.VideoInputOn == nil && a.ScreenShareOn == nil && a.WhisperingTo == nil
}
