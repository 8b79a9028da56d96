package room

// ProtocolVersion tags every server-originated frame.
const ProtocolVersion = 1

// Cursor is a participant's pointer position on a logical surface.
// It is replaced wholesale on every update.
type Cursor struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	SurfaceType string  `json:"surfaceType"`
	SurfaceID   string  `json:"surfaceId"`
}

// SharedApp describes an application a participant is sharing.
// Replaced wholesale, never partially patched.
type SharedApp struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Player is the authoritative per-room record for a joined identity.
// It outlives individual connections; Connected flips false during the
// reconnection grace window.
type Player struct {
	Identity      string     `json:"identity"`
	Name          string     `json:"name"`
	Color         int        `json:"color"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Dir           float64    `json:"dir"`
	Speed         float64    `json:"speed"`
	AudioInputOn  bool       `json:"audioInputOn"`
	VideoInputOn  bool       `json:"videoInputOn"`
	ScreenShareOn bool       `json:"screenShareOn"`
	WhisperingTo  string     `json:"whisperingTo,omitempty"`
	SharedApp     *SharedApp `json:"sharedApp,omitempty"`
	Cursor        *Cursor    `json:"cursor,omitempty"`
	Connected     bool       `json:"connected"`
}

// WorldObject is a static decorative marker seeded at room creation.
type WorldObject struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// colorPalette is the fixed set of display colors players are drawn
// from. Collisions between players are allowed.
var colorPalette = []int{
	0xe6194b, 0x3cb44b, 0xffe119, 0x4363d8, 0xf58231,
	0x911eb4, 0x46f0f0, 0xf032e6, 0xbcf60c, 0xfabebe,
	0x008080, 0xe6beff, 0x9a6324, 0xfffac8, 0x800000,
	0xaaffc3, 0x808000, 0xffd8b1, 0x000075, 0x808080,
}

// generateWorldObjects seeds the static dot grid. The set is immutable
// for the life of the room.
func generateWorldObjects(cells int, cellSize float64) []WorldObject {
	objects := make([]WorldObject, 0, cells*cells)
	for i := 0; i < cells; i++ {
		for j := 0; j < cells; j++ {
			objects = append(objects, WorldObject{
				Type: "dot",
				X:    float64(i) * cellSize,
				Y:    float64(j) * cellSize,
			})
		}
	}
	return objects
}
