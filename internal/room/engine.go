package room

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const positionEpsilon = 1e-6

// JoinAttributes are the caller-supplied fields of a new player.
type JoinAttributes struct {
	Name          string
	AudioInputOn  bool
	VideoInputOn  bool
	ScreenShareOn bool
}

// PresenceSample is a connected player's position at snapshot time.
type PresenceSample struct {
	Identity string
	X        float64
	Y        float64
}

// Engine is the single writer for one room's authoritative state.
// Every mutation runs to completion under the engine mutex before the
// next starts, so concurrent submissions never interleave partially.
// Successful mutations append a Patch; the room drains and broadcasts
// the buffer after each mutation batch.
type Engine struct {
	mu           sync.Mutex
	players      map[string]*Player
	worldObjects []WorldObject
	patches      []Patch
	rng          *rand.Rand
	extent       float64
}

// NewEngine builds an engine with a seeded world-object grid and the
// given spawnable extent.
func NewEngine(gridCells int, cellSize float64) *Engine {
	return &Engine{
		players:      make(map[string]*Player),
		worldObjects: generateWorldObjects(gridCells, cellSize),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		extent:       float64(gridCells) * cellSize,
	}
}

// CreatePlayer inserts a new player with a randomized spawn position
// and a color sampled from the fixed palette.
func (e *Engine) CreatePlayer(identity string, attrs JoinAttributes) (Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.players[identity]; ok {
		return Player{}, ErrDuplicateIdentity
	}

	player := &Player{
		Identity:      identity,
		Name:          attrs.Name,
		Color:         colorPalette[e.rng.Intn(len(colorPalette))],
		X:             math.Floor(e.rng.Float64() * e.extent),
		Y:             math.Floor(e.rng.Float64() * e.extent),
		AudioInputOn:  attrs.AudioInputOn,
		VideoInputOn:  attrs.VideoInputOn,
		ScreenShareOn: attrs.ScreenShareOn,
		Connected:     true,
	}
	e.players[identity] = player

	snapshot := *player
	e.patches = append(e.patches, Patch{Kind: PatchPlayerJoined, Identity: identity, Payload: snapshot})
	return snapshot, nil
}

// RemovePlayer deletes the player and any cursor or shared-app state
// referencing it. Removing an absent identity is a no-op.
func (e *Engine) RemovePlayer(identity string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(identity)
}

// RemoveIfDisconnected deletes the player only if it is still in the
// disconnected substate. The grace-period expiry path uses this so a
// reconnect applied first always wins the race.
func (e *Engine) RemoveIfDisconnected(identity string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok || player.Connected {
		return false
	}
	return e.removeLocked(identity)
}

func (e *Engine) removeLocked(identity string) bool {
	if _, ok := e.players[identity]; !ok {
		return false
	}
	delete(e.players, identity)
	e.patches = append(e.patches, Patch{Kind: PatchPlayerRemoved, Identity: identity})
	return true
}

// SetPosition updates a player's position and records a patch.
func (e *Engine) SetPosition(identity string, x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if math.Abs(player.X-x) <= positionEpsilon && math.Abs(player.Y-y) <= positionEpsilon {
		return nil
	}

	player.X = x
	player.Y = y
	e.patches = append(e.patches, Patch{Kind: PatchPlayerPos, Identity: identity, Payload: PositionPayload{X: x, Y: y}})
	return nil
}

// SetDirection updates a player's heading and records a patch.
func (e *Engine) SetDirection(identity string, dir float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if player.Dir == dir {
		return nil
	}

	player.Dir = dir
	e.patches = append(e.patches, Patch{Kind: PatchPlayerDir, Identity: identity, Payload: DirectionPayload{Dir: dir}})
	return nil
}

// SetSpeed updates a player's scalar speed and records a patch.
func (e *Engine) SetSpeed(identity string, speed float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if player.Speed == speed {
		return nil
	}

	player.Speed = speed
	e.patches = append(e.patches, Patch{Kind: PatchPlayerSpeed, Identity: identity, Payload: SpeedPayload{Speed: speed}})
	return nil
}

// MergeAttributes applies the allow-listed attribute subset. Fields
// outside Attributes never reach the player record.
func (e *Engine) MergeAttributes(identity string, attrs Attributes) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if attrs.Empty() {
		return nil
	}

	if attrs.Name != nil {
		player.Name = *attrs.Name
	}
	if attrs.Color != nil {
		player.Color = *attrs.Color
	}
	if attrs.AudioInputOn != nil {
		player.AudioInputOn = *attrs.AudioInputOn
	}
	if attrs.VideoInputOn != nil {
		player.VideoInputOn = *attrs.VideoInputOn
	}
	if attrs.ScreenShareOn != nil {
		player.ScreenShareOn = *attrs.ScreenShareOn
	}
	if attrs.WhisperingTo != nil {
		player.WhisperingTo = *attrs.WhisperingTo
	}

	e.patches = append(e.patches, Patch{Kind: PatchPlayerAttrs, Identity: identity, Payload: attrs})
	return nil
}

// SetCursor replaces or clears the player's cursor wholesale.
func (e *Engine) SetCursor(identity string, cursor *Cursor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if cursor == nil {
		player.Cursor = nil
	} else {
		copied := *cursor
		player.Cursor = &copied
	}
	e.patches = append(e.patches, Patch{Kind: PatchPlayerCursor, Identity: identity, Payload: CursorPayload{Cursor: player.Cursor}})
	return nil
}

// SetSharedApp replaces or clears the player's shared app wholesale.
func (e *Engine) SetSharedApp(identity string, app *SharedApp) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if app == nil {
		player.SharedApp = nil
	} else {
		copied := *app
		player.SharedApp = &copied
	}
	e.patches = append(e.patches, Patch{Kind: PatchPlayerSharedApp, Identity: identity, Payload: SharedAppPayload{SharedApp: player.SharedApp}})
	return nil
}

// SetConnected flips the player's connected flag and records a patch.
func (e *Engine) SetConnected(identity string, connected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}

	if player.Connected == connected {
		return nil
	}

	player.Connected = connected
	e.patches = append(e.patches, Patch{Kind: PatchPlayerConnected, Identity: identity, Payload: ConnectedPayload{Connected: connected}})
	return nil
}

// Player returns a copy of the record for identity.
func (e *Engine) Player(identity string) (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[identity]
	if !ok {
		return Player{}, false
	}
	return *player, true
}

// Snapshot copies every player, sorted by identity for stable output.
func (e *Engine) Snapshot() []Player {
	e.mu.Lock()
	defer e.mu.Unlock()

	players := make([]Player, 0, len(e.players))
	for _, player := range e.players {
		players = append(players, *player)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Identity < players[j].Identity })
	return players
}

// WorldObjects returns the immutable seeded object set.
func (e *Engine) WorldObjects() []WorldObject {
	return e.worldObjects
}

// ConnectedSamples snapshots the positions of connected players with a
// non-empty identity, the eligible set for proximity rules.
func (e *Engine) ConnectedSamples() []PresenceSample {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples := make([]PresenceSample, 0, len(e.players))
	for identity, player := range e.players {
		if identity == "" || !player.Connected {
			continue
		}
		samples = append(samples, PresenceSample{Identity: identity, X: player.X, Y: player.Y})
	}
	return samples
}

// PlayerCount reports how many player records exist, connected or not.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.players)
}

// ConnectedCount reports how many players are currently connected.
func (e *Engine) ConnectedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, player := range e.players {
		if player.Connected {
			count++
		}
	}
	return count
}

// DrainPatches returns the buffered patches and resets the buffer.
func (e *Engine) DrainPatches() []Patch {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.patches) == 0 {
		return nil
	}
	drained := e.patches
	e.patches = nil
	return drained
}
