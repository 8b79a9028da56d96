package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Xyzrr/virtual-office-server/internal/media"
	"github.com/Xyzrr/virtual-office-server/internal/metrics"
	"github.com/Xyzrr/virtual-office-server/internal/proximity"
)

const writeWait = 10 * time.Second

// ErrRoomClosed is returned for operations against a disposed room.
var ErrRoomClosed = errors.New("room closed")

// ErrInvalidIdentity is returned when a join carries an empty identity.
var ErrInvalidIdentity = errors.New("invalid identity")

// Options configures one room instance.
type Options struct {
	ID    string
	Key   string
	Label string

	GracePeriod        time.Duration
	ProximityPeriod    time.Duration
	ProximityThreshold float64
	GridCells          int
	CellSize           float64

	Publisher    media.Publisher
	MediaTimeout time.Duration
	Logger       *zap.SugaredLogger

	// onDispose is invoked exactly once after the room has shut down.
	onDispose func(*Room)
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type patchMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	Patches    []Patch `json:"patches"`
	ServerTime int64   `json:"serverTime"`
}

type relayMessage struct {
	Ver        int             `json:"ver"`
	Type       string          `json:"type"`
	From       string          `json:"from"`
	Data       json.RawMessage `json:"data,omitempty"`
	ServerTime int64           `json:"serverTime"`
}

type welcomeMessage struct {
	Ver          int           `json:"ver"`
	Type         string        `json:"type"`
	Identity     string        `json:"identity"`
	Player       Player        `json:"player"`
	Players      []Player      `json:"players"`
	WorldObjects []WorldObject `json:"worldObjects"`
	ServerTime   int64         `json:"serverTime"`
}

// Room is one isolated shared space. All state mutations funnel
// through its engine's single-writer boundary; the proximity tick and
// grace timers are owned by the room and stop with it.
type Room struct {
	ID    string
	Key   string
	Label string

	engine     *Engine
	sessions   *SessionRegistry
	reconnects *reconnectTracker
	adapter    *media.Adapter
	logger     *zap.SugaredLogger

	threshold float64

	mu                sync.Mutex
	subscribers       map[string]*subscriber
	sessionByIdentity map[string]string
	disposed          bool

	stop      chan struct{}
	onDispose func(*Room)
}

// New builds a room and starts its proximity tick loop.
func New(opts Options) *Room {
	logger := opts.Logger.Named("room").With("room", opts.ID)
	r := &Room{
		ID:                opts.ID,
		Key:               opts.Key,
		Label:             opts.Label,
		engine:            NewEngine(opts.GridCells, opts.CellSize),
		sessions:          NewSessionRegistry(),
		adapter:           media.NewAdapter(opts.Publisher, opts.MediaTimeout, logger),
		logger:            logger,
		threshold:         opts.ProximityThreshold,
		subscribers:       make(map[string]*subscriber),
		sessionByIdentity: make(map[string]string),
		stop:              make(chan struct{}),
		onDispose:         opts.onDispose,
	}
	r.reconnects = newReconnectTracker(opts.GracePeriod, r.handleGraceExpired)

	metrics.RoomsActive.Inc()
	go r.run(opts.ProximityPeriod)
	return r
}

// JoinSnapshot is what a freshly joined session sees.
type JoinSnapshot struct {
	Player       Player
	Players      []Player
	WorldObjects []WorldObject
}

// Join binds the session to identity and creates or revives the player
// record. A join over a disconnected player is a reconnection: the
// record is retained and its grace timer cancelled. A join over a
// connected player fails with ErrDuplicateIdentity.
func (r *Room) Join(sessionID, identity string, attrs JoinAttributes) (JoinSnapshot, error) {
	if identity == "" {
		return JoinSnapshot{}, r.failJoin(ErrInvalidIdentity)
	}

	// The disposed check and the player mutation sit under one lock so
	// a concurrent dispose cannot land between them.
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return JoinSnapshot{}, ErrRoomClosed
	}

	var player Player
	if existing, ok := r.engine.Player(identity); ok {
		if existing.Connected {
			r.mu.Unlock()
			return JoinSnapshot{}, r.failJoin(ErrDuplicateIdentity)
		}
		r.reconnects.Cancel(identity)
		if err := r.engine.SetConnected(identity, true); err != nil {
			r.mu.Unlock()
			return JoinSnapshot{}, r.failJoin(err)
		}
		player, _ = r.engine.Player(identity)
		r.logger.Infow("player reconnected", "identity", identity)
	} else {
		created, err := r.engine.CreatePlayer(identity, attrs)
		if err != nil {
			r.mu.Unlock()
			return JoinSnapshot{}, r.failJoin(err)
		}
		player = created
		r.logger.Infow("player joined", "identity", identity)
	}

	if err := r.sessions.Bind(sessionID, identity); err != nil {
		r.mu.Unlock()
		return JoinSnapshot{}, err
	}

	r.sessionByIdentity[identity] = sessionID
	r.mu.Unlock()

	metrics.ConnectedPlayers.WithLabelValues(r.ID).Set(float64(r.engine.ConnectedCount()))
	r.flushPatches()

	return JoinSnapshot{
		Player:       player,
		Players:      r.engine.Snapshot(),
		WorldObjects: r.engine.WorldObjects(),
	}, nil
}

// failJoin disposes a room that a failed join leaves empty, so a
// create-on-join room whose first join is refused does not leak its
// ticker. Occupied rooms are untouched.
func (r *Room) failJoin(err error) error {
	r.maybeDispose()
	return err
}

// Attach registers the session's connection for broadcasts and writes
// the welcome frame. The snapshot and the registration happen under one
// critical section, and the subscriber's write lock is held until the
// welcome is out, so every patch broadcast either precedes the snapshot
// or is delivered after the welcome. All frames to the connection go
// through the subscriber from here on.
func (r *Room) Attach(sessionID string, conn *websocket.Conn) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}

	sub := &subscriber{conn: conn}
	sub.mu.Lock()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		sub.mu.Unlock()
		return ErrRoomClosed
	}
	player, ok := r.engine.Player(identity)
	if !ok {
		r.mu.Unlock()
		sub.mu.Unlock()
		return ErrUnknownPlayer
	}
	players := r.engine.Snapshot()
	r.subscribers[sessionID] = sub
	r.mu.Unlock()

	msg := welcomeMessage{
		Ver:          ProtocolVersion,
		Type:         "welcome",
		Identity:     identity,
		Player:       player,
		Players:      players,
		WorldObjects: r.engine.WorldObjects(),
		ServerTime:   time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		sub.mu.Unlock()
		return err
	}
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = sub.conn.WriteMessage(websocket.TextMessage, data)
	sub.mu.Unlock()
	return err
}

// Send writes one frame to a single session through its subscriber.
func (r *Room) Send(sessionID string, data []byte) error {
	r.mu.Lock()
	sub, ok := r.subscribers[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	return sub.write(data)
}

// Leave is the consensual exit: no grace period, immediate removal.
func (r *Room) Leave(sessionID string) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}

	r.sessions.Unbind(sessionID)
	r.dropSubscriber(sessionID, identity)
	r.reconnects.Cancel(identity)
	if r.engine.RemovePlayer(identity) {
		r.logger.Infow("player left", "identity", identity)
	}
	r.adapter.Retire(identity)

	metrics.ConnectedPlayers.WithLabelValues(r.ID).Set(float64(r.engine.ConnectedCount()))
	r.flushPatches()
	r.maybeDispose()
	return nil
}

// HandleDisconnect is the ungraceful path: the player record is kept,
// connected flips false, and the grace timer starts.
func (r *Room) HandleDisconnect(sessionID string) {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		// Session dropped before a valid join; nothing to keep.
		r.dropSubscriber(sessionID, "")
		return
	}

	r.sessions.Unbind(sessionID)
	r.dropSubscriber(sessionID, identity)

	if err := r.engine.SetConnected(identity, false); err != nil {
		return
	}
	r.reconnects.Start(identity)
	r.logger.Infow("player disconnected, grace period started", "identity", identity)

	metrics.ConnectedPlayers.WithLabelValues(r.ID).Set(float64(r.engine.ConnectedCount()))
	r.flushPatches()
}

// handleGraceExpired runs when a disconnected player's deadline
// elapses. The removal re-checks the connected flag through the
// engine, so a reconnect that was applied first wins.
func (r *Room) handleGraceExpired(identity string) {
	if !r.engine.RemoveIfDisconnected(identity) {
		return
	}
	r.logger.Infow("grace period expired, player removed", "identity", identity)
	r.adapter.Retire(identity)

	metrics.ConnectedPlayers.WithLabelValues(r.ID).Set(float64(r.engine.ConnectedCount()))
	r.flushPatches()
	r.maybeDispose()
}

// SetPosition applies a position update for the session's player.
func (r *Room) SetPosition(sessionID string, x, y float64) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.SetPosition(identity, x, y); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// SetDirection applies a heading update for the session's player.
func (r *Room) SetDirection(sessionID string, dir float64) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.SetDirection(identity, dir); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// SetSpeed applies a speed update for the session's player.
func (r *Room) SetSpeed(sessionID string, speed float64) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.SetSpeed(identity, speed); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// MergeAttributes applies an allow-listed attribute merge for the
// session's player.
func (r *Room) MergeAttributes(sessionID string, attrs Attributes) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.MergeAttributes(identity, attrs); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// SetCursor replaces or clears the session player's cursor.
func (r *Room) SetCursor(sessionID string, cursor *Cursor) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.SetCursor(identity, cursor); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// SetSharedApp replaces or clears the session player's shared app.
func (r *Room) SetSharedApp(sessionID string, app *SharedApp) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}
	if err := r.engine.SetSharedApp(identity, app); err != nil {
		return err
	}
	r.flushPatches()
	return nil
}

// Relay stamps the sender identity onto an opaque payload and fans it
// out to every session. Relayed messages are never persisted.
func (r *Room) Relay(sessionID, kind string, data json.RawMessage) error {
	identity, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return err
	}

	msg := relayMessage{
		Ver:        ProtocolVersion,
		Type:       kind,
		From:       identity,
		Data:       data,
		ServerTime: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.broadcast(payload)
	return nil
}

// Snapshot returns a copy of every player record.
func (r *Room) Snapshot() []Player {
	return r.engine.Snapshot()
}

// Diagnostics summarizes the room for the diagnostics endpoint.
type Diagnostics struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Label     string `json:"label"`
	Players   int    `json:"players"`
	Connected int    `json:"connected"`
}

// Diagnostics reports the room's current occupancy.
func (r *Room) Diagnostics() Diagnostics {
	return Diagnostics{
		ID:        r.ID,
		Key:       r.Key,
		Label:     r.Label,
		Players:   r.engine.PlayerCount(),
		Connected: r.engine.ConnectedCount(),
	}
}

func (r *Room) dropSubscriber(sessionID, identity string) {
	r.mu.Lock()
	sub, ok := r.subscribers[sessionID]
	if ok {
		delete(r.subscribers, sessionID)
	}
	if identity != "" && r.sessionByIdentity[identity] == sessionID {
		delete(r.sessionByIdentity, identity)
	}
	r.mu.Unlock()

	if ok {
		sub.conn.Close()
	}
}

// flushPatches drains the engine's patch buffer and broadcasts it in a
// single frame. Serialization happens once per flush.
func (r *Room) flushPatches() {
	patches := r.engine.DrainPatches()
	if len(patches) == 0 {
		return
	}

	msg := patchMessage{
		Ver:        ProtocolVersion,
		Type:       "patch",
		Patches:    patches,
		ServerTime: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Errorw("failed to marshal patch message", "error", err)
		return
	}
	r.broadcast(data)
}

func (r *Room) broadcast(data []byte) {
	r.mu.Lock()
	subs := make(map[string]*subscriber, len(r.subscribers))
	for sessionID, sub := range r.subscribers {
		subs[sessionID] = sub
	}
	r.mu.Unlock()

	var failed []string
	for sessionID, sub := range subs {
		if err := sub.write(data); err != nil {
			r.logger.Warnw("broadcast write failed", "session", sessionID, "error", err)
			failed = append(failed, sessionID)
		}
	}
	for _, sessionID := range failed {
		go r.HandleDisconnect(sessionID)
	}
}

func (r *Room) run(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.proximityTick()
		}
	}
}

// proximityTick recomputes the rule sets from the current snapshot and
// hands them to the adapter. Uses whatever state is current at tick
// time; ticks are not ordered relative to individual mutations.
func (r *Room) proximityTick() {
	start := time.Now()
	samples := make([]proximity.Sample, 0)
	for _, s := range r.engine.ConnectedSamples() {
		samples = append(samples, proximity.Sample{Identity: s.Identity, X: s.X, Y: s.Y})
	}
	rules := proximity.Compute(samples, r.threshold)
	metrics.ProximityTickDuration.Observe(time.Since(start).Seconds())

	r.adapter.Sync(rules)
}

// maybeDispose shuts the room down once the last player record is
// gone: tick stopped, grace timers cancelled, media rules torn down.
func (r *Room) maybeDispose() {
	// The occupancy check shares the lock with Join's player creation,
	// so a join landing concurrently either sees the room disposed or
	// keeps it alive.
	r.mu.Lock()
	if r.disposed || r.engine.PlayerCount() != 0 {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	remaining := r.subscribers
	r.subscribers = make(map[string]*subscriber)
	r.mu.Unlock()

	close(r.stop)
	r.reconnects.CancelAll()
	r.adapter.Shutdown()
	for _, sub := range remaining {
		sub.conn.Close()
	}
	metrics.RoomsActive.Dec()
	metrics.ConnectedPlayers.DeleteLabelValues(r.ID)
	r.logger.Infow("room disposed")

	if r.onDispose != nil {
		r.onDispose(r)
	}
}

// Close disposes the room regardless of occupancy. Used at process
// shutdown.
func (r *Room) Close() {
	for _, player := range r.engine.Snapshot() {
		r.engine.RemovePlayer(player.Identity)
		r.adapter.Retire(player.Identity)
	}
	r.maybeDispose()
}
