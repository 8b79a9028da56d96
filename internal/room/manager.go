package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Xyzrr/virtual-office-server/internal/media"
)

// ManagerConfig holds the per-room settings the manager stamps onto
// every room it creates.
type ManagerConfig struct {
	GracePeriod        time.Duration
	ProximityPeriod    time.Duration
	ProximityThreshold float64
	GridCells          int
	CellSize           float64
	MediaTimeout       time.Duration

	Publisher media.Publisher
	Logger    *zap.SugaredLogger
}

// Manager owns the name→room map. Rooms are created on first use and
// remove themselves when their last player is gone. Rooms share
// nothing; the manager only guards the map.
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	config ManagerConfig
}

// NewManager returns an empty manager.
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		config: config,
	}
}

// GetOrCreate returns the live room named id, creating it if needed.
// Key and label are opaque discovery tags recorded at creation; they
// are ignored for an existing room.
func (m *Manager) GetOrCreate(id, key, label string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r
	}

	r := New(Options{
		ID:                 id,
		Key:                key,
		Label:              label,
		GracePeriod:        m.config.GracePeriod,
		ProximityPeriod:    m.config.ProximityPeriod,
		ProximityThreshold: m.config.ProximityThreshold,
		GridCells:          m.config.GridCells,
		CellSize:           m.config.CellSize,
		Publisher:          m.config.Publisher,
		MediaTimeout:       m.config.MediaTimeout,
		Logger:             m.config.Logger,
		onDispose:          m.remove,
	})
	m.rooms[id] = r
	return r
}

// Lookup returns the room named id if it exists.
func (m *Manager) Lookup(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Diagnostics summarizes every live room.
func (m *Manager) Diagnostics() []Diagnostics {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]Diagnostics, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Diagnostics())
	}
	return out
}

// Shutdown disposes every room. Used at process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}

func (m *Manager) remove(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.rooms[r.ID]; ok && current == r {
		delete(m.rooms, r.ID)
	}
}
