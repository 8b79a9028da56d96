package room

import "sync"

// SessionRegistry maps transport session IDs to stable identities. It
// is owned by a single room, never shared across rooms, and holds no
// player business data.
type SessionRegistry struct {
	mu         sync.Mutex
	identities map[string]string
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{identities: make(map[string]string)}
}

// Bind records the session→identity association. Rebinding the same
// identity is a no-op; binding a different identity fails.
func (r *SessionRegistry) Bind(sessionID, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.identities[sessionID]; ok {
		if existing == identity {
			return nil
		}
		return ErrAlreadyBound
	}
	r.identities[sessionID] = identity
	return nil
}

// Resolve returns the identity bound to sessionID.
func (r *SessionRegistry) Resolve(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	return identity, nil
}

// Unbind removes the association. Unbinding an unknown session is a
// no-op.
func (r *SessionRegistry) Unbind(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, sessionID)
}
