package room

import (
	"errors"
	"testing"
)

func TestBindResolveUnbind(t *testing.T) {
	registry := NewSessionRegistry()

	if err := registry.Bind("s1", "u1"); err != nil {
		t.Fatalf("unexpected error binding: %v", err)
	}

	identity, err := registry.Resolve("s1")
	if err != nil {
		t.Fatalf("unexpected error resolving: %v", err)
	}
	if identity != "u1" {
		t.Fatalf("resolved wrong identity: %s", identity)
	}

	registry.Unbind("s1")
	if _, err := registry.Resolve("s1"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession after unbind, got %v", err)
	}

	// Unbind is idempotent.
	registry.Unbind("s1")
}

func TestBindRejectsSecondIdentity(t *testing.T) {
	registry := NewSessionRegistry()

	if err := registry.Bind("s1", "u1"); err != nil {
		t.Fatalf("unexpected error binding: %v", err)
	}
	if err := registry.Bind("s1", "u2"); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
	// Rebinding the same identity is a no-op.
	if err := registry.Bind("s1", "u1"); err != nil {
		t.Fatalf("rebind of same identity should succeed, got %v", err)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	registry := NewSessionRegistry()
	if _, err := registry.Resolve("nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}
