package room

import "errors"

var (
	// ErrUnknownPlayer is returned when a mutation references an
	// identity with no live player record.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrDuplicateIdentity is returned when a join targets an identity
	// that is already connected.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrUnknownSession is returned when a session has no bound identity.
	ErrUnknownSession = errors.New("unknown session")
	// ErrAlreadyBound is returned when a session attempts to bind a
	// second identity.
	ErrAlreadyBound = errors.New("session already bound")
)
