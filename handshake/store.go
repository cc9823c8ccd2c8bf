package handshake

import "context"

// Store persists handshake sessions across the redirect boundary.
//
// Implementations must be safe for concurrent use across distinct session
// ids; a single session is only ever touched by the one browser's two
// requests, which are ordered by the redirect.
type Store interface {
	// Create persists a new session. The session id must be unused.
	Create(ctx context.Context, s Session) error
	// Load returns the session for id. The second result is false when the
	// id is unknown, expired, or already destroyed.
	Load(ctx context.Context, id string) (Session, bool, error)
	// Save overwrites an existing session (protocol state attachment).
	Save(ctx context.Context, s Session) error
	// Destroy removes the session. Destroying an unknown or already
	// destroyed id is a no-op, never an error.
	Destroy(ctx context.Context, id string) error
}
