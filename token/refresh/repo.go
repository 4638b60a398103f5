package refresh

import (
	"context"
	"time"
)

// Repo tracks the current rotation identifier of each session. The client never
// sees this state; it only holds the refresh token carrying the identifier.
//
// Implementations must make Rotate atomic: two concurrent rotations presenting the
// same identifier must not both replace it.
type Repo interface {
	// Register records tokenID as the session's current identifier for ttl.
	Register(ctx context.Context, sessionID, tokenID string, ttl time.Duration) error

	// Rotate replaces presentedID with nextID for ttl and returns the identifier
	// that is now current. The replaced identifier is remembered for grace:
	// presenting it again inside that window changes nothing and returns the
	// current identifier. Any other identifier is ErrRefreshTokenReused, and a
	// session with no identifier at all is ErrSessionRevoked.
	Rotate(ctx context.Context, sessionID, presentedID, nextID string, ttl, grace time.Duration) (string, error)

	// Revoke forgets the session. Revoking an unknown session is not an error.
	Revoke(ctx context.Context, sessionID string) error

	// Current returns the session's identifier or ErrSessionRevoked.
	Current(ctx context.Context, sessionID string) (string, error)
}
