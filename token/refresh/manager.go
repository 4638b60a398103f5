package refresh

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/rs/zerolog/log"
)

// DefaultGracePeriod is how long a just-replaced identifier is still honoured.
// Browsers fire parallel requests once the access token expires and every one
// of them carries the same refresh cookie.
const DefaultGracePeriod = 5 * time.Second

// Manager applies rotation bookkeeping on top of a Repo. TTLs are supplied by
// the caller, whose clock also stamped the tokens.
type Manager struct {
	repo  Repo
	grace time.Duration
}

type ManagerOption func(*Manager)

// WithGracePeriod overrides DefaultGracePeriod. Zero disables the grace window.
func WithGracePeriod(grace time.Duration) ManagerOption {
	return func(m *Manager) {
		if grace >= 0 {
			m.grace = grace
		}
	}
}

// NewManager creates a new rotation manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:  repo,
		grace: DefaultGracePeriod,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// GracePeriod reports the configured grace window
func (m *Manager) GracePeriod() time.Duration {
	return m.grace
}

// Track registers the first identifier of a freshly signed-in session
func (m *Manager) Track(ctx context.Context, sessionID, tokenID string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if err := m.repo.Register(ctx, sessionID, tokenID, ttl); err != nil {
		return fmt.Errorf("failed to register session %s: %w", sessionID, err)
	}
	return nil
}

// Rotate swaps the session's identifier and returns the identifier the caller
// must put in the rotated refresh token. That is nextID unless a concurrent
// request already rotated presentedID inside the grace window. A reused
// identifier older than that revokes the whole session so neither the
// legitimate holder nor the replaying party can continue.
func (m *Manager) Rotate(ctx context.Context, sessionID, presentedID, nextID string, ttl time.Duration) (string, error) {
	if err := checkTTL(ttl); err != nil {
		return "", err
	}
	current, err := m.repo.Rotate(ctx, sessionID, presentedID, nextID, ttl, m.grace)
	if apperrors.Is(err, apperrors.ErrRefreshTokenReused) {
		log.Warn().Str("session_id", sessionID).Msg("refresh token reuse detected, revoking session")
		if revokeErr := m.repo.Revoke(ctx, sessionID); revokeErr != nil {
			log.Err(revokeErr).Str("session_id", sessionID).Msg("failed to revoke session")
		}
		return "", err
	}
	if err != nil {
		return "", err
	}
	if current != nextID {
		log.Debug().Str("session_id", sessionID).Msg("concurrent refresh inside grace period")
	}
	return current, nil
}

// Revoke forgets the session
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.repo.Revoke(ctx, sessionID)
}

func checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return apperrors.Wrapf(apperrors.ErrTokenExpired, "rotation ttl %s is not positive", ttl)
	}
	return nil
}
