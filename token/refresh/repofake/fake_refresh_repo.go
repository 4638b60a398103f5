package refreshrepofake

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshRepo)(nil)

type entry struct {
	tokenID   string
	expiresAt time.Time

	previousID        string
	previousExpiresAt time.Time
}

type FakeRefreshRepo struct {
	sessions map[string]entry
	nowFunc  func() time.Time
	lock     sync.Mutex
}

func NewFakeRefreshRepo() *FakeRefreshRepo {
	return &FakeRefreshRepo{
		sessions: make(map[string]entry),
		nowFunc:  time.Now,
	}
}

// WithNowFunc lets tests move the fake's clock
func (r *FakeRefreshRepo) WithNowFunc(now func() time.Time) *FakeRefreshRepo {
	r.nowFunc = now
	return r
}

func (r *FakeRefreshRepo) Register(_ context.Context, sessionID, tokenID string, ttl time.Duration) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sessions[sessionID] = entry{tokenID: tokenID, expiresAt: r.nowFunc().Add(ttl)}
	return nil
}

func (r *FakeRefreshRepo) Rotate(_ context.Context, sessionID, presentedID, nextID string, ttl, grace time.Duration) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	current, ok := r.live(sessionID)
	if !ok {
		return "", apperrors.ErrSessionRevoked
	}
	now := r.nowFunc()
	switch {
	case current.tokenID == presentedID:
		next := entry{tokenID: nextID, expiresAt: now.Add(ttl)}
		if grace > 0 {
			next.previousID = presentedID
			next.previousExpiresAt = now.Add(grace)
		}
		r.sessions[sessionID] = next
		return nextID, nil
	case current.previousID != "" && current.previousID == presentedID && now.Before(current.previousExpiresAt):
		return current.tokenID, nil
	default:
		return "", apperrors.ErrRefreshTokenReused
	}
}

func (r *FakeRefreshRepo) Revoke(_ context.Context, sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *FakeRefreshRepo) Current(_ context.Context, sessionID string) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	current, ok := r.live(sessionID)
	if !ok {
		return "", apperrors.ErrSessionRevoked
	}
	return current.tokenID, nil
}

func (r *FakeRefreshRepo) live(sessionID string) (entry, bool) {
	e, ok := r.sessions[sessionID]
	if !ok {
		return entry{}, false
	}
	if !r.nowFunc().Before(e.expiresAt) {
		delete(r.sessions, sessionID)
		return entry{}, false
	}
	return e, true
}
