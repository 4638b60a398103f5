package users

import (
	"context"
	"time"
)

// UserRepo is the user store used by login. Lookups of unknown users return
// errors.ErrUserNotFound.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, email string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateLastSignIn(ctx context.Context, id string, at time.Time) error
}
