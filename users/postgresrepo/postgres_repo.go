// Package postgresrepo reads and writes users in a PostgreSQL "users" table with
// columns id, name, email, encrypted_password and last_sign_in_at.
//
// The pgx pool is owned by the caller; the repo never closes it.
package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
)

var _ users.UserRepo = (*Repo)(nil)

// Schema creates the users table when it is missing. Deployments that manage
// their own schema can skip EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL UNIQUE,
	encrypted_password TEXT NOT NULL,
	last_sign_in_at    TIMESTAMPTZ
)`

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// NewPool builds a pgxpool and validates connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := Ping(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Ping checks if we can acquire a connection within timeout.
func Ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to init 'users' table schema: %w", err)
	}
	return nil
}

func (r *Repo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, encrypted_password, last_sign_in_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			encrypted_password = EXCLUDED.encrypted_password,
			last_sign_in_at = EXCLUDED.last_sign_in_at`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.LastSignInAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.Email, err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE email = $1`, users.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete user %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT id::text, name, email, encrypted_password, last_sign_in_at
		FROM users WHERE email = $1`, users.NormalizeEmail(email)))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT id::text, name, email, encrypted_password, last_sign_in_at
		FROM users WHERE id::text = $1`, id))
}

func (r *Repo) UpdateLastSignIn(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_sign_in_at = $1 WHERE id::text = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last sign in for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.LastSignInAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	if u.LastSignInAt != nil {
		t := u.LastSignInAt.UTC()
		u.LastSignInAt = &t
	}
	return &u, nil
}
