// Package sqliterepo provides SQLite persistence for users.
package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/internal/utils"
	"github.com/jrsteele09/go-session-server/users"
	_ "modernc.org/sqlite"
)

var _ users.UserRepo = (*Repo)(nil)

type Repo struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the users table exists.
func Open(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL DEFAULT '',
			email              TEXT NOT NULL UNIQUE,
			encrypted_password TEXT NOT NULL,
			last_sign_in_at    INTEGER
		);`,
	); err != nil {
		return fmt.Errorf("failed to init 'users' table schema: %v", err)
	}
	return nil
}

func (r *Repo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, encrypted_password, last_sign_in_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			encrypted_password = excluded.encrypted_password,
			last_sign_in_at = excluded.last_sign_in_at`,
		user.ID, user.Name, user.Email, user.PasswordHash, toUnixMilli(user.LastSignInAt),
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.Email, err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, users.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete user %s: %w", email, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, encrypted_password, last_sign_in_at
		FROM users WHERE email = ?`, users.NormalizeEmail(email))
	return scanUser(row)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, encrypted_password, last_sign_in_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *Repo) UpdateLastSignIn(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_sign_in_at = ? WHERE id = ?`, at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update last sign in for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u        users.User
		signedIn sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &signedIn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	if signedIn.Valid {
		u.LastSignInAt = utils.Ptr(time.UnixMilli(signedIn.Int64).UTC())
	}
	return &u, nil
}

func toUnixMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
