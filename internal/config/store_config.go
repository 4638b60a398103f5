package config

import (
	"strings"
	"time"
)

const (
	databaseURLVar         = "DATABASE_URL"
	redisURLVar            = "REDIS_URL"
	rotationGracePeriodVar = "ROTATION_GRACE_PERIOD"

	defaultRotationGracePeriod = 5 * time.Second
)

type StoreConfig interface {
	// GetDatabaseURL returns a postgres:// URL, a sqlite:<path> DSN, or "memory".
	GetDatabaseURL() string
	// GetRedisURL returns the rotation registry location. Empty keeps sessions stateless.
	GetRedisURL() string
	// GetRotationGracePeriod is how long a just-rotated refresh identifier is still
	// accepted from parallel requests. "0" disables the window.
	GetRotationGracePeriod() time.Duration
	// GetSeedUser returns an account to create at startup, if any.
	GetSeedUser() *SeedUser
}

type Stores struct{}

var _ StoreConfig = Stores{}

func (Stores) GetDatabaseURL() string {
	return GetEnv(databaseURLVar, "memory")
}

func (Stores) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func (Stores) GetRotationGracePeriod() time.Duration {
	value := strings.TrimSpace(GetEnv(rotationGracePeriodVar, ""))
	if value == "0" {
		return 0
	}
	d, err := ParseDuration(value)
	if err != nil {
		return defaultRotationGracePeriod
	}
	return d
}

const (
	seedUserEmailVar    = "SEED_USER_EMAIL"
	seedUserPasswordVar = "SEED_USER_PASSWORD"
	seedUserNameVar     = "SEED_USER_NAME"
)

// SeedUser is an account created at startup when it does not exist yet.
type SeedUser struct {
	Email    string
	Password string
	Name     string
}

// GetSeedUser returns the startup account, or nil when SEED_USER_EMAIL is unset.
func (Stores) GetSeedUser() *SeedUser {
	email := GetEnv(seedUserEmailVar, "")
	if email == "" {
		return nil
	}
	return &SeedUser{
		Email:    email,
		Password: GetEnv(seedUserPasswordVar, ""),
		Name:     GetEnv(seedUserNameVar, ""),
	}
}
