package configfake

import (
	"encoding/hex"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

var _ config.TokenConfig = (*TokenConfig)(nil)

// TokenConfig is a static config.TokenConfig for tests. Zero values behave like
// unset environment variables.
type TokenConfig struct {
	EncryptionKeyHex     string
	AccessSecret         string
	RefreshSecret        string
	AccessExpiry         time.Duration
	RefreshExpiry        time.Duration
	RotatedRefreshExpiry time.Duration
}

// NewTokenConfig returns a fully populated config with a fixed key.
func NewTokenConfig() *TokenConfig {
	return &TokenConfig{
		EncryptionKeyHex:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		AccessSecret:         "access-secret",
		RefreshSecret:        "refresh-secret",
		AccessExpiry:         15 * time.Minute,
		RefreshExpiry:        7 * 24 * time.Hour,
		RotatedRefreshExpiry: 10 * time.Second,
	}
}

func (c *TokenConfig) GetEncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKeyHex)
	if err != nil || len(key) != 32 {
		return nil, apperrors.ErrInvalidConfig
	}
	return key, nil
}

func (c *TokenConfig) GetAccessSecret() ([]byte, error) {
	return secret(c.AccessSecret)
}

func (c *TokenConfig) GetRefreshSecret() ([]byte, error) {
	return secret(c.RefreshSecret)
}

func (c *TokenConfig) GetAccessExpiry() (time.Duration, error) {
	return duration(c.AccessExpiry)
}

func (c *TokenConfig) GetRefreshExpiry() (time.Duration, error) {
	return duration(c.RefreshExpiry)
}

func (c *TokenConfig) GetRotatedRefreshExpiry() (time.Duration, error) {
	return duration(c.RotatedRefreshExpiry)
}

func secret(s string) ([]byte, error) {
	if s == "" {
		return nil, apperrors.ErrInvalidConfig
	}
	return []byte(s), nil
}

func duration(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, apperrors.ErrInvalidConfig
	}
	return d, nil
}
