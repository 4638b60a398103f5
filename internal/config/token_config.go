package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/envelope"
)

const (
	encryptionKeyVar         = "ENCRYPT_SECRET_KEY"
	accessSecretVar          = "JWT_SECRET_KEY"
	refreshSecretVar         = "REFRESH_SECRET_KEY"
	accessExpiryVar          = "ACCESS_EXPIRATION"
	refreshExpiryVar         = "REFRESH_EXPIRATION"
	rotatedRefreshExpiryVar  = "ROTATED_REFRESH_EXPIRATION"
	defaultRotatedExpiration = "10s"
)

// TokenConfig exposes the signing and encryption material. Every getter fails
// with ErrInvalidConfig when its value is missing or malformed.
type TokenConfig interface {
	GetEncryptionKey() ([]byte, error)
	GetAccessSecret() ([]byte, error)
	GetRefreshSecret() ([]byte, error)
	GetAccessExpiry() (time.Duration, error)
	GetRefreshExpiry() (time.Duration, error)
	GetRotatedRefreshExpiry() (time.Duration, error)
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetEncryptionKey() ([]byte, error) {
	value, err := requiredEnv(encryptionKeyVar)
	if err != nil {
		return nil, err
	}
	key, err := envelope.ParseKey(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", encryptionKeyVar, err)
	}
	return key, nil
}

func (Tokens) GetAccessSecret() ([]byte, error) {
	value, err := requiredEnv(accessSecretVar)
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (Tokens) GetRefreshSecret() ([]byte, error) {
	value, err := requiredEnv(refreshSecretVar)
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (Tokens) GetAccessExpiry() (time.Duration, error) {
	return durationEnv(accessExpiryVar, "")
}

func (Tokens) GetRefreshExpiry() (time.Duration, error) {
	return durationEnv(refreshExpiryVar, "")
}

// GetRotatedRefreshExpiry is the lifetime of refresh tokens minted by rotation.
// It is intentionally much shorter than the login refresh lifetime.
func (Tokens) GetRotatedRefreshExpiry() (time.Duration, error) {
	return durationEnv(rotatedRefreshExpiryVar, defaultRotatedExpiration)
}

func requiredEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s is not set", name)
	}
	return value, nil
}

func durationEnv(name, defaultValue string) (time.Duration, error) {
	value := strings.TrimSpace(GetEnv(name, defaultValue))
	if value == "" {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s is not set", name)
	}
	d, err := ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
