package config

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

// RefreshMode selects how the gatekeeper exchanges a refresh token.
type RefreshMode string

const (
	RefreshModeHTTP  RefreshMode = "http"  // POST to the refresh endpoint
	RefreshModeLocal RefreshMode = "local" // call the verifier in-process
)

const (
	loginPathVar           = "LOGIN_PATH"
	refreshModeVar         = "REFRESH_MODE"
	refreshURLVar          = "REFRESH_URL"
	refreshTimeoutVar      = "REFRESH_TIMEOUT"
	refreshOnExpiryOnlyVar = "REFRESH_ON_EXPIRY_ONLY"

	defaultRefreshTimeout = 5 * time.Second
	refreshRoute          = "/api/auth/refresh"
)

type GatekeeperConfig interface {
	GetLoginPath() string
	GetRefreshMode() (RefreshMode, error)
	GetRefreshURL() string
	GetRefreshTimeout() time.Duration
	GetRefreshOnExpiryOnly() bool
}

type Gatekeeper struct{}

var _ GatekeeperConfig = Gatekeeper{}

func (Gatekeeper) GetLoginPath() string {
	return GetEnv(loginPathVar, "/login")
}

func (Gatekeeper) GetRefreshMode() (RefreshMode, error) {
	mode := RefreshMode(strings.ToLower(GetEnv(refreshModeVar, string(RefreshModeHTTP))))
	switch mode {
	case RefreshModeHTTP, RefreshModeLocal:
		return mode, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidConfig, "unknown %s %q", refreshModeVar, mode)
	}
}

func (Gatekeeper) GetRefreshURL() string {
	return GetEnv(refreshURLVar, EnvVars{}.GetBaseURL()+refreshRoute)
}

func (Gatekeeper) GetRefreshTimeout() time.Duration {
	d, err := ParseDuration(GetEnv(refreshTimeoutVar, ""))
	if err != nil {
		return defaultRefreshTimeout
	}
	return d
}

// GetRefreshOnExpiryOnly reports whether the gatekeeper only attempts a refresh
// when the access token expired. Any other verification failure rejects outright.
func (Gatekeeper) GetRefreshOnExpiryOnly() bool {
	strict, err := strconv.ParseBool(GetEnv(refreshOnExpiryOnlyVar, "true"))
	if err != nil {
		return true
	}
	return strict
}
