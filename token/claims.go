package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the user identity carried by every token. It is sourced from
// the user record at login and never mutated here.
type IdentityClaims struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	SessionID    string     `json:"session_id"`
	LastSignedIn *time.Time `json:"last_signed_in,omitempty"`
}

// AccessClaims is the payload of a signed access token.
type AccessClaims struct {
	UserID       string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	LastSignedIn *time.Time `json:"last_signed_in"`
	SessionID    string     `json:"session_id"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a signed refresh token before it is sealed.
type RefreshClaims struct {
	UserID         string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	RefreshTokenID string `json:"refreshTokenId"` // rotation identifier, new on every issuance
	SessionID      string `json:"session_id"`
	jwt.RegisteredClaims
}

func newAccessClaims(identity IdentityClaims, issuedAt, expiresAt time.Time) *AccessClaims {
	return &AccessClaims{
		UserID:       identity.ID,
		Email:        identity.Email,
		Name:         identity.Name,
		LastSignedIn: identity.LastSignedIn,
		SessionID:    identity.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

func newRefreshClaims(identity IdentityClaims, refreshTokenID string, issuedAt, expiresAt time.Time) *RefreshClaims {
	return &RefreshClaims{
		UserID:         identity.ID,
		Email:          identity.Email,
		Name:           identity.Name,
		RefreshTokenID: refreshTokenID,
		SessionID:      identity.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

// Identity returns the identity asserted by the access token.
func (c *AccessClaims) Identity() IdentityClaims {
	return IdentityClaims{
		ID:           c.UserID,
		Email:        c.Email,
		Name:         c.Name,
		SessionID:    c.SessionID,
		LastSignedIn: c.LastSignedIn,
	}
}

// Identity returns the identity asserted by the refresh token. Refresh tokens do
// not carry the last sign-in time.
func (c *RefreshClaims) Identity() IdentityClaims {
	return IdentityClaims{
		ID:        c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		SessionID: c.SessionID,
	}
}
