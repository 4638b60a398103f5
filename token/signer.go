package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

// Signer is an interface for signing and verifying JWT tokens
type Signer interface {
	// Sign creates a signed JWT token from claims
	Sign(claims jwt.Claims) (string, error)

	// GetVerificationKey returns the key used to check a parsed token's signature
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWT signing method used
	GetSigningMethod() jwt.SigningMethod
}

// SecretFunc resolves a signing secret. Secrets come from process configuration
// and are looked up at use so a missing value surfaces on the failing call.
type SecretFunc func() ([]byte, error)

// HMACsigner implements Signer using symmetric HMAC-SHA256
type HMACsigner struct {
	secret SecretFunc
}

// NewHMACSigner creates a new HMAC signer with the given secret source
func NewHMACSigner(secret SecretFunc) *HMACsigner {
	return &HMACsigner{
		secret: secret,
	}
}

func (h *HMACsigner) Sign(claims jwt.Claims) (string, error) {
	secret, err := h.secret()
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrSigningFailed, err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign token with HMAC: %w", apperrors.ErrSigningFailed, err)
	}
	return signedToken, nil
}

func (h *HMACsigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret()
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
