package token

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/refresh"
	"github.com/rs/zerolog/log"
)

// Verifier checks access and refresh tokens and performs the refresh exchange.
// It shares secrets, envelope key and clock with the Issuer it was built from.
type Verifier struct {
	issuer   *Issuer
	rotation *refresh.Manager
}

type VerifierOption func(*Verifier)

// WithRotationManager enables server-side replay detection of refresh tokens
func WithRotationManager(m *refresh.Manager) VerifierOption {
	return func(v *Verifier) {
		v.rotation = m
	}
}

func NewVerifier(issuer *Issuer, options ...VerifierOption) *Verifier {
	v := &Verifier{
		issuer: issuer,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// VerifyAccess checks an access token's signature then its expiry.
func (v *Verifier) VerifyAccess(raw string) (*IdentityClaims, error) {
	claims := &AccessClaims{}
	if err := v.parse(raw, claims, v.issuer.accessSigner); err != nil {
		return nil, err
	}
	identity := claims.Identity()
	return &identity, nil
}

// VerifyRefresh checks the plaintext of an opened refresh envelope.
func (v *Verifier) VerifyRefresh(plaintext string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := v.parse(plaintext, claims, v.issuer.refreshSigner); err != nil {
		return nil, err
	}
	return claims, nil
}

// RefreshSession exchanges a sealed refresh token for a new access token and a
// rotated refresh token. The presented refresh token is superseded.
func (v *Verifier) RefreshSession(ctx context.Context, sealed string) (*TokenPair, error) {
	plaintext, err := v.issuer.sealer.Open(sealed)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAuthenticationFailed) {
			log.Warn().Msg("refresh envelope failed authentication, possible tampering")
		}
		return nil, err
	}

	claims, err := v.VerifyRefresh(plaintext)
	if err != nil {
		return nil, err
	}
	identity := claims.Identity()

	access, accessExpiresAt, err := v.issuer.ReissueAccess(identity)
	if err != nil {
		return nil, err
	}

	nextID := v.issuer.newTokenID()
	if v.rotation != nil {
		ttl, err := v.issuer.rotatedExpiry()
		if err != nil {
			return nil, err
		}
		// A concurrent refresh of the same token hands back the identifier it installed.
		nextID, err = v.rotation.Rotate(ctx, identity.SessionID, claims.RefreshTokenID, nextID, ttl)
		if err != nil {
			return nil, err
		}
	}

	rotated, err := v.issuer.rotateRefreshAs(identity, nextID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     rotated.Token,
		RefreshTokenID:   rotated.TokenID,
		SessionID:        identity.SessionID,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: rotated.ExpiresAt,
	}, nil
}

// Track registers a freshly issued pair with the rotation registry. TTLs are
// measured on the issuer's clock. Without a rotation manager Track is a no-op.
func (v *Verifier) Track(ctx context.Context, pair *TokenPair) error {
	if v.rotation == nil {
		return nil
	}
	return v.rotation.Track(ctx, pair.SessionID, pair.RefreshTokenID, pair.RefreshExpiresAt.Sub(v.issuer.nowFunc()))
}

// Revoke ends the session behind a sealed refresh token. Without a rotation
// manager there is no server-side state and Revoke is a no-op.
func (v *Verifier) Revoke(ctx context.Context, sealed string) error {
	if v.rotation == nil || sealed == "" {
		return nil
	}
	plaintext, err := v.issuer.sealer.Open(sealed)
	if err != nil {
		return err
	}
	claims := &RefreshClaims{}
	// An expired refresh token still names a session worth forgetting.
	_, err = jwt.NewParser(jwt.WithValidMethods([]string{v.issuer.refreshSigner.GetSigningMethod().Alg()}), jwt.WithoutClaimsValidation()).
		ParseWithClaims(plaintext, claims, v.issuer.refreshSigner.GetVerificationKey)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}
	return v.rotation.Revoke(ctx, claims.SessionID)
}

func (v *Verifier) parse(raw string, claims jwt.Claims, signer Signer) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.issuer.nowFunc),
	)
	_, err := parser.ParseWithClaims(raw, claims, signer.GetVerificationKey)
	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, apperrors.ErrInvalidConfig):
		return err
	case apperrors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", apperrors.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}
}
