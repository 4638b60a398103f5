package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/envelope"
)

// TokenPair is the result of a sign-in or a refresh. RefreshToken is always the
// sealed envelope, never the signed plaintext.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshTokenID   string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SealedRefresh is a rotated refresh token
type SealedRefresh struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Issuer mints access tokens and sealed refresh tokens
type Issuer struct {
	config        config.TokenConfig
	accessSigner  Signer
	refreshSigner Signer
	sealer        *envelope.Sealer
	nowFunc       func() time.Time
	newTokenID    func() string
}

type IssuerOption func(*Issuer)

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// WithTokenIDFunc overrides the rotation identifier generator
func WithTokenIDFunc(newID func() string) IssuerOption {
	return func(i *Issuer) {
		i.newTokenID = newID
	}
}

// NewIssuer creates an Issuer whose secrets, lifetimes and envelope key all come from cfg.
func NewIssuer(cfg config.TokenConfig, options ...IssuerOption) *Issuer {
	i := &Issuer{
		config:        cfg,
		accessSigner:  NewHMACSigner(cfg.GetAccessSecret),
		refreshSigner: NewHMACSigner(cfg.GetRefreshSecret),
		sealer:        envelope.NewSealer(cfg),
	}

	for _, opt := range options {
		opt(i)
	}

	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	if i.newTokenID == nil {
		i.newTokenID = func() string { return uuid.New().String() }
	}
	return i
}

// IssueAccessAndRefresh signs an access token and a primary refresh token for a
// new sign-in.
func (i *Issuer) IssueAccessAndRefresh(identity IdentityClaims) (*TokenPair, error) {
	access, accessExpiresAt, err := i.ReissueAccess(identity)
	if err != nil {
		return nil, err
	}

	refreshExpiry, err := i.config.GetRefreshExpiry()
	if err != nil {
		return nil, signingConfigError(err)
	}
	sealed, err := i.sealRefresh(identity, i.newTokenID(), refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     sealed.Token,
		RefreshTokenID:   sealed.TokenID,
		SessionID:        identity.SessionID,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: sealed.ExpiresAt,
	}, nil
}

// ReissueAccess signs a new access token for identity.
func (i *Issuer) ReissueAccess(identity IdentityClaims) (string, time.Time, error) {
	expiry, err := i.config.GetAccessExpiry()
	if err != nil {
		return "", time.Time{}, signingConfigError(err)
	}

	now := i.nowFunc()
	expiresAt := now.Add(expiry)
	signed, err := i.accessSigner.Sign(newAccessClaims(identity, now, expiresAt))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RotateRefresh signs and seals a replacement refresh token with a fresh rotation
// identifier and the rotated lifetime.
func (i *Issuer) RotateRefresh(identity IdentityClaims) (*SealedRefresh, error) {
	return i.rotateRefreshAs(identity, i.newTokenID())
}

// rotateRefreshAs seals a rotated refresh token carrying tokenID, which the
// rotation registry may have chosen.
func (i *Issuer) rotateRefreshAs(identity IdentityClaims, tokenID string) (*SealedRefresh, error) {
	expiry, err := i.rotatedExpiry()
	if err != nil {
		return nil, err
	}
	return i.sealRefresh(identity, tokenID, expiry)
}

func (i *Issuer) rotatedExpiry() (time.Duration, error) {
	expiry, err := i.config.GetRotatedRefreshExpiry()
	if err != nil {
		return 0, signingConfigError(err)
	}
	return expiry, nil
}

func (i *Issuer) sealRefresh(identity IdentityClaims, tokenID string, expiry time.Duration) (*SealedRefresh, error) {
	now := i.nowFunc()
	expiresAt := now.Add(expiry)

	signed, err := i.refreshSigner.Sign(newRefreshClaims(identity, tokenID, now, expiresAt))
	if err != nil {
		return nil, err
	}

	sealed, err := i.sealer.Seal(signed)
	if err != nil {
		return nil, signingConfigError(err)
	}

	return &SealedRefresh{
		Token:     sealed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func signingConfigError(err error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrSigningFailed, err)
}
