package token_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-server/internal/config/configfake"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/token/envelope"
	"github.com/jrsteele09/go-session-server/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-session-server/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	cfg      *configfake.TokenConfig
	now      time.Time
	issuer   *token.Issuer
	verifier *token.Verifier
	repo     *refreshrepofake.FakeRefreshRepo
	rotation *refresh.Manager
}

func (f *testFixture) clock() time.Time {
	return f.now
}

func setupFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		cfg: configfake.NewTokenConfig(),
		now: time.Now().Truncate(time.Second),
	}
	f.issuer = token.NewIssuer(f.cfg, token.WithNowFunc(f.clock))
	f.verifier = token.NewVerifier(f.issuer)
	return f
}

func setupFixtureWithRotation(t *testing.T) *testFixture {
	t.Helper()
	f := setupFixture(t)
	f.repo = refreshrepofake.NewFakeRefreshRepo().WithNowFunc(f.clock)
	f.rotation = refresh.NewManager(f.repo)
	f.verifier = token.NewVerifier(f.issuer, token.WithRotationManager(f.rotation))
	return f
}

func testIdentity() token.IdentityClaims {
	return token.IdentityClaims{ID: "u1", Email: "a@b.com", Name: "A", SessionID: "s1"}
}

func (f *testFixture) openRefresh(t *testing.T, sealed string) *token.RefreshClaims {
	t.Helper()
	key, err := f.cfg.GetEncryptionKey()
	require.NoError(t, err)
	plaintext, err := envelope.Open(sealed, key)
	require.NoError(t, err)
	claims, err := f.verifier.VerifyRefresh(plaintext)
	require.NoError(t, err)
	return claims
}

func TestIssueThenVerifyAccess(t *testing.T) {
	f := setupFixture(t)
	lastSignedIn := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	identity := testIdentity()
	identity.LastSignedIn = &lastSignedIn

	pair, err := f.issuer.IssueAccessAndRefresh(identity)
	require.NoError(t, err)
	require.Equal(t, "s1", pair.SessionID)
	require.Equal(t, f.now.Add(15*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, f.now.Add(7*24*time.Hour), pair.RefreshExpiresAt)
	require.Len(t, strings.Split(pair.RefreshToken, ":"), 3)

	got, err := f.verifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
	require.Equal(t, "a@b.com", got.Email)
	require.Equal(t, "A", got.Name)
	require.Equal(t, "s1", got.SessionID)
	require.NotNil(t, got.LastSignedIn)
	require.True(t, lastSignedIn.Equal(*got.LastSignedIn))

	refreshClaims := f.openRefresh(t, pair.RefreshToken)
	require.Equal(t, pair.RefreshTokenID, refreshClaims.RefreshTokenID)
	require.Equal(t, "s1", refreshClaims.SessionID)
}

func TestAccessTokenClaimNames(t *testing.T) {
	f := setupFixture(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(pair.AccessToken, claims)
	require.NoError(t, err)
	for _, name := range []string{"id", "email", "name", "last_signed_in", "session_id", "exp", "iat"} {
		require.Contains(t, claims, name)
	}
}

func TestVerifyAccessExpired(t *testing.T) {
	f := setupFixture(t)
	access, _, err := f.issuer.ReissueAccess(testIdentity())
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.verifier.VerifyAccess(access)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	require.NotErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	f := setupFixture(t)

	otherCfg := configfake.NewTokenConfig()
	otherCfg.AccessSecret = "not-the-access-secret"
	forged, _, err := token.NewIssuer(otherCfg).ReissueAccess(testIdentity())
	require.NoError(t, err)

	_, err = f.verifier.VerifyAccess(forged)
	require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	require.NotErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestVerifyAccessForgedAndExpiredIsInvalidSignature(t *testing.T) {
	f := setupFixture(t)

	otherCfg := configfake.NewTokenConfig()
	otherCfg.AccessSecret = "not-the-access-secret"
	past := f.now.Add(-time.Hour)
	forged, _, err := token.NewIssuer(otherCfg, token.WithNowFunc(func() time.Time { return past })).ReissueAccess(testIdentity())
	require.NoError(t, err)

	_, err = f.verifier.VerifyAccess(forged)
	require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyAccessRejectsOtherTokens(t *testing.T) {
	f := setupFixture(t)
	identity := testIdentity()

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  identity.ID,
		"exp": f.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": identity.ID}).
		SignedString([]byte(f.cfg.AccessSecret))
	require.NoError(t, err)

	pair, err := f.issuer.IssueAccessAndRefresh(identity)
	require.NoError(t, err)
	key, err := f.cfg.GetEncryptionKey()
	require.NoError(t, err)
	refreshPlaintext, err := envelope.Open(pair.RefreshToken, key)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"alg none", unsigned},
		{"missing exp", noExpiry},
		{"refresh token presented as access", refreshPlaintext},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.verifier.VerifyAccess(tc.token)
			require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
		})
	}
}

func TestRefreshSessionRotates(t *testing.T) {
	f := setupFixture(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)
	original := f.openRefresh(t, pair.RefreshToken)

	f.now = f.now.Add(20 * time.Minute)
	refreshed, err := f.verifier.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	identity, err := f.verifier.VerifyAccess(refreshed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", identity.ID)
	require.Equal(t, "s1", identity.SessionID)
	require.Nil(t, identity.LastSignedIn)

	rotated := f.openRefresh(t, refreshed.RefreshToken)
	require.NotEqual(t, original.RefreshTokenID, rotated.RefreshTokenID)
	require.Equal(t, refreshed.RefreshTokenID, rotated.RefreshTokenID)
	require.Equal(t, f.now.Add(10*time.Second), refreshed.RefreshExpiresAt)
	require.Equal(t, f.now.Add(10*time.Second).Unix(), rotated.ExpiresAt.Unix())
}

func TestRotateRefreshIdentifiersAreUnique(t *testing.T) {
	f := setupFixture(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rotated, err := f.issuer.RotateRefresh(testIdentity())
		require.NoError(t, err)
		require.False(t, seen[rotated.TokenID])
		seen[rotated.TokenID] = true
	}
}

func TestRefreshSessionFailures(t *testing.T) {
	f := setupFixture(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)

	t.Run("tampered envelope", func(t *testing.T) {
		fields := strings.Split(pair.RefreshToken, ":")
		last := fields[1][len(fields[1])-1]
		replacement := "0"
		if last == '0' {
			replacement = "1"
		}
		fields[1] = fields[1][:len(fields[1])-1] + replacement
		_, err := f.verifier.RefreshSession(context.Background(), strings.Join(fields, ":"))
		require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		_, err := f.verifier.RefreshSession(context.Background(), "abc")
		require.ErrorIs(t, err, apperrors.ErrMalformedEnvelope)
	})

	t.Run("access token sealed as refresh", func(t *testing.T) {
		key, err := f.cfg.GetEncryptionKey()
		require.NoError(t, err)
		sealed, err := envelope.Seal(pair.AccessToken, key)
		require.NoError(t, err)
		_, err = f.verifier.RefreshSession(context.Background(), sealed)
		require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("expired refresh", func(t *testing.T) {
		saved := f.now
		t.Cleanup(func() { f.now = saved })
		f.now = f.now.Add(8 * 24 * time.Hour)
		_, err := f.verifier.RefreshSession(context.Background(), pair.RefreshToken)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})
}

func TestRotatedRefreshExpiresQuickly(t *testing.T) {
	f := setupFixture(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)

	refreshed, err := f.verifier.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Second)
	_, err = f.verifier.RefreshSession(context.Background(), refreshed.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestRefreshSessionDetectsReplay(t *testing.T) {
	ctx := context.Background()
	f := setupFixtureWithRotation(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)
	require.NoError(t, f.verifier.Track(ctx, pair))

	refreshed, err := f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	current, err := f.repo.Current(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, refreshed.RefreshTokenID, current)

	f.now = f.now.Add(refresh.DefaultGracePeriod + time.Second)
	_, err = f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenReused)

	// The legitimate holder is cut off too once a replay is seen.
	_, err = f.verifier.RefreshSession(ctx, refreshed.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrSessionRevoked)
}

func TestRefreshSessionRaceInsideGracePeriod(t *testing.T) {
	ctx := context.Background()
	f := setupFixtureWithRotation(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)
	require.NoError(t, f.verifier.Track(ctx, pair))

	winner, err := f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)

	f.now = f.now.Add(time.Second)
	loser, err := f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, winner.RefreshTokenID, loser.RefreshTokenID)
	require.Equal(t, winner.RefreshTokenID, f.openRefresh(t, loser.RefreshToken).RefreshTokenID)

	current, err := f.repo.Current(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, winner.RefreshTokenID, current)

	// Either cookie can carry the session forward.
	next, err := f.verifier.RefreshSession(ctx, loser.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, winner.RefreshTokenID, next.RefreshTokenID)
}

func TestTrackUsesIssuerClock(t *testing.T) {
	ctx := context.Background()
	f := setupFixtureWithRotation(t)
	f.now = f.now.Add(-30 * 24 * time.Hour)

	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)
	require.NoError(t, f.verifier.Track(ctx, pair))

	_, err = f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := setupFixtureWithRotation(t)
	pair, err := f.issuer.IssueAccessAndRefresh(testIdentity())
	require.NoError(t, err)
	require.NoError(t, f.verifier.Track(ctx, pair))

	require.NoError(t, f.verifier.Revoke(ctx, pair.RefreshToken))
	_, err = f.verifier.RefreshSession(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrSessionRevoked)

	require.NoError(t, setupFixture(t).verifier.Revoke(ctx, pair.RefreshToken))
}

func TestIssuerMissingConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *configfake.TokenConfig)
	}{
		{"access secret", func(cfg *configfake.TokenConfig) { cfg.AccessSecret = "" }},
		{"refresh secret", func(cfg *configfake.TokenConfig) { cfg.RefreshSecret = "" }},
		{"encryption key", func(cfg *configfake.TokenConfig) { cfg.EncryptionKeyHex = "" }},
		{"access expiry", func(cfg *configfake.TokenConfig) { cfg.AccessExpiry = 0 }},
		{"refresh expiry", func(cfg *configfake.TokenConfig) { cfg.RefreshExpiry = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := configfake.NewTokenConfig()
			tc.mutate(cfg)
			_, err := token.NewIssuer(cfg).IssueAccessAndRefresh(testIdentity())
			require.ErrorIs(t, err, apperrors.ErrSigningFailed)
			require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
		})
	}

	t.Run("rotated expiry", func(t *testing.T) {
		cfg := configfake.NewTokenConfig()
		cfg.RotatedRefreshExpiry = 0
		_, err := token.NewIssuer(cfg).RotateRefresh(testIdentity())
		require.ErrorIs(t, err, apperrors.ErrSigningFailed)
		require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})
}
