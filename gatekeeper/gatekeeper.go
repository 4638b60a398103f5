// Package gatekeeper decides, per request, whether the caller's session cookies
// let the request through, whether they had to be refreshed first, or whether
// the caller must sign in again.
package gatekeeper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/internal/metrics"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/rs/zerolog/log"
)

// Outcome is the result of gating one request
type Outcome int

const (
	// PassThrough means the access token verified as presented
	PassThrough Outcome = iota
	// PassThroughRotated means the access token had to be refreshed and both cookies were replaced
	PassThroughRotated
	// RedirectToLogin means the request must not reach the protected handler
	RedirectToLogin
)

func (o Outcome) String() string {
	switch o {
	case PassThrough:
		return "pass_through"
	case PassThroughRotated:
		return "pass_through_rotated"
	case RedirectToLogin:
		return "redirect_to_login"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision describes what to do with a request
type Decision struct {
	Outcome Outcome
	// Identity is set whenever the request passes
	Identity *token.IdentityClaims
	// Tokens is the replacement cookie pair on PassThroughRotated
	Tokens *sessions.Tokens
	// ClearCookies asks for both cookies to be expired
	ClearCookies bool
	// Err is the reason for a redirect, nil when there was simply no session
	Err error
}

// AccessVerifier checks a raw access token
type AccessVerifier interface {
	VerifyAccess(raw string) (*token.IdentityClaims, error)
}

// Refresher exchanges a sealed refresh token for a new cookie pair
type Refresher interface {
	Refresh(ctx context.Context, sealedRefresh string) (*sessions.RefreshResponse, error)
}

// Gatekeeper guards protected routes
type Gatekeeper struct {
	verifier          AccessVerifier
	refresher         Refresher
	loginPath         string
	refreshAnyFailure bool
	metrics           *metrics.Metrics
	nowFunc           func() time.Time
}

type Option func(*Gatekeeper)

// WithLoginPath sets the redirect target. Defaults to /login.
func WithLoginPath(path string) Option {
	return func(g *Gatekeeper) {
		g.loginPath = path
	}
}

// WithRefreshOnAnyFailure makes every access verification failure attempt a
// refresh, not just expiry.
func WithRefreshOnAnyFailure(enabled bool) Option {
	return func(g *Gatekeeper) {
		g.refreshAnyFailure = enabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gatekeeper) {
		g.metrics = m
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gatekeeper) {
		g.nowFunc = now
	}
}

func New(verifier AccessVerifier, refresher Refresher, options ...Option) *Gatekeeper {
	g := &Gatekeeper{
		verifier:  verifier,
		refresher: refresher,
		loginPath: "/login",
	}
	for _, opt := range options {
		opt(g)
	}
	if g.nowFunc == nil {
		g.nowFunc = time.Now
	}
	return g
}

// LoginPath is where rejected requests are sent
func (g *Gatekeeper) LoginPath() string {
	return g.loginPath
}

// Decide gates a request given its cookie values.
func (g *Gatekeeper) Decide(ctx context.Context, tokens sessions.Tokens) Decision {
	decision := g.decide(ctx, tokens)
	g.metrics.Decision(decision.Outcome.String())
	return decision
}

func (g *Gatekeeper) decide(ctx context.Context, tokens sessions.Tokens) Decision {
	if tokens.AccessToken == "" {
		return Decision{Outcome: RedirectToLogin}
	}

	identity, err := g.verifier.VerifyAccess(tokens.AccessToken)
	if err == nil {
		return Decision{Outcome: PassThrough, Identity: identity}
	}
	if !apperrors.Is(err, apperrors.ErrTokenExpired) && !g.refreshAnyFailure {
		log.Debug().Err(err).Msg("access token rejected without refresh")
		return reject(err)
	}
	if tokens.RefreshToken == "" {
		return reject(apperrors.Wrapf(apperrors.ErrRefreshFailed, "no refresh token after: %v", err))
	}

	start := g.nowFunc()
	refreshed, err := g.refresher.Refresh(ctx, tokens.RefreshToken)
	g.metrics.RefreshDuration(g.nowFunc().Sub(start))
	if err != nil {
		log.Debug().Err(err).Msg("session refresh failed")
		return reject(err)
	}

	identity, err = g.verifier.VerifyAccess(refreshed.AccessToken)
	if err != nil {
		return reject(apperrors.Wrapf(apperrors.ErrRefreshFailed, "refreshed access token rejected: %v", err))
	}

	pair := refreshed.Tokens()
	return Decision{
		Outcome:  PassThroughRotated,
		Identity: identity,
		Tokens:   &pair,
	}
}

func reject(err error) Decision {
	return Decision{
		Outcome:      RedirectToLogin,
		ClearCookies: true,
		Err:          err,
	}
}

// Middleware applies Decide to every request, in the server's middleware shape.
func (g *Gatekeeper) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r.Context(), sessions.ReadTokens(r))

		switch decision.Outcome {
		case RedirectToLogin:
			if decision.ClearCookies {
				sessions.ClearTokens(w)
			}
			http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
			return
		case PassThroughRotated:
			sessions.SetTokens(w, *decision.Tokens)
		}

		next(w, r.WithContext(WithIdentity(r.Context(), decision.Identity)))
	}
}
