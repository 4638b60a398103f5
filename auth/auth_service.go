package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/internal/metrics"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users users.UserRepo // Repository for user data
}

// Service signs users in and out
type Service struct {
	repos    Repos
	issuer   *token.Issuer
	verifier *token.Verifier
	metrics  *metrics.Metrics
	nowTime  func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, issuer *token.Issuer, verifier *token.Verifier, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] issuer is required")
	}
	if verifier == nil {
		return nil, errors.New("[NewService] verifier is required")
	}

	s := &Service{
		repos:    repos,
		issuer:   issuer,
		verifier: verifier,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login checks the user's password and starts a new session. The access token
// carries the user's previous sign-in time; the new time is persisted.
// Unknown users and wrong passwords are both ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*token.TokenPair, error) {
	pair, err := s.login(ctx, email, password)
	switch {
	case err == nil:
		s.metrics.Login("success")
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		s.metrics.Login("invalid_credentials")
	default:
		s.metrics.Login("error")
	}
	return pair, err
}

func (s *Service) login(ctx context.Context, email, password string) (*token.TokenPair, error) {
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Service.Login] unknown user")
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Service.Login] GetByEmail")
	}

	if !user.CheckPassword(password) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Service.Login] password mismatch")
	}

	now := s.nowTime()
	previousSignIn := user.LastSignInAt
	if err := s.repos.Users.UpdateLastSignIn(ctx, user.ID, now); err != nil {
		return nil, apperrors.Wrapf(err, "[Service.Login] UpdateLastSignIn")
	}

	sessionID, err := newSessionID(now)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Service.Login] session id")
	}

	pair, err := s.issuer.IssueAccessAndRefresh(token.IdentityClaims{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		SessionID:    sessionID,
		LastSignedIn: previousSignIn,
	})
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Track(ctx, pair); err != nil {
		return nil, apperrors.Wrapf(err, "[Service.Login] track session")
	}

	log.Info().Str("user_id", user.ID).Str("session_id", sessionID).Msg("user signed in")
	return pair, nil
}

// Logout forgets the session behind the sealed refresh token. An unreadable
// token is logged and ignored since the cookies are cleared regardless.
func (s *Service) Logout(ctx context.Context, sealedRefresh string) error {
	err := s.verifier.Revoke(ctx, sealedRefresh)
	if err == nil {
		return nil
	}
	if apperrors.IsGatekeepingFailure(err) {
		log.Debug().Err(err).Msg("logout with unreadable refresh token")
		return nil
	}
	return err
}

// newSessionID returns a ULID; sessions sort by start time.
func newSessionID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
