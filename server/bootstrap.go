package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-server/auth"
	"github.com/jrsteele09/go-session-server/gatekeeper"
	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/internal/metrics"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/token/refresh"
	"github.com/jrsteele09/go-session-server/token/refresh/redisrepo"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/jrsteele09/go-session-server/users/postgresrepo"
	fakeuserrepo "github.com/jrsteele09/go-session-server/users/repofake"
	"github.com/jrsteele09/go-session-server/users/sqliterepo"
	"github.com/rs/zerolog/log"
)

const sqlitePrefix = "sqlite:"

// Bootstrap builds the stores, token services and gatekeeper described by cfg and
// returns a ready Server. The returned func releases the stores.
func Bootstrap(ctx context.Context, cfg config.Config) (*Server, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	userRepo, closeUsers, err := OpenUserRepo(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("[Server Bootstrap] user store: %w", err)
	}
	closers = append(closers, closeUsers)

	if err := SeedUser(ctx, userRepo, cfg.GetSeedUser()); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("[Server Bootstrap] seed user: %w", err)
	}

	rotation, closeRotation, err := OpenRotationManager(ctx, cfg.GetRedisURL(), cfg.GetRotationGracePeriod())
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("[Server Bootstrap] rotation registry: %w", err)
	}
	closers = append(closers, closeRotation)

	m := metrics.New()
	issuer := token.NewIssuer(cfg)
	verifierOptions := []token.VerifierOption{}
	if rotation != nil {
		verifierOptions = append(verifierOptions, token.WithRotationManager(rotation))
	}
	verifier := token.NewVerifier(issuer, verifierOptions...)

	authService, err := auth.NewService(auth.Repos{Users: userRepo}, issuer, verifier, auth.WithMetrics(m))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	refresher, err := NewRefresher(cfg, verifier)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	gk := gatekeeper.New(verifier, refresher,
		gatekeeper.WithLoginPath(cfg.GetLoginPath()),
		gatekeeper.WithRefreshOnAnyFailure(!cfg.GetRefreshOnExpiryOnly()),
		gatekeeper.WithMetrics(m),
	)

	s, err := New(cfg, Dependencies{
		Auth:       authService,
		Verifier:   verifier,
		Gatekeeper: gk,
		Metrics:    m,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return s, closeAll, nil
}

// OpenUserRepo selects the user store from DATABASE_URL
func OpenUserRepo(ctx context.Context, databaseURL string) (users.UserRepo, func(), error) {
	switch {
	case databaseURL == "" || databaseURL == "memory":
		log.Warn().Msg("using in-memory user store, users are lost on restart")
		return fakeuserrepo.NewFakeUserRepo(), func() {}, nil

	case strings.HasPrefix(databaseURL, sqlitePrefix):
		repo, err := sqliterepo.Open(strings.TrimPrefix(databaseURL, sqlitePrefix))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := postgresrepo.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := postgresrepo.New(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil

	default:
		return nil, nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "unsupported DATABASE_URL scheme")
	}
}

// OpenRotationManager connects the Redis rotation registry. An empty URL returns
// a nil manager and sessions stay stateless.
func OpenRotationManager(ctx context.Context, redisURL string, grace time.Duration) (*refresh.Manager, func(), error) {
	if redisURL == "" {
		return nil, func() {}, nil
	}
	repo, err := redisrepo.NewFromURL(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	return refresh.NewManager(repo, refresh.WithGracePeriod(grace)), func() { _ = repo.Close() }, nil
}

// NewRefresher picks the gatekeeper's refresh transport from REFRESH_MODE
func NewRefresher(cfg config.GatekeeperConfig, verifier *token.Verifier) (gatekeeper.Refresher, error) {
	mode, err := cfg.GetRefreshMode()
	if err != nil {
		return nil, err
	}
	if mode == config.RefreshModeLocal {
		return gatekeeper.NewLocalRefresher(verifier), nil
	}
	return gatekeeper.NewHTTPRefresher(cfg.GetRefreshURL(), cfg.GetRefreshTimeout(), nil), nil
}

// SeedUser creates the configured startup account unless it already exists.
func SeedUser(ctx context.Context, repo users.UserRepo, seed *config.SeedUser) error {
	if seed == nil {
		return nil
	}
	if _, err := repo.GetByEmail(ctx, seed.Email); err == nil {
		return nil
	} else if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return err
	}

	if err := users.ValidatePasswordStrength(seed.Password); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidConfig, "SEED_USER_PASSWORD: %v", err)
	}
	hash, err := users.HashPassword(seed.Password)
	if err != nil {
		return err
	}
	if err := repo.Upsert(ctx, &users.User{Email: seed.Email, Name: seed.Name, PasswordHash: hash}); err != nil {
		return err
	}
	log.Info().Str("email", users.NormalizeEmail(seed.Email)).Msg("seeded user")
	return nil
}
