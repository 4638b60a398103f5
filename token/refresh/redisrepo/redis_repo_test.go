package redisrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/refresh/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *redisrepo.Repo) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := redisrepo.New(client, "")
	t.Cleanup(func() { _ = repo.Close() })
	return mr, repo
}

func TestRegisterAndRotate(t *testing.T) {
	ctx := context.Background()
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))
	require.True(t, mr.Exists("rot:{s1}"))

	next, err := repo.Rotate(ctx, "s1", "id-1", "id-2", 10*time.Second, 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, "id-2", next)

	current, err := repo.Current(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "id-2", current)
	require.Equal(t, 10*time.Second, mr.TTL("rot:{s1}"))
	require.Equal(t, 3*time.Second, mr.TTL("rot:{s1}:prev"))
}

func TestRotatePreviousIdentifierInsideGracePeriod(t *testing.T) {
	ctx := context.Background()
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))
	_, err := repo.Rotate(ctx, "s1", "id-1", "id-2", time.Minute, 3*time.Second)
	require.NoError(t, err)

	current, err := repo.Rotate(ctx, "s1", "id-1", "id-3", time.Minute, 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, "id-2", current)

	mr.FastForward(4 * time.Second)
	_, err = repo.Rotate(ctx, "s1", "id-1", "id-4", time.Minute, 3*time.Second)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenReused)
}

func TestRotateWithoutGracePeriod(t *testing.T) {
	ctx := context.Background()
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))
	_, err := repo.Rotate(ctx, "s1", "id-1", "id-2", time.Minute, 0)
	require.NoError(t, err)
	require.False(t, mr.Exists("rot:{s1}:prev"))

	_, err = repo.Rotate(ctx, "s1", "id-1", "id-3", time.Minute, 0)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenReused)
}

func TestRotateReusedIdentifier(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)

	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))
	_, err := repo.Rotate(ctx, "s1", "id-1", "id-2", time.Minute, time.Second)
	require.NoError(t, err)
	_, err = repo.Rotate(ctx, "s1", "id-2", "id-3", time.Minute, time.Second)
	require.NoError(t, err)

	_, err = repo.Rotate(ctx, "s1", "id-1", "id-4", time.Minute, time.Second)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenReused)

	current, err := repo.Current(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "id-3", current)
}

func TestRotateUnknownSession(t *testing.T) {
	_, repo := newTestRepo(t)
	_, err := repo.Rotate(context.Background(), "missing", "id-1", "id-2", time.Minute, time.Second)
	require.ErrorIs(t, err, apperrors.ErrSessionRevoked)
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := repo.Current(ctx, "s1")
	require.ErrorIs(t, err, apperrors.ErrSessionRevoked)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	mr, repo := newTestRepo(t)
	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))
	_, err := repo.Rotate(ctx, "s1", "id-1", "id-2", time.Minute, time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Revoke(ctx, "s1"))
	require.NoError(t, repo.Revoke(ctx, "s1"))
	require.Empty(t, mr.Keys())

	_, err = repo.Current(ctx, "s1")
	require.ErrorIs(t, err, apperrors.ErrSessionRevoked)
}

func TestConcurrentRotationConverges(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			current, err := repo.Rotate(ctx, "s1", "id-1", "next-"+string(rune('a'+i)), time.Minute, time.Minute)
			if err != nil {
				current = "error: " + err.Error()
			}
			results <- current
		}(i)
	}
	wg.Wait()
	close(results)

	// One worker installs its identifier; the rest are handed the same one.
	stored, err := repo.Current(ctx, "s1")
	require.NoError(t, err)
	for current := range results {
		require.Equal(t, stored, current)
	}
}

func TestConcurrentRotationWithoutGraceHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	require.NoError(t, repo.Register(ctx, "s1", "id-1", time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Rotate(ctx, "s1", "id-1", "next-"+string(rune('a'+i)), time.Minute, 0)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenReused)
	}
	require.Equal(t, 1, succeeded)
}
