// Package redisrepo stores rotation identifiers in Redis, one key per session.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token/refresh"
	"github.com/redis/go-redis/v9"
)

var _ refresh.Repo = (*Repo)(nil)

// DefaultPrefix namespaces rotation keys
const DefaultPrefix = "rot"

const (
	rotateStatusMissing  int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
	rotateStatusRaced    int64 = 3
)

// KEYS[1] current id, KEYS[2] previous id
// ARGV: presented id, next id, ttl ms, grace ms
const rotateScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return {0, ""}
end
if current == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  if tonumber(ARGV[4]) > 0 then
    redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[4])
  else
    redis.call("DEL", KEYS[2])
  end
  return {2, ARGV[2]}
end
if redis.call("GET", KEYS[2]) == ARGV[1] then
  return {3, current}
end
return {1, ""}
`

var rotateLua = redis.NewScript(rotateScript)

// Repo is a Redis-backed refresh.Repo
type Repo struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Repo. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Repo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repo{
		redis:  client,
		prefix: prefix,
	}
}

// NewFromURL parses a redis:// URL and checks the server is reachable.
func NewFromURL(ctx context.Context, url string) (*Repo, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, ""), nil
}

// Both keys of a session share a hash tag so the script runs on one cluster slot.
func (r *Repo) key(sessionID string) string {
	return r.prefix + ":{" + sessionID + "}"
}

func (r *Repo) previousKey(sessionID string) string {
	return r.key(sessionID) + ":prev"
}

func (r *Repo) Register(ctx context.Context, sessionID, tokenID string, ttl time.Duration) error {
	return r.redis.Set(ctx, r.key(sessionID), tokenID, ttl).Err()
}

func (r *Repo) Rotate(ctx context.Context, sessionID, presentedID, nextID string, ttl, grace time.Duration) (string, error) {
	keys := []string{r.key(sessionID), r.previousKey(sessionID)}
	res, err := rotateLua.Run(ctx, r.redis, keys, presentedID, nextID, ttl.Milliseconds(), grace.Milliseconds()).Slice()
	if err != nil {
		return "", fmt.Errorf("rotate session %s: %w", sessionID, err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("rotate session %s: unexpected reply %v", sessionID, res)
	}
	status, _ := res[0].(int64)
	current, _ := res[1].(string)

	switch status {
	case rotateStatusRotated, rotateStatusRaced:
		return current, nil
	case rotateStatusMismatch:
		return "", apperrors.ErrRefreshTokenReused
	case rotateStatusMissing:
		return "", apperrors.ErrSessionRevoked
	default:
		return "", fmt.Errorf("rotate session %s: unexpected status %d", sessionID, status)
	}
}

func (r *Repo) Revoke(ctx context.Context, sessionID string) error {
	return r.redis.Del(ctx, r.key(sessionID), r.previousKey(sessionID)).Err()
}

func (r *Repo) Current(ctx context.Context, sessionID string) (string, error) {
	tokenID, err := r.redis.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrSessionRevoked
	}
	if err != nil {
		return "", err
	}
	return tokenID, nil
}

// Close releases the underlying client
func (r *Repo) Close() error {
	return r.redis.Close()
}
