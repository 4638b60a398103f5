package gatekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/token"
)

// maxResponseBytes bounds the refresh endpoint's reply
const maxResponseBytes = 1 << 16

// SessionRefresher performs the refresh exchange in process
type SessionRefresher interface {
	RefreshSession(ctx context.Context, sealed string) (*token.TokenPair, error)
}

// HTTPRefresher calls the refresh endpoint over HTTP
type HTTPRefresher struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPRefresher creates a refresher posting to url. A nil client uses
// http.DefaultClient.
func NewHTTPRefresher(url string, timeout time.Duration, client *http.Client) *HTTPRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRefresher{
		url:     url,
		client:  client,
		timeout: timeout,
	}
}

// Refresh posts {"refresh": sealedRefresh}. Transport errors, timeouts, non-2xx
// responses and unreadable bodies are all ErrRefreshFailed.
func (h *HTTPRefresher) Refresh(ctx context.Context, sealedRefresh string) (*sessions.RefreshResponse, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	body, err := json.Marshal(sessions.RefreshRequest{Refresh: sealedRefresh})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "call %s: %v", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "refresh endpoint returned %d", resp.StatusCode)
	}

	var refreshed sessions.RefreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&refreshed); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRefreshFailed, "decode response: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		return nil, fmt.Errorf("%w: response missing tokens", apperrors.ErrRefreshFailed)
	}
	return &refreshed, nil
}

// LocalRefresher runs the refresh exchange without a network hop
type LocalRefresher struct {
	verifier SessionRefresher
}

func NewLocalRefresher(s SessionRefresher) *LocalRefresher {
	return &LocalRefresher{verifier: s}
}

func (l *LocalRefresher) Refresh(ctx context.Context, sealedRefresh string) (*sessions.RefreshResponse, error) {
	pair, err := l.verifier.RefreshSession(ctx, sealedRefresh)
	if err != nil {
		return nil, err
	}
	return &sessions.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}
