package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()
	m.Decision("pass_through")
	m.Decision("pass_through")
	m.Refresh("rotated")
	m.Login("success")
	m.RefreshDuration(20 * time.Millisecond)

	count, err := testutil.GatherAndCount(m.Registry(),
		"session_gatekeeper_decisions_total",
		"session_refresh_exchanges_total",
		"session_logins_total",
	)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `session_gatekeeper_decisions_total{outcome="pass_through"} 2`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Decision("redirect")
		m.Refresh("failed")
		m.Login("failed")
		m.RefreshDuration(time.Second)
	})
}
