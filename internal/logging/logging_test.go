package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-session-server/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logging.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, logging.ParseLevel(" warning "))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel("nonsense"))
	require.Equal(t, zerolog.Disabled, logging.ParseLevel("off"))
}

func TestSetupWriterJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logger := logging.SetupWriter(&buf, "PROD", "warn")
	logger.Info().Msg("hidden")
	logger.Warn().Str("session_id", "s1").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "s1", entry["session_id"])
	require.Equal(t, "warn", entry["level"])
}
