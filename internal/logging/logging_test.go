package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestFileOnlyLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "risklock.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "info",
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})
	logger.Info().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"app":"risklock"`)
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	ctxLogger := FromContext(ctx)
	ctxLogger.Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")

	// Missing logger falls back to a no-op logger.
	fallback := FromContext(context.Background())
	fallback.Info().Msg("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestEventHelpers(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := WithPoller(zerolog.New(&buf), "overview")

	LogAPICall(logger, "GET", "dashboard/overview", "req-1", 200, 12*time.Millisecond, nil)
	LogPoll(logger, 3, time.Millisecond, errors.New("timeout"))
	LogTransition(logger, "overlay", "none", "locked")

	out := buf.String()
	assert.Contains(t, out, `"poller":"overview"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"message":"Poll failed"`)
	assert.Contains(t, out, `"to":"locked"`)
}
