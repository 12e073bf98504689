package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "deckdoc"})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).WithOperation("poller").WithJob("j1").Info().
		Str("status", "running").
		Int("tick", 2).
		Dur("took", time.Millisecond).
		Err(errors.New("boom")).
		Msg("Status fetched")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "deckdoc", line["service"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "poller", line["operation"])
	assert.Equal(t, "j1", line["job_id"])
	assert.Equal(t, "running", line["status"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "Status fetched", line["message"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msgf("shown %d", 1)
	assert.Contains(t, buf.String(), "shown 1")
}

func TestWithContext_NoRequestID(t *testing.T) {
	logger := Nop()
	assert.Same(t, logger, logger.WithContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
