package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewConsoleLogger(WithOutput(&buf), WithLevel(ports.LevelWarn))
	ctx := context.Background()

	l.Debug(ctx, "debug message")
	l.Info(ctx, "info message")
	assert.Empty(t, buf.String())

	l.Warn(ctx, "warn message")
	l.Error(ctx, "error message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "error message")
}

func TestConsoleLogger_TextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewConsoleLogger(WithOutput(&buf))

	l.Info(context.Background(), "loading", ports.F("mod", "my-mod"), ports.F("progress", 0.5))

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "loading")
	assert.Contains(t, out, "mod=my-mod")
	assert.Contains(t, out, "progress=0.5")
}

func TestConsoleLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewConsoleLogger(WithOutput(&buf), WithJSONFormat(true))

	l.Info(context.Background(), "loading", ports.F("mod", "my-mod"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "loading", entry["msg"])
	assert.Equal(t, "my-mod", entry["mod"])
	assert.NotEmpty(t, entry["time"])
}

func TestConsoleLogger_WithCarriesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewConsoleLogger(WithOutput(&buf))

	scoped := l.With(ports.F("mod", "my-mod"))
	scoped.Info(context.Background(), "loaded", ports.F("attempt", "a1"))

	out := buf.String()
	assert.Contains(t, out, "mod=my-mod")
	assert.Contains(t, out, "attempt=a1")
}

func TestNopLogger_ImplementsLogger(t *testing.T) {
	t.Parallel()

	l := NewNopLogger()
	l.Info(context.Background(), "ignored")
	assert.Same(t, l, l.With(ports.F("k", "v")))
}
