package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(Options{Output: buf, Level: level, Format: FormatJSON})
	return l, buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_WritesJSONWithFields(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)

	l.With(Component("streak")).Info("claimed",
		Identity("email:a@b.c"),
		XPAmount(60),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "claimed", entry["message"])
	assert.Equal(t, "streak", entry["component"])
	assert.Equal(t, "email:a@b.c", entry["identity"])
	assert.Equal(t, float64(60), entry["xp_amount"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_RespectsLevel(t *testing.T) {
	l, buf := newBufferLogger(LevelWarn)

	l.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_WithLevelDoesNotAffectParent(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	verbose := l.WithLevel(LevelDebug)

	l.Debug("parent-debug")
	assert.NotContains(t, buf.String(), "parent-debug")

	verbose.Debug("child-debug")
	assert.Contains(t, buf.String(), "child-debug")
}

func TestContextRoundTrip(t *testing.T) {
	l, _ := newBufferLogger(LevelInfo)
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
