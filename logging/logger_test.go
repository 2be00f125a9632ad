package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestCrewLogger_JSONAttrs(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("orchestrator").
		WithSession("user-1", "sess-1").
		WithContext("team", "support")

	l.Info("agent selected", "agent", "Health Assistant")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "agent selected", rec["msg"])
	assert.Equal(t, "orchestrator", rec["component"])
	assert.Equal(t, "user-1", rec["user_id"])
	assert.Equal(t, "sess-1", rec["session_id"])
	assert.Equal(t, "support", rec["team"])
	assert.Equal(t, "Health Assistant", rec["agent"])
}

func TestCrewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCrewLogger_LogToolCallFailure(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	l.LogToolCall("get_weather", 5*time.Millisecond, false, errors.New("boom"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Tool execution failed", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}

func TestCrewLogger_LogClassification(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	l.LogClassification("Weather Agent", 0.9, time.Millisecond)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Classification completed", rec["msg"])
	assert.Equal(t, "Weather Agent", rec["selected_agent"])
	assert.InDelta(t, 0.9, rec["confidence"], 0.0001)

	buf.Reset()
	l.LogClassification("", 0, time.Millisecond)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
}

func TestWithContextDoesNotLeak(t *testing.T) {
	base := NewLogger(nil)
	child := base.WithContext("k", "v")

	assert.Empty(t, base.context)
	assert.Equal(t, "v", child.context["k"])
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Equal(t, l, OrNoOp(l))
}
