package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

func TestLogger_WritesAllLevels(t *testing.T) {
	var output bytes.Buffer
	logger := NewLogger(zerolog.New(&output).Level(zerolog.DebugLevel))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := bytes.Split(bytes.TrimSpace(output.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)

	levels := []string{"debug", "info", "warn", "error"}
	for i, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, levels[i], entry["level"])
	}
}

func TestLogger_Fields(t *testing.T) {
	var output bytes.Buffer
	logger := NewLogger(zerolog.New(&output))

	logger.Info("generation attempt",
		hookgen.Field{Key: "request_id", Value: "req-1"},
		hookgen.Field{Key: "attempt", Value: 2},
		hookgen.Field{Key: "admin", Value: true},
		hookgen.Field{Key: "extra", Value: []string{"a", "b"}},
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	assert.Equal(t, "generation attempt", entry["message"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.Equal(t, true, entry["admin"])
	assert.Equal(t, []interface{}{"a", "b"}, entry["extra"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var output bytes.Buffer
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Zero(t, output.Len())

	logger.Warn("shown")
	assert.NotZero(t, output.Len())
}

func TestLogger_ImplementsInterface(t *testing.T) {
	var _ hookgen.Logger = NewLogger(zerolog.Nop())
}
