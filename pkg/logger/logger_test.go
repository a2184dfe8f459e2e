package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mhi.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "mhi-rebal"})
	require.NoError(t, err)

	week := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	l.Component("advisor").Info("decision computed",
		String("bucket", "LOW"),
		Float("signal", -1.9),
		Int("recent", 3),
		Bool("actionable", true),
		Date("week", week),
		Duration("took", 1500*time.Millisecond),
	)
	l.Debug("dropped below level")
	l.With(String("run_id", "r1")).Warn("feed unavailable", Error(errors.New("timeout")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "mhi-rebal", first["service"])
	assert.Equal(t, "advisor", first["component"])
	assert.Equal(t, "LOW", first["bucket"])
	assert.Equal(t, -1.9, first["signal"])
	assert.Equal(t, "2024-03-08", first["week"])
	assert.Equal(t, float64(1500), first["took"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "r1", second["run_id"])
	assert.Equal(t, "timeout", second["error"])
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFieldAccessors(t *testing.T) {
	f := Error(nil)
	assert.Equal(t, "error", f.Key())
	assert.Nil(t, f.Value())
	assert.Equal(t, 42, Int("n", 42).Value())
}
