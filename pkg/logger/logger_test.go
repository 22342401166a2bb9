package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel, "json", "")

	log.With(String("series", "BTCUSDT")).Info("prepared",
		Int("windows", 7),
		Float64("mae", 1.5),
		Bool("published", true),
		Duration("took", 1500*time.Millisecond),
		Strings("fields", []string{"close", "volume"}),
		Error(errors.New("boom")),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "prepared", entry["message"])
	assert.Equal(t, "BTCUSDT", entry["series"])
	assert.Equal(t, float64(7), entry["windows"])
	assert.Equal(t, 1.5, entry["mae"])
	assert.Equal(t, true, entry["published"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.Equal(t, "close,volume", entry["fields"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel, "json", "")

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "seqprep.log")
	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info("to file")

	Nop().Error("discarded")
}
