package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/seqprep/pkg/scale"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, []string{"close"}, c.Data.Fields)
	assert.Equal(t, []string{"close"}, c.Data.TargetFields)
	assert.Equal(t, 30, c.Prepare.SeqLength)
	assert.Equal(t, 0.2, c.Prepare.TestFraction)
	assert.Equal(t, 0.2, c.Prepare.ValFraction)
	assert.Equal(t, "train", c.Prepare.FitScope)
	assert.Equal(t, scale.DefaultConfig(), c.Scaler.Scale())
	assert.False(t, c.NATS.Enabled)
	assert.Equal(t, 30*time.Second, c.NATS.AckWait)
	assert.Equal(t, 3, c.NATS.MaxDeliver)
	assert.Equal(t, "seq_windows", c.Milvus.Collection)
	assert.Equal(t, 128, c.Milvus.Nlist)
	assert.False(t, c.Milvus.Recreate)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
data:
  csv_path: data/BTCUSDT_1d.csv
  fields: [close, volume, log_return]
  target_fields: [close]
prepare:
  seq_length: 10
  test_fraction: 0.1
  val_fraction: 0
  fit_scope: all
scaler:
  kind: minmax
  low: -1
  high: 1
nats:
  enabled: true
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/BTCUSDT_1d.csv", c.Data.CSVPath)
	assert.Equal(t, []string{"close", "volume", "log_return"}, c.Data.Fields)
	assert.Equal(t, 10, c.Prepare.SeqLength)
	assert.Equal(t, 0.1, c.Prepare.TestFraction)
	assert.Equal(t, 0.0, c.Prepare.ValFraction)
	assert.Equal(t, "all", c.Prepare.FitScope)
	assert.Equal(t, scale.Config{Kind: scale.KindMinMax, Low: -1, High: 1}, c.Scaler.Scale())
	assert.True(t, c.NATS.Enabled)
	assert.Equal(t, "nats://localhost:4222", c.NATS.URL)
	assert.Equal(t, 4, c.Prepare.Workers, "unset keys keep defaults")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"seq length", "prepare: {seq_length: 0}", "Prepare.SeqLength"},
		{"test fraction one", "prepare: {test_fraction: 1}", "Prepare.TestFraction"},
		{"fit scope", "prepare: {fit_scope: val}", "Prepare.FitScope"},
		{"scaler kind", "scaler: {kind: robust}", "Scaler.Kind"},
		{"range", "scaler: {low: 1, high: 1}", "scaler.low"},
		{"target not a field", "data: {fields: [close], target_fields: [volume]}", "target_fields"},
		{"duplicate field", "data: {fields: [close, close]}", "duplicate"},
		{"empty fields", "data: {fields: []}", "Data.Fields"},
		{"nats url", "nats: {enabled: true, url: ''}", "NATS.URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("SEQPREP_CSV", "/tmp/klines.csv")
	t.Setenv("SEQPREP_SEQ_LENGTH", "14")
	t.Setenv("SEQPREP_NATS_URL", "nats://broker:4222")

	c, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/klines.csv", c.Data.CSVPath)
	assert.Equal(t, 14, c.Prepare.SeqLength)
	assert.True(t, c.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", c.NATS.URL)

	t.Setenv("SEQPREP_SEQ_LENGTH", "x")
	_, err = LoadWithEnv("")
	assert.Error(t, err)
}

func TestLoadExampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "volume", "log_return", "realized_vol"}, c.Data.Fields)
	assert.Equal(t, "train", c.Prepare.FitScope)
	assert.Equal(t, 30*time.Second, c.NATS.AckWait)
}
