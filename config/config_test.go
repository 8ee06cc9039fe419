// SPDX-License-Identifier: EPL-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 960, c.Audio.InputLatencyFrames())
}

func TestLoadPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "server.hujson")
	body := `{
		// headless CI render
		"audio": {"backend": "headless", "output_channels": 4, "input_latency": "5ms"},
		"scheduler": {"tick": "10ms"},
		"log": {"level": "debug", "format": "json"},
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendHeadless, c.Audio.Backend)
	assert.Equal(t, 4, c.Audio.OutputChannels)
	assert.Equal(t, 5*time.Millisecond, c.Audio.InputLatency.Duration)
	assert.Equal(t, 10*time.Millisecond, c.Scheduler.Tick.Duration)
	assert.Equal(t, "json", c.Log.Format)

	// Untouched fields keep their defaults.
	assert.Equal(t, 48000, c.Audio.SampleRate)
	assert.Equal(t, 1024, c.Analysis.FFTSize)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"syntax", `{"audio": `},
		{"unknown field", `{"audio": {"sampel_rate": 1}}`},
		{"bad duration", `{"scheduler": {"tick": "soon"}}`},
		{"zero tick", `{"scheduler": {"tick": "0s"}}`},
		{"backend", `{"audio": {"backend": "alsa"}}`},
		{"fft size", `{"analysis": {"fft_size": 1000}}`},
		{"block", `{"audio": {"block_frames": 0}}`},
		{"event queue", `{"audio": {"max_sounds": 64, "event_queue": 32}}`},
		{"listen", `{"osc": {"listen": "nowhere"}}`},
		{"log format", `{"log": {"format": "xml"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.hujson"))
	assert.Error(t, err)
}
