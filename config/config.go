// SPDX-License-Identifier: EPL-2.0

// Package config holds the server tunables: audio device sizing, DBAP,
// analysis, scheduler, OSC and logging. Files are JSON with comments.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

var ErrInvalid = errors.New("invalid configuration")

// Backend names an audio device implementation.
type Backend string

const (
	BackendPortAudio Backend = "portaudio"
	BackendOto       Backend = "oto"
	BackendHeadless  Backend = "headless"
)

// Duration is a time.Duration written as "16ms" in config files.
type Duration struct{ time.Duration }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v

	return nil
}

type Audio struct {
	Backend           Backend  `json:"backend"`
	SampleRate        int      `json:"sample_rate"`
	BlockFrames       int      `json:"block_frames"`
	OutputChannels    int      `json:"output_channels"`
	InputChannels     int      `json:"input_channels"`
	InputLatency      Duration `json:"input_latency"`
	MaxSounds         int      `json:"max_sounds"`
	MaxSpeakers       int      `json:"max_speakers"`
	MaxSourceChannels int      `json:"max_source_channels"`
	CommandQueue      int      `json:"command_queue"`
	EventQueue        int      `json:"event_queue"`
}

type DBAP struct {
	Rolloff float64 `json:"rolloff_db"`
	Blur    float64 `json:"blur"`
}

type Analysis struct {
	FFTSize    int     `json:"fft_size"`
	ReportRate float64 `json:"report_rate"`
}

type Scheduler struct {
	Tick      Duration `json:"tick"`
	WalkSigma float64  `json:"walk_sigma"`
}

type OSC struct {
	Listen      string  `json:"listen"`
	MaxSendRate float64 `json:"max_send_rate"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type Config struct {
	Audio     Audio     `json:"audio"`
	DBAP      DBAP      `json:"dbap"`
	Analysis  Analysis  `json:"analysis"`
	Scheduler Scheduler `json:"scheduler"`
	OSC       OSC       `json:"osc"`
	Log       Log       `json:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: Audio{
			Backend:           BackendPortAudio,
			SampleRate:        48000,
			BlockFrames:       512,
			OutputChannels:    8,
			InputLatency:      Duration{20 * time.Millisecond},
			MaxSounds:         256,
			MaxSpeakers:       64,
			MaxSourceChannels: 8,
			CommandQueue:      1024,
			EventQueue:        1024,
		},
		DBAP:      DBAP{Rolloff: 6, Blur: 0.1},
		Analysis:  Analysis{FFTSize: 1024, ReportRate: 30},
		Scheduler: Scheduler{Tick: Duration{16 * time.Millisecond}, WalkSigma: 0.5},
		OSC:       OSC{MaxSendRate: 60},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// maxFileSize keeps a mistyped path from reading something huge.
const maxFileSize = 1 << 20

// Load reads path over the defaults, so a partial file only overrides what
// it names. The result is validated.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	a := &c.Audio
	switch a.Backend {
	case BackendPortAudio, BackendOto, BackendHeadless:
	default:
		return fmt.Errorf("%w: audio.backend %q", ErrInvalid, a.Backend)
	}

	for _, f := range []struct {
		name string
		v    int
	}{
		{"audio.sample_rate", a.SampleRate},
		{"audio.block_frames", a.BlockFrames},
		{"audio.output_channels", a.OutputChannels},
		{"audio.max_sounds", a.MaxSounds},
		{"audio.max_speakers", a.MaxSpeakers},
		{"audio.max_source_channels", a.MaxSourceChannels},
		{"audio.command_queue", a.CommandQueue},
		{"audio.event_queue", a.EventQueue},
	} {
		if f.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, f.name, f.v)
		}
	}

	// every playing sound must be able to report its end within one block
	if a.EventQueue < a.MaxSounds {
		return fmt.Errorf("%w: audio.event_queue %d is smaller than audio.max_sounds %d",
			ErrInvalid, a.EventQueue, a.MaxSounds)
	}
	if a.InputChannels < 0 {
		return fmt.Errorf("%w: audio.input_channels must not be negative", ErrInvalid)
	}
	if a.InputLatency.Duration < 0 {
		return fmt.Errorf("%w: audio.input_latency must not be negative", ErrInvalid)
	}
	if c.DBAP.Rolloff < 0 || c.DBAP.Blur < 0 {
		return fmt.Errorf("%w: dbap values must not be negative", ErrInvalid)
	}
	if n := c.Analysis.FFTSize; n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("%w: analysis.fft_size %d is not a power of two", ErrInvalid, n)
	}
	if c.Analysis.ReportRate < 0 {
		return fmt.Errorf("%w: analysis.report_rate must not be negative", ErrInvalid)
	}
	if c.Scheduler.Tick.Duration <= 0 {
		return fmt.Errorf("%w: scheduler.tick must be positive", ErrInvalid)
	}
	if c.Scheduler.WalkSigma < 0 {
		return fmt.Errorf("%w: scheduler.walk_sigma must not be negative", ErrInvalid)
	}
	if c.OSC.Listen != "" {
		if _, _, err := net.SplitHostPort(c.OSC.Listen); err != nil {
			return fmt.Errorf("%w: osc.listen: %w", ErrInvalid, err)
		}
	}
	if c.OSC.MaxSendRate < 0 {
		return fmt.Errorf("%w: osc.max_send_rate must not be negative", ErrInvalid)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}

	return nil
}

// InputLatencyFrames is the input latency in frames at the configured rate.
func (a *Audio) InputLatencyFrames() int {
	return int(a.InputLatency.Seconds() * float64(a.SampleRate))
}
