// SPDX-License-Identifier: EPL-2.0

package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/ik5/soundscape/control"
)

// Backend names accepted by Open.
const (
	PortAudio = "portaudio"
	Oto       = "oto"
	Headless  = "headless"
)

var (
	ErrUnsupported = errors.New("unsupported device configuration")
	ErrStream      = errors.New("audio stream failed")
)

// Renderer fills one interleaved output block. It is called on the device's
// real-time goroutine.
type Renderer interface {
	Process(out []float32)
}

type Config struct {
	SampleRate     int
	BlockFrames    int
	OutputChannels int
	InputChannels  int
}

func (c Config) validate() error {
	if c.SampleRate <= 0 || c.BlockFrames <= 0 || c.OutputChannels <= 0 || c.InputChannels < 0 {
		return fmt.Errorf("%w: %+v", ErrUnsupported, c)
	}

	return nil
}

// Device is an open audio stream. Run starts it and blocks until ctx is
// done or the stream fails; a failure is fatal for the device and is
// returned wrapped in ErrStream.
type Device interface {
	Run(ctx context.Context) error
	Name() string
}

// Open creates a device for backend. input receives captured frames and
// may be nil when cfg has no input channels.
func Open(backend string, cfg Config, r Renderer, input *control.SampleRing) (Device, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	switch backend {
	case Headless:
		return NewClock(cfg, r, nil), nil
	case PortAudio:
		return openPortAudio(cfg, r, input)
	case Oto:
		return openOto(cfg, r)
	}

	return nil, fmt.Errorf("%w: backend %q", ErrUnsupported, backend)
}
