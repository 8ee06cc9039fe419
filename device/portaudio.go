// SPDX-License-Identifier: EPL-2.0

//go:build !headless

package device

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape/control"
)

// paDevice drives the renderer from a PortAudio output stream on the default
// output device. Live input comes from a second stream on the default input
// device with its own clock; the ring's reader lag absorbs the drift between
// the two.
type paDevice struct {
	cfg       Config
	r         Renderer
	input     *control.SampleRing
	out       *portaudio.Stream
	in        *portaudio.Stream // nil without input channels
	watch     *Watchdog
	overflows atomic.Uint64
}

func openPortAudio(cfg Config, r Renderer, input *control.SampleRing) (Device, error) {
	if cfg.InputChannels > 0 && input == nil {
		return nil, fmt.Errorf("%w: %d input channels without a ring", ErrUnsupported, cfg.InputChannels)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialise portaudio: %w", ErrStream, err)
	}

	d := &paDevice{
		cfg:   cfg,
		r:     r,
		input: input,
		watch: NewWatchdog("portaudio output", StallWindow(cfg)),
	}

	rate := float64(cfg.SampleRate)
	out, err := portaudio.OpenDefaultStream(0, cfg.OutputChannels, rate, cfg.BlockFrames, d.play)
	if err != nil {
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("%w: open output stream: %w", ErrStream, err)
	}
	d.out = out

	if cfg.InputChannels > 0 {
		in, err := portaudio.OpenDefaultStream(cfg.InputChannels, 0, rate, cfg.BlockFrames, d.capture)
		if err != nil {
			_ = out.Close()
			_ = portaudio.Terminate()

			return nil, fmt.Errorf("%w: open input stream: %w", ErrStream, err)
		}
		d.in = in
	}

	return d, nil
}

func (d *paDevice) Name() string { return PortAudio }

func (d *paDevice) play(out []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.watch.Beat()
	if flags&portaudio.OutputUnderflow != 0 {
		d.watch.Underflow()
	}
	d.r.Process(out)
}

func (d *paDevice) capture(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&portaudio.InputOverflow != 0 {
		d.overflows.Add(1)
	}
	d.input.Write(in)
}

// streams lists the open streams, capture first so input is flowing by the
// time the first output block asks for it.
func (d *paDevice) streams() []*portaudio.Stream {
	if d.in == nil {
		return []*portaudio.Stream{d.out}
	}

	return []*portaudio.Stream{d.in, d.out}
}

func (d *paDevice) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"function": "paDevice.Run"})
}

func (d *paDevice) Run(ctx context.Context) error {
	streams := d.streams()
	defer func() {
		for _, s := range streams {
			if err := s.Close(); err != nil {
				d.log().WithError(err).Warn("failed to close stream")
			}
		}
		_ = portaudio.Terminate()
	}()

	for _, s := range streams {
		if err := s.Start(); err != nil {
			return fmt.Errorf("%w: start: %w", ErrStream, err)
		}
	}

	d.log().WithFields(logrus.Fields{
		"sample_rate": d.cfg.SampleRate,
		"outputs":     d.cfg.OutputChannels,
		"inputs":      d.cfg.InputChannels,
		"block":       d.cfg.BlockFrames,
	}).Info("portaudio streams started")

	err := d.watch.Watch(ctx)

	if n := d.overflows.Load(); n > 0 {
		d.log().WithField("overflows", n).Warn("input overflowed")
	}

	// A stalled stream may never drain, so it is aborted instead of stopped.
	for _, s := range streams {
		stop := s.Stop
		if err != nil {
			stop = s.Abort
		}
		if serr := stop(); serr != nil && err == nil {
			err = fmt.Errorf("%w: stop: %w", ErrStream, serr)
		}
	}

	return err
}
