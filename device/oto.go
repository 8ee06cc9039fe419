// SPDX-License-Identifier: EPL-2.0

//go:build !headless

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// OtoMaxChannels is the widest layout oto can open.
const OtoMaxChannels = 2

// otoDevice pulls blocks from the renderer as oto drains its buffer. It has
// no capture side.
type otoDevice struct {
	cfg     Config
	r       Renderer
	ctx     *oto.Context
	samples []float32 // one block
	watch   *Watchdog
}

func openOto(cfg Config, r Renderer) (Device, error) {
	if cfg.OutputChannels > OtoMaxChannels {
		return nil, fmt.Errorf("%w: oto plays at most %d channels, got %d",
			ErrUnsupported, OtoMaxChannels, cfg.OutputChannels)
	}
	if cfg.InputChannels > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "openOto",
			"inputs":   cfg.InputChannels,
		}).Warn("oto has no capture; live sources will be silent")
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.OutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(cfg.BlockFrames) * time.Second / time.Duration(cfg.SampleRate),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: oto context: %w", ErrStream, err)
	}
	<-ready

	return &otoDevice{
		cfg:     cfg,
		r:       r,
		ctx:     ctx,
		samples: make([]float32, cfg.BlockFrames*cfg.OutputChannels),
		watch:   NewWatchdog("oto output", StallWindow(cfg)),
	}, nil
}

func (d *otoDevice) Name() string { return Oto }

// Read implements io.Reader for the oto player. Requests larger than a
// block are rendered block by block.
func (d *otoDevice) Read(p []byte) (int, error) {
	d.watch.Beat()
	return fillFloat32LE(p, d.samples, d.cfg.OutputChannels, d.r), nil
}

func (d *otoDevice) Run(ctx context.Context) error {
	player := d.ctx.NewPlayer(d)
	defer player.Close()

	player.Play()

	logrus.WithFields(logrus.Fields{
		"function":    "otoDevice.Run",
		"sample_rate": d.cfg.SampleRate,
		"outputs":     d.cfg.OutputChannels,
	}).Info("oto player started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stalled := make(chan error, 1)
	go func() { stalled <- d.watch.Watch(ctx) }()

	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-stalled:
			if err != nil {
				return err
			}
		case <-poll.C:
			if err := player.Err(); err != nil {
				return fmt.Errorf("%w: oto player: %w", ErrStream, err)
			}
		}
	}
}
