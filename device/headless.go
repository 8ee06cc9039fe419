// SPDX-License-Identifier: EPL-2.0

package device

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape/formats/wav"
)

// RenderBitDepth is the sample size of offline renders.
const RenderBitDepth = 24

// Clock renders in wall-clock time without audio hardware, one block per
// block period. Output goes to sink when set and is discarded otherwise.
type Clock struct {
	cfg  Config
	r    Renderer
	sink func([]float32) error
	buf  []float32
}

func NewClock(cfg Config, r Renderer, sink func([]float32) error) *Clock {
	return &Clock{cfg: cfg, r: r, sink: sink, buf: make([]float32, cfg.BlockFrames*cfg.OutputChannels)}
}

func (c *Clock) Name() string { return Headless }

func (c *Clock) Run(ctx context.Context) error {
	period := time.Duration(c.cfg.BlockFrames) * time.Second / time.Duration(c.cfg.SampleRate)
	tick := time.NewTicker(period)
	defer tick.Stop()

	logrus.WithFields(logrus.Fields{
		"function": "Clock.Run",
		"period":   period,
	}).Info("headless clock started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			c.r.Process(c.buf)
			if c.sink == nil {
				continue
			}
			if err := c.sink(c.buf); err != nil {
				return fmt.Errorf("%w: %w", ErrStream, err)
			}
		}
	}
}

// Render runs r offline for d and writes the result as a multichannel WAV.
// before, when set, is called ahead of every block with the time rendered
// so far, which lets a caller drive control-rate work in step.
func Render(w io.WriteSeeker, cfg Config, r Renderer, d time.Duration, before func(time.Duration)) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	out, err := wav.NewWriter(w, cfg.SampleRate, cfg.OutputChannels, RenderBitDepth)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	total := int(d.Seconds() * float64(cfg.SampleRate))
	buf := make([]float32, cfg.BlockFrames*cfg.OutputChannels)

	for done := 0; done < total; {
		n := min(cfg.BlockFrames, total-done)
		if before != nil {
			before(time.Duration(done) * time.Second / time.Duration(cfg.SampleRate))
		}

		block := buf[:n*cfg.OutputChannels]
		r.Process(block)
		if err := out.Write(block); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		done += n
	}

	return out.Close()
}
