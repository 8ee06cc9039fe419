// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/soundscape/utils"
)

// Resampler streams src at a new sample rate using Catmull-Rom interpolation.
// It works on interleaved frames and keeps the channel count. When
// downsampling a one-pole low-pass runs ahead of the interpolator.
type Resampler struct {
	src      Source
	dstRate  int
	ratio    float64 // source frames consumed per output frame
	channels int

	// window[0..3] hold frames t-1, t0, t+1 and t+2; pos is the fractional
	// position between window[1] and window[2].
	window [4][]float32
	valid  [4]bool
	primed bool
	pos    float64
	eof    bool

	frame []float32

	lowpass bool
	alpha   float32
	state   []float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	ratio := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		ratio:    ratio,
		channels: channels,
		frame:    make([]float32, channels),
		lowpass:  ratio > 1,
		alpha:    0.5,
		state:    make([]float32, channels),
	}
	for i := range r.window {
		r.window[i] = make([]float32, channels)
	}

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

// pull reads one frame from the source into r.frame.
func (r *Resampler) pull() (bool, error) {
	if r.eof {
		return false, nil
	}

	n, err := r.src.ReadSamples(r.frame)
	if errors.Is(err, io.EOF) {
		r.eof = true
	} else if err != nil {
		return false, fmt.Errorf("%w", err)
	}
	if n < r.channels {
		return false, nil
	}

	if r.lowpass {
		if !r.primed {
			copy(r.state, r.frame)
		}
		for c, v := range r.frame {
			r.state[c] = r.alpha*v + (1-r.alpha)*r.state[c]
			r.frame[c] = r.state[c]
		}
	}

	return true, nil
}

// prime fills the whole window, repeating the last frame for a short source.
func (r *Resampler) prime() error {
	for i := range r.window {
		ok, err := r.pull()
		if err != nil {
			return err
		}
		if !ok {
			if i == 0 {
				return io.EOF
			}
			for j := i; j < len(r.window); j++ {
				copy(r.window[j], r.window[i-1])
				r.valid[j] = true
			}
			break
		}
		copy(r.window[i], r.frame)
		r.valid[i] = true
		r.primed = true
	}
	r.primed = true

	return nil
}

// advance shifts the window one frame forward.
func (r *Resampler) advance() error {
	first := r.window[0]
	copy(r.window[:], r.window[1:])
	copy(r.valid[:], r.valid[1:])
	r.window[3] = first

	ok, err := r.pull()
	if err != nil {
		return err
	}
	r.valid[3] = ok
	if ok {
		copy(r.window[3], r.frame)
	}
	if !r.valid[2] {
		return io.EOF
	}

	return nil
}

// ReadSamples produces output at the target rate. len(dst) must be a
// multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	frames := len(dst) / r.channels
	written := 0

	for written < frames {
		for r.pos >= 1 {
			r.pos--
			if err := r.advance(); err != nil {
				if errors.Is(err, io.EOF) {
					return written * r.channels, io.EOF
				}
				return written * r.channels, err
			}
		}

		y0, y1, y2, y3 := r.window[0], r.window[1], r.window[2], r.window[3]
		if !r.valid[3] {
			y3 = y2
		}

		x := float32(r.pos)
		out := dst[written*r.channels : (written+1)*r.channels]
		for c := range out {
			out[c] = utils.CubicInterpolate(y0[c], y1[c], y2[c], y3[c], x)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
