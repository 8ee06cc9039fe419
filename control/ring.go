// SPDX-License-Identifier: EPL-2.0

package control

import "sync/atomic"

// SampleRing carries interleaved input frames from the capture stream to the
// audio goroutine. It has one writer and one reader; the writer never waits
// and overwrites the oldest frames when the reader falls behind.
type SampleRing struct {
	buf      []float32
	channels int
	frames   uint64
	mask     uint64
	written  atomic.Uint64
}

// NewSampleRing allocates room for at least frames frames, rounded up to a
// power of two.
func NewSampleRing(channels, frames int) *SampleRing {
	if channels < 1 {
		channels = 1
	}

	size := uint64(1)
	for size < uint64(max(frames, 1)) {
		size <<= 1
	}

	return &SampleRing{
		buf:      make([]float32, int(size)*channels),
		channels: channels,
		frames:   size,
		mask:     size - 1,
	}
}

func (r *SampleRing) Channels() int { return r.channels }

// Frames is the ring capacity in frames.
func (r *SampleRing) Frames() int { return int(r.frames) }

// Written is the total number of frames ever written.
func (r *SampleRing) Written() uint64 { return r.written.Load() }

// Write appends the whole frames in in.
func (r *SampleRing) Write(in []float32) {
	n := uint64(len(in) / r.channels)
	w := r.written.Load()

	for f := range n {
		slot := ((w + f) & r.mask) * uint64(r.channels)
		copy(r.buf[slot:slot+uint64(r.channels)], in[f*uint64(r.channels):(f+1)*uint64(r.channels)])
	}

	r.written.Store(w + n)
}

// ReadAt copies frames starting at absolute frame index from into dst. It
// reports false, leaving dst untouched or partially written, when the range
// is not fully written yet or has already been overwritten.
func (r *SampleRing) ReadAt(dst []float32, from uint64) bool {
	n := uint64(len(dst) / r.channels)
	w := r.written.Load()
	if from+n > w || w-from > r.frames {
		return false
	}

	for f := range n {
		slot := ((from + f) & r.mask) * uint64(r.channels)
		copy(dst[f*uint64(r.channels):(f+1)*uint64(r.channels)], r.buf[slot:slot+uint64(r.channels)])
	}

	// The writer may have lapped us during the copy.
	return r.written.Load()-from <= r.frames
}

// RingReader follows a SampleRing at a fixed lag so the output stream never
// waits on input arriving.
type RingReader struct {
	ring   *SampleRing
	lag    uint64
	pos    uint64
	primed bool
}

// NewRingReader reads ring latency frames behind the writer.
func NewRingReader(ring *SampleRing, latency int) *RingReader {
	return &RingReader{ring: ring, lag: uint64(max(latency, 0))}
}

// Read fills dst with the next frames. On underrun or overrun dst is
// silenced, the reader re-primes and false is returned.
func (rr *RingReader) Read(dst []float32) bool {
	n := uint64(len(dst) / rr.ring.channels)
	lag := max(rr.lag, n)
	w := rr.ring.Written()

	if !rr.primed {
		if w < lag {
			clear(dst)
			return false
		}
		rr.pos = w - lag
		rr.primed = true
	}

	if w-rr.pos+n > rr.ring.frames {
		// Overrun: jump forward to the configured lag.
		rr.pos = w - lag
	}

	if !rr.ring.ReadAt(dst, rr.pos) {
		clear(dst)
		rr.primed = false
		return false
	}
	rr.pos += n

	return true
}
