// SPDX-License-Identifier: EPL-2.0

package analysis

import "math"

// Detector tracks the level of one signal: the peak since the last Reset, a
// rolling RMS, and the most recent samples for spectral analysis.
type Detector struct {
	peak float32

	sq    []float64 // squared samples of the RMS window
	sqPos int
	sqSum float64

	hist    []float64
	histPos int
}

// NewDetector returns a detector with an RMS window of rmsFrames and a
// history of historyFrames samples.
func NewDetector(rmsFrames, historyFrames int) *Detector {
	return &Detector{
		sq:   make([]float64, max(rmsFrames, 1)),
		hist: make([]float64, max(historyFrames, 1)),
	}
}

// Push feeds one block of samples.
func (d *Detector) Push(block []float32) {
	for _, x := range block {
		if a := float32(math.Abs(float64(x))); a > d.peak {
			d.peak = a
		}

		v := float64(x)
		s := v * v
		d.sqSum += s - d.sq[d.sqPos]
		d.sq[d.sqPos] = s
		d.sqPos++
		if d.sqPos == len(d.sq) {
			d.sqPos = 0
		}

		d.hist[d.histPos] = v
		d.histPos++
		if d.histPos == len(d.hist) {
			d.histPos = 0
		}
	}
}

// Peak is the largest absolute sample since the last Reset.
func (d *Detector) Peak() float32 { return d.peak }

// RMS over the rolling window.
func (d *Detector) RMS() float32 {
	// The running sum drifts slightly below zero after long silence.
	return float32(math.Sqrt(math.Max(d.sqSum, 0) / float64(len(d.sq))))
}

// Reset clears the peak. The RMS window and history are kept.
func (d *Detector) Reset() { d.peak = 0 }

// Clear forgets everything, as after a layout change.
func (d *Detector) Clear() {
	d.peak = 0
	d.sqSum = 0
	d.sqPos = 0
	d.histPos = 0
	clear(d.sq)
	clear(d.hist)
}

// History copies the latest samples into dst, oldest first, scaled by win.
// dst and win must be as long as the history.
func (d *Detector) History(dst, win []float64) {
	n := copy(dst, d.hist[d.histPos:])
	copy(dst[n:], d.hist[:d.histPos])

	for i := range dst {
		dst[i] *= win[i]
	}
}
