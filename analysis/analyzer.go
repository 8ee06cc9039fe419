// SPDX-License-Identifier: EPL-2.0

package analysis

import (
	"errors"
	"fmt"

	"github.com/ik5/soundscape/control"
	"gonum.org/v1/gonum/floats"
)

// Defaults for Config fields left at zero.
const (
	DefaultFFTSize    = 1024
	DefaultReportRate = 30.0
	DefaultPoolSize   = 8
)

var ErrInvalidConfig = errors.New("invalid analysis config")

// Metrics is the analysis of one speaker or the average over an installation.
type Metrics struct {
	Peak float32
	RMS  float32
	FFT3 [3]float32
	FFT8 [8]float32
}

// Frame is one report. Speakers and Installations are indexed like the
// layout identified by Generation.
type Frame struct {
	Generation    uint64
	Timeline      uint64 // frames rendered when the report was taken
	Speakers      []Metrics
	Installations []Metrics
}

type Config struct {
	SampleRate  int
	FFTSize     int
	ReportRate  float64
	PoolSize    int
	MaxSpeakers int
	// MaxGroups bounds the number of installations averaged per frame.
	MaxGroups int
}

func (c *Config) defaults() error {
	if c.FFTSize == 0 {
		c.FFTSize = DefaultFFTSize
	}
	if c.ReportRate == 0 {
		c.ReportRate = DefaultReportRate
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}

	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.FFTSize < 2 || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("%w: fft size %d is not a power of two", ErrInvalidConfig, c.FFTSize)
	case c.ReportRate < 0 || c.ReportRate > float64(c.SampleRate):
		return fmt.Errorf("%w: report rate %v", ErrInvalidConfig, c.ReportRate)
	case c.MaxSpeakers < 1:
		return fmt.Errorf("%w: max speakers %d", ErrInvalidConfig, c.MaxSpeakers)
	}

	if c.MaxGroups < 1 {
		c.MaxGroups = c.MaxSpeakers
	}

	return nil
}

// Analyzer runs on the audio goroutine. Process feeds per-speaker blocks and,
// at the report rate, publishes a pooled Frame on Out. Consumers hand frames
// back with Release.
type Analyzer struct {
	detectors []*Detector
	spectrum  *Spectrum
	interval  int
	counter   int
	timeline  uint64

	speakers   int
	groups     [][]int
	generation uint64
	acc, vec   [metricsLen]float64

	out  *control.Queue[*Frame]
	free *control.Queue[*Frame]
}

// New preallocates everything a report needs.
func New(cfg Config) (*Analyzer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}

	a := &Analyzer{
		detectors: make([]*Detector, cfg.MaxSpeakers),
		spectrum:  NewSpectrum(cfg.FFTSize, cfg.SampleRate),
		out:       control.NewQueue[*Frame]("analysis", cfg.PoolSize),
		free:      control.NewQueue[*Frame]("analysis-free", cfg.PoolSize),
	}

	if cfg.ReportRate > 0 {
		a.interval = max(int(float64(cfg.SampleRate)/cfg.ReportRate), 1)
	}

	for i := range a.detectors {
		a.detectors[i] = NewDetector(cfg.SampleRate/60, cfg.FFTSize)
	}

	for range cfg.PoolSize {
		a.free.TryPush(&Frame{
			Speakers:      make([]Metrics, 0, cfg.MaxSpeakers),
			Installations: make([]Metrics, 0, cfg.MaxGroups),
		})
	}

	return a, nil
}

// Out delivers finished frames.
func (a *Analyzer) Out() *control.Queue[*Frame] { return a.out }

// Release returns a frame taken from Out to the pool.
func (a *Analyzer) Release(f *Frame) {
	if f != nil {
		a.free.TryPush(f)
	}
}

// SetLayout switches to a layout with the given number of speakers and
// installations, each installation listing its speaker indices. groups is
// retained and must not be modified afterwards.
func (a *Analyzer) SetLayout(speakers int, groups [][]int, generation uint64) {
	speakers = min(speakers, len(a.detectors))
	for _, d := range a.detectors[:speakers] {
		d.Clear()
	}

	a.speakers = speakers
	a.groups = groups
	a.generation = generation
	a.counter = 0
}

// Process feeds one block per speaker. blocks[i] holds frames samples of
// speaker i.
func (a *Analyzer) Process(blocks [][]float32, frames int) {
	n := min(a.speakers, len(blocks))
	for i := range n {
		a.detectors[i].Push(blocks[i][:frames])
	}

	a.timeline += uint64(frames)
	if a.interval == 0 {
		return
	}

	a.counter += frames
	if a.counter < a.interval {
		return
	}
	a.counter %= a.interval

	a.report(n)
}

func (a *Analyzer) report(n int) {
	f, ok := a.free.TryPop()
	if !ok {
		// Consumer is behind; skip this report and keep accumulating peaks.
		return
	}

	f.Generation = a.generation
	f.Timeline = a.timeline
	f.Speakers = f.Speakers[:n]
	for i := range n {
		d := a.detectors[i]
		m := &f.Speakers[i]
		m.Peak = d.Peak()
		m.RMS = d.RMS()
		a.spectrum.Analyze(d, &m.FFT3, &m.FFT8)
		d.Reset()
	}

	f.Installations = f.Installations[:min(len(a.groups), cap(f.Installations))]
	for g := range f.Installations {
		f.Installations[g] = a.average(f.Speakers, a.groups[g])
	}

	if !a.out.TryPush(f) {
		a.free.TryPush(f)
	}
}

func (a *Analyzer) average(speakers []Metrics, idx []int) Metrics {
	acc, v := a.acc[:], a.vec[:]
	clear(acc)

	n := 0
	for _, i := range idx {
		if i >= len(speakers) {
			continue
		}
		speakers[i].flatten(v)
		floats.Add(acc, v)
		n++
	}

	var m Metrics
	if n > 0 {
		floats.Scale(1/float64(n), acc)
		m.unflatten(acc)
	}

	return m
}

const metricsLen = 2 + 3 + 8

func (m *Metrics) flatten(dst []float64) {
	dst[0] = float64(m.Peak)
	dst[1] = float64(m.RMS)
	for i, x := range m.FFT3 {
		dst[2+i] = float64(x)
	}
	for i, x := range m.FFT8 {
		dst[5+i] = float64(x)
	}
}

func (m *Metrics) unflatten(src []float64) {
	m.Peak = float32(src[0])
	m.RMS = float32(src[1])
	for i := range m.FFT3 {
		m.FFT3[i] = float32(src[2+i])
	}
	for i := range m.FFT8 {
		m.FFT8[i] = float32(src[5+i])
	}
}
