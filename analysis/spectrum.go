// SPDX-License-Identifier: EPL-2.0

package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Band split of the three-bin spectrum, in Hz.
const (
	LowMidHz  = 200.0
	MidHighHz = 2000.0
)

// Spectrum computes Hann-windowed band energies of a fixed-size signal.
type Spectrum struct {
	size   int
	fft    *fourier.FFT
	win    []float64
	seq    []float64
	coeffs []complex128
	power  []float64

	// bin index where each band ends (exclusive)
	edges3 [3]int
	edges8 [8]int
}

// NewSpectrum prepares an FFT of size samples at sampleRate.
func NewSpectrum(size, sampleRate int) *Spectrum {
	s := &Spectrum{
		size:   size,
		fft:    fourier.NewFFT(size),
		win:    make([]float64, size),
		seq:    make([]float64, size),
		coeffs: make([]complex128, size/2+1),
		power:  make([]float64, size/2+1),
	}

	for i := range s.win {
		s.win[i] = 1
	}
	window.Hann(s.win)

	nyquist := float64(sampleRate) / 2
	bin := func(hz float64) int {
		return min(int(math.Ceil(hz*float64(size)/float64(sampleRate))), len(s.power))
	}

	s.edges3 = [3]int{bin(LowMidHz), bin(MidHighHz), len(s.power)}

	top := Mel(nyquist)
	for i := range s.edges8 {
		t := float64(i+1) / float64(len(s.edges8))
		s.edges8[i] = bin(MelToHz(t * t * top))
	}
	s.edges8[len(s.edges8)-1] = len(s.power)

	return s
}

// Size is the number of samples analysed.
func (s *Spectrum) Size() int { return s.size }

// Analyze computes the band amplitudes of the detector's history.
func (s *Spectrum) Analyze(d *Detector, fft3 *[3]float32, fft8 *[8]float32) {
	d.History(s.seq, s.win)
	s.fft.Coefficients(s.coeffs, s.seq)

	for k, c := range s.coeffs {
		s.power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	s.bands(s.edges3[:], fft3[:])
	s.bands(s.edges8[:], fft8[:])
}

func (s *Spectrum) bands(edges []int, dst []float32) {
	norm := float64(s.size) / 2
	lo := 0

	for i, hi := range edges {
		if hi < lo {
			hi = lo
		}
		dst[i] = float32(math.Sqrt(floats.Sum(s.power[lo:hi])) / norm)
		lo = hi
	}
}

// Mel converts Hz to mels.
func Mel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

// MelToHz converts mels to Hz.
func MelToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }
