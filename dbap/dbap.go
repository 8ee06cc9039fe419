// SPDX-License-Identifier: EPL-2.0

// Package dbap implements distance-based amplitude panning.
//
// For a sound at p and speakers s_i with weights w_i:
//
//	d_i = max(sqrt(|p - s_i|^2 + blur^2), MinDistance)
//	v_i = w_i / d_i^a,     a = rolloff / (20 log10 2)
//	g_i = v_i / sqrt(sum v_j^2)
//
// so the squared gains always sum to one and a rolloff of 6 dB gives the
// inverse-distance law. The blur term keeps gains smooth as a sound passes
// over a speaker; MinDistance keeps them finite when blur is zero.
package dbap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MinDistance is the floor applied to every speaker distance, in metres.
	MinDistance = 1e-3
	// DefaultRolloff is the attenuation per doubling of distance, in dB.
	DefaultRolloff = 6.0
	// DefaultBlur is the spatial blur radius, in metres.
	DefaultBlur = 0.1
)

// Speaker is one panning target. Weight is usually 1, or 0 to exclude it.
type Speaker struct {
	Pos    r2.Vec
	Weight float64
}

// Exponent converts a rolloff in dB per distance doubling to the distance
// exponent a.
func Exponent(rolloffDB float64) float64 {
	return rolloffDB / (20 * math.Log10(2))
}

// Gains writes one gain per speaker into dst, growing it only when its
// capacity is too small, and returns it. Gains are finite and non-negative;
// when every weight is zero all gains are zero.
func Gains(dst []float64, p r2.Vec, speakers []Speaker, rolloffDB, blur float64) []float64 {
	if cap(dst) < len(speakers) {
		dst = make([]float64, len(speakers))
	}
	dst = dst[:len(speakers)]

	a := Exponent(rolloffDB)
	blur2 := blur * blur

	// Work relative to the nearest distance so v_i stays near 1 even for
	// steep rolloffs at the distance floor.
	nearest := math.Inf(1)
	for i, s := range speakers {
		d := math.Sqrt(r2.Norm2(r2.Sub(p, s.Pos)) + blur2)
		if d < MinDistance || math.IsNaN(d) {
			d = MinDistance
		}
		dst[i] = d
		if s.Weight > 0 && d < nearest {
			nearest = d
		}
	}

	if math.IsInf(nearest, 1) {
		clear(dst)
		return dst
	}

	var sum float64
	for i, s := range speakers {
		if s.Weight <= 0 {
			dst[i] = 0
			continue
		}
		v := s.Weight * math.Pow(nearest/dst[i], a)
		dst[i] = v
		sum += v * v
	}

	k := 1 / math.Sqrt(sum)
	for i := range dst {
		dst[i] *= k
	}

	return dst
}
