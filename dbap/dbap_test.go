// SPDX-License-Identifier: EPL-2.0

package dbap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func square() []Speaker {
	return []Speaker{
		{Pos: r2.Vec{X: 0, Y: 0}, Weight: 1},
		{Pos: r2.Vec{X: 4, Y: 0}, Weight: 1},
		{Pos: r2.Vec{X: 4, Y: 4}, Weight: 1},
		{Pos: r2.Vec{X: 0, Y: 4}, Weight: 1},
	}
}

func energy(g []float64) float64 {
	var e float64
	for _, v := range g {
		e += v * v
	}
	return e
}

func TestExponent(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1, Exponent(6.0206), 1e-4)
	assert.InDelta(t, 0, Exponent(0), 0)
}

func TestGains_AtSpeakerPosition(t *testing.T) {
	t.Parallel()

	for _, blur := range []float64{0, DefaultBlur} {
		for _, rolloff := range []float64{3, 6, 12, 24} {
			for i, s := range square() {
				g := Gains(nil, s.Pos, square(), rolloff, blur)
				require.Len(t, g, 4)

				for j, v := range g {
					require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "blur %v rolloff %v gain %d = %v", blur, rolloff, j, v)
					require.GreaterOrEqual(t, v, 0.0)
					if j != i {
						assert.Greater(t, g[i], v, "speaker %d should dominate at its own position", i)
					}
				}
				assert.InDelta(t, 1, energy(g), 1e-9)
			}
		}
	}
}

func TestGains_ContinuousAlongPath(t *testing.T) {
	t.Parallel()

	const steps = 4000
	prev := Gains(nil, r2.Vec{X: -1, Y: -1}, square(), DefaultRolloff, DefaultBlur)
	cur := make([]float64, 4)

	// A diagonal pass that crosses two speakers exactly.
	for i := 1; i <= steps; i++ {
		t0 := float64(i) / steps
		p := r2.Vec{X: -1 + 6*t0, Y: -1 + 6*t0}
		cur = Gains(cur, p, square(), DefaultRolloff, DefaultBlur)

		for j := range cur {
			if d := math.Abs(cur[j] - prev[j]); d > 0.02 {
				t.Fatalf("step %d speaker %d jumped by %v", i, j, d)
			}
		}
		copy(prev, cur)
	}
}

func TestGains_SymmetricAtCentre(t *testing.T) {
	t.Parallel()

	g := Gains(nil, r2.Vec{X: 2, Y: 2}, square(), DefaultRolloff, 0)
	for _, v := range g {
		assert.InDelta(t, 0.5, v, 1e-12)
	}
}

func TestGains_Weights(t *testing.T) {
	t.Parallel()

	spk := square()
	spk[1].Weight = 0
	g := Gains(nil, r2.Vec{X: 4, Y: 0}, spk, DefaultRolloff, DefaultBlur)
	assert.Equal(t, 0.0, g[1])
	assert.InDelta(t, 1, energy(g), 1e-9)

	for i := range spk {
		spk[i].Weight = 0
	}
	g = Gains(g, r2.Vec{X: 1, Y: 1}, spk, DefaultRolloff, DefaultBlur)
	assert.Equal(t, []float64{0, 0, 0, 0}, g)
}

func TestGains_Rolloff(t *testing.T) {
	t.Parallel()

	spk := []Speaker{{Pos: r2.Vec{X: 0, Y: 0}, Weight: 1}, {Pos: r2.Vec{X: 10, Y: 0}, Weight: 1}}
	p := r2.Vec{X: 2, Y: 0}

	soft := Gains(nil, p, spk, 3, 0)
	steep := Gains(nil, p, spk, 12, 0)
	assert.Greater(t, steep[0], soft[0], "steeper rolloff should favour the near speaker")

	// Inverse distance law at 6 dB: the ratio of gains equals the ratio of distances.
	g := Gains(nil, p, spk, 20*math.Log10(2), 0)
	assert.InDelta(t, 8.0/2.0, g[0]/g[1], 1e-9)
}

func TestGains_ReusesDst(t *testing.T) {
	t.Parallel()

	dst := make([]float64, 0, 8)
	g := Gains(dst, r2.Vec{X: 1, Y: 1}, square(), DefaultRolloff, DefaultBlur)
	assert.Equal(t, 4, len(g))
	assert.Same(t, &dst[:1][0], &g[0])
}

func TestGains_ZeroAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	spk := square()
	dst := make([]float64, len(spk))
	allocs := testing.AllocsPerRun(1000, func() {
		dst = Gains(dst, r2.Vec{X: 1, Y: 3}, spk, DefaultRolloff, DefaultBlur)
	})
	if allocs > 0 {
		t.Errorf("Gains allocated %v times, want 0", allocs)
	}
}

func BenchmarkGains64(b *testing.B) {
	spk := make([]Speaker, 64)
	for i := range spk {
		spk[i] = Speaker{Pos: r2.Vec{X: float64(i % 8), Y: float64(i / 8)}, Weight: 1}
	}
	dst := make([]float64, len(spk))

	b.ReportAllocs()

	for b.Loop() {
		dst = Gains(dst, r2.Vec{X: 3.3, Y: 4.1}, spk, DefaultRolloff, DefaultBlur)
	}
}
