// SPDX-License-Identifier: EPL-2.0

package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(start, n, channels int) []float32 {
	out := make([]float32, n*channels)
	for f := range n {
		for c := range channels {
			out[f*channels+c] = float32(start+f) + float32(c)/2
		}
	}
	return out
}

func TestSampleRing_WriteReadAt(t *testing.T) {
	t.Parallel()

	r := NewSampleRing(2, 10)
	require.Equal(t, 16, r.Frames())

	r.Write(frames(0, 12, 2))
	assert.Equal(t, uint64(12), r.Written())

	dst := make([]float32, 4)
	require.True(t, r.ReadAt(dst, 5))
	assert.Equal(t, []float32{5, 5.5, 6, 6.5}, dst)

	assert.False(t, r.ReadAt(dst, 11), "range past the writer")

	r.Write(frames(12, 10, 2))
	assert.False(t, r.ReadAt(dst, 2), "overwritten range")
	require.True(t, r.ReadAt(dst, 20))
	assert.Equal(t, []float32{20, 20.5, 21, 21.5}, dst)
}

func TestRingReader_LagsWriter(t *testing.T) {
	t.Parallel()

	r := NewSampleRing(1, 64)
	rr := NewRingReader(r, 8)
	dst := make([]float32, 4)

	r.Write(frames(0, 6, 1))
	assert.False(t, rr.Read(dst), "not enough input for the lag yet")
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)

	r.Write(frames(6, 6, 1))
	require.True(t, rr.Read(dst))
	assert.Equal(t, []float32{4, 5, 6, 7}, dst, "reads start lag frames behind the writer")

	r.Write(frames(12, 4, 1))
	require.True(t, rr.Read(dst))
	assert.Equal(t, []float32{8, 9, 10, 11}, dst)
}

func TestRingReader_UnderrunSilencesAndReprimes(t *testing.T) {
	t.Parallel()

	r := NewSampleRing(1, 64)
	rr := NewRingReader(r, 4)
	dst := make([]float32, 4)

	r.Write(frames(0, 4, 1))
	require.True(t, rr.Read(dst))

	assert.False(t, rr.Read(dst), "writer stalled")
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)

	r.Write(frames(4, 8, 1))
	require.True(t, rr.Read(dst))
	assert.Equal(t, []float32{8, 9, 10, 11}, dst)
}

func TestRingReader_OverrunSkipsAhead(t *testing.T) {
	t.Parallel()

	r := NewSampleRing(1, 16)
	rr := NewRingReader(r, 4)
	dst := make([]float32, 4)

	r.Write(frames(0, 4, 1))
	require.True(t, rr.Read(dst))

	r.Write(frames(4, 40, 1))
	require.True(t, rr.Read(dst))
	assert.Equal(t, []float32{40, 41, 42, 43}, dst)
}
