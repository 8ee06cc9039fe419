// SPDX-License-Identifier: EPL-2.0

package device

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter writes a running sample index and records each request size.
type counter struct {
	next  float32
	sizes []int
}

func (c *counter) Process(out []float32) {
	c.sizes = append(c.sizes, len(out))
	for i := range out {
		out[i] = c.next
		c.next++
	}
}

func TestFillFloat32LEChunksLargeRequests(t *testing.T) {
	t.Parallel()

	const channels = 2
	buf := make([]float32, 4*channels)
	r := &counter{}

	// ten frames and a partial one
	p := make([]byte, 10*4*channels+3)
	n := fillFloat32LE(p, buf, channels, r)

	require.Equal(t, 80, n)
	assert.Equal(t, []int{8, 8, 4}, r.sizes)
	for i := range n / 4 {
		assert.Equal(t, float32(i), math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:])), "sample %d", i)
	}
}

func TestFillFloat32LEDoesNotAllocate(t *testing.T) {
	buf := make([]float32, 256)
	p := make([]byte, 4*4096)
	r := &counter{sizes: make([]int, 0, 1<<16)}

	allocs := testing.AllocsPerRun(50, func() {
		r.sizes = r.sizes[:0]
		fillFloat32LE(p, buf, 2, r)
	})
	if allocs != 0 {
		t.Errorf("fillFloat32LE allocated %v times per call", allocs)
	}
}
