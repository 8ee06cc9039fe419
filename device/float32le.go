// SPDX-License-Identifier: EPL-2.0

package device

import (
	"encoding/binary"
	"math"
)

// fillFloat32LE renders the whole frames that fit in p as little-endian
// float32, one buf-sized chunk at a time, and returns the bytes written.
// buf holds whole frames and is never grown.
func fillFloat32LE(p []byte, buf []float32, channels int, r Renderer) int {
	frame := 4 * channels
	n := len(p) / frame * frame
	count := n / 4

	for off := 0; off < count; {
		chunk := buf[:min(len(buf), count-off)]
		r.Process(chunk)
		for i, v := range chunk {
			binary.LittleEndian.PutUint32(p[4*(off+i):], math.Float32bits(v))
		}
		off += len(chunk)
	}

	return n
}
