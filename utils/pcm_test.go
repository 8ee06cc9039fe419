// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestFloatToPCM(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    float32
		bitDepth int
		want     int
	}{
		{"zero", 0, 16, 0},
		{"full scale positive", 1, 16, math.MaxInt16},
		{"full scale negative", -1, 16, math.MinInt16},
		{"half positive", 0.5, 16, 16383},
		{"clamp above", 1.5, 16, math.MaxInt16},
		{"clamp below", -100, 16, math.MinInt16},
		{"24 bit positive", 1, 24, 8388607},
		{"8 bit negative", -1, 8, -128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FloatToPCM(tt.input, tt.bitDepth); got != tt.want {
				t.Errorf("FloatToPCM(%v, %d) = %d, want %d", tt.input, tt.bitDepth, got, tt.want)
			}
		})
	}
}

func TestPCMRoundTrip(t *testing.T) {
	t.Parallel()

	for _, depth := range []int{8, 16, 24, 32} {
		for _, x := range []float32{-1, -0.5, 0, 0.25, 0.75} {
			got := PCMToFloat(FloatToPCM(x, depth), depth)
			if diff := math.Abs(float64(got - x)); diff > 2/float64(PCMScale(depth)) {
				t.Errorf("depth %d: round trip of %v = %v", depth, x, got)
			}
		}
	}
}
