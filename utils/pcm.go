// SPDX-License-Identifier: EPL-2.0

package utils

// PCMScale is the magnitude of the most negative value of a signed PCM
// sample with the given bit depth. Unknown depths fall back to 16 bit.
func PCMScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128
	case 24:
		return 8388608
	case 32:
		return 2147483648
	default:
		return 32768
	}
}

// PCMToFloat normalises a signed integer PCM sample into [-1, 1).
func PCMToFloat(v int, bitDepth int) float32 {
	return float32(v) / PCMScale(bitDepth)
}

// FloatToPCM clamps x to [-1, 1] and scales it to a signed integer sample.
// Positive full scale maps to the largest positive value so it never wraps.
func FloatToPCM(x float32, bitDepth int) int {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	scale := float64(PCMScale(bitDepth))
	if x < 0 {
		return int(float64(x) * scale)
	}

	return int(float64(x) * (scale - 1))
}
