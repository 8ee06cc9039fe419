// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files through github.com/go-audio/aiff.
// Signed PCM at 8, 16, 24 and 32 bits is scaled into float32 samples.
// Inputs that cannot seek are buffered in memory first.
package aiff
