// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III through github.com/hajimehoshi/go-mp3.
// The decoded stream is always stereo at the file's sample rate; the
// stored-sample loader folds or resamples it as the engine requires.
package mp3
