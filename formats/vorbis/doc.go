// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis through github.com/jfreymuth/oggvorbis.
// Samples come out as float32 at the stream's own rate and channel count.
package vorbis
