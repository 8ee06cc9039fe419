// SPDX-License-Identifier: EPL-2.0

// Package engine is the real-time half of the soundscape. An Engine holds
// the active sounds and the current Layout, and Process renders them block
// by block: movement, DBAP panning with per-block gain ramps, envelopes,
// mute and solo, master volume, and analysis of every speaker feed.
//
// The control side never shares memory with Process. It sends Commands
// (spawn, stop, volume, layout swaps) through a bounded queue and receives
// Events (sounds ended or rejected, warnings, replaced layouts) through
// another, so the audio goroutine never blocks, logs or allocates.
package engine
