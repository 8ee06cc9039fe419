// SPDX-License-Identifier: EPL-2.0

// Package device connects a Renderer to sound hardware. PortAudio opens the
// default duplex stream with any number of channels and feeds captured input
// into a SampleRing; oto is output only and limited to stereo; the headless
// Clock and the offline Render need no hardware at all. Build with the
// headless tag to drop the cgo backends.
package device
