// SPDX-License-Identifier: EPL-2.0

// Package analysis measures what each speaker plays: peak, rolling RMS and a
// Hann-windowed spectrum folded into three and eight bands. Results are
// averaged per installation and published as pooled frames at a fixed report
// rate, so the audio goroutine never allocates.
package analysis
