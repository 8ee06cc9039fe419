// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes integer PCM WAV files through
// github.com/go-audio/wav.
//
// The Decoder accepts 16, 24 and 32-bit PCM with any channel count and
// returns an audio.Source of float32 samples. The Writer produces
// multichannel files from float32 frames, which the offline renderer uses
// to record one output channel per speaker:
//
//	f, _ := os.Create("render.wav")
//	w, err := wav.NewWriter(f, 48000, 8, 24)
//	if err != nil {
//	    return err
//	}
//	_ = w.Write(block)
//	_ = w.Close()
package wav
