// SPDX-License-Identifier: EPL-2.0

// Package audio holds the stored-sample plumbing used before audio reaches
// the engine.
//
// Decoders from the formats/ packages produce a Source. Sources chain
// through a Resampler (Catmull-Rom, with a one-pole low-pass when
// downsampling) and a MonoMixer, and Load collects the result into an
// in-memory Buffer at the engine rate:
//
//	reg := audio.NewRegistry()
//	reg.Register("wav", wav.Decoder{})
//	src, err := reg.DecodeFile("birds.wav")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	buf, err := audio.Load(src, 48000, 8)
//
// A Buffer is immutable once loaded. The real-time engine reads it with
// ReadFrames, which never allocates.
package audio
