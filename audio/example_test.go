// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"

	"github.com/ik5/soundscape/audio"
	"github.com/ik5/soundscape/internal/audiotest"
)

func ExampleLoad() {
	// One second of stereo at 24 kHz, brought to the engine rate.
	src := audiotest.NewConstantSource(24000, 2, 24000, 0.5)

	buf, err := audio.Load(src, 48000, 8)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(buf.SampleRate, buf.Channels, buf.Frames() > 47900)
	// Output: 48000 2 true
}

func ExampleBuffer_ReadFrames() {
	buf := &audio.Buffer{SampleRate: 8000, Channels: 1, Data: []float32{1, 2, 3}}
	dst := make([]float32, 5)

	n := buf.ReadFrames(dst, 1, true)
	fmt.Println(n, dst)
	// Output: 5 [2 3 1 2 3]
}
