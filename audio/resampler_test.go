// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/soundscape/audio"
	"github.com/ik5/soundscape/internal/audiotest"
)

func drain(t *testing.T, src audio.Source, chunk int) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, chunk)
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
}

func TestResampler_FrameCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		srcRate  int
		dstRate  int
		channels int
		frames   int
	}{
		{name: "same rate", srcRate: 48000, dstRate: 48000, channels: 1, frames: 1000},
		{name: "downsample 48k to 16k", srcRate: 48000, dstRate: 16000, channels: 1, frames: 4800},
		{name: "upsample 8k to 16k", srcRate: 8000, dstRate: 16000, channels: 2, frames: 800},
		{name: "44.1k to 48k", srcRate: 44100, dstRate: 48000, channels: 2, frames: 4410},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := audio.NewResampler(audiotest.NewConstantSource(tt.srcRate, tt.channels, tt.frames, 0.25), tt.dstRate)
			if r.SampleRate() != tt.dstRate || r.Channels() != tt.channels {
				t.Fatalf("metadata = %d ch @ %d", r.Channels(), r.SampleRate())
			}

			out := drain(t, r, 256*tt.channels)
			got := len(out) / tt.channels
			want := float64(tt.frames) * float64(tt.dstRate) / float64(tt.srcRate)
			if math.Abs(float64(got)-want) > 4*float64(tt.dstRate)/float64(tt.srcRate)+2 {
				t.Errorf("frames = %d, want about %.0f", got, want)
			}
			for i, v := range out {
				if math.Abs(float64(v)-0.25) > 1e-4 {
					t.Fatalf("out[%d] = %v, want 0.25", i, v)
				}
			}
		})
	}
}

func TestResampler_KeepsChannelsApart(t *testing.T) {
	t.Parallel()

	src := audiotest.NewMockSource(44100, 3, 4410, func(_, ch int) float32 { return float32(ch) * 0.25 })
	out := drain(t, audio.NewResampler(src, 16000), 3*100)

	for f := 0; f < len(out)/3; f++ {
		for c := range 3 {
			if v := out[f*3+c]; math.Abs(float64(v)-float64(c)*0.25) > 1e-4 {
				t.Fatalf("frame %d channel %d = %v", f, c, v)
			}
		}
	}
}

func TestResampler_SineStaysBounded(t *testing.T) {
	t.Parallel()

	out := drain(t, audio.NewResampler(audiotest.NewSineSource(8000, 1, 8000, 440), 48000), 1024)
	for i, v := range out {
		if v > 1.1 || v < -1.1 {
			t.Fatalf("out[%d] = %v overshoots", i, v)
		}
	}
}

func TestResampler_InvalidDstSize(t *testing.T) {
	t.Parallel()

	r := audio.NewResampler(audiotest.NewSilentSource(44100, 2, 100), 8000)
	if _, err := r.ReadSamples(make([]float32, 3)); !errors.Is(err, audio.ErrInvalidDstSize) {
		t.Errorf("ReadSamples() error = %v, want ErrInvalidDstSize", err)
	}
}

func TestResampler_EmptySource(t *testing.T) {
	t.Parallel()

	r := audio.NewResampler(audiotest.NewSilentSource(44100, 1, 0), 8000)
	n, err := r.ReadSamples(make([]float32, 16))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() = %d, %v; want 0, EOF", n, err)
	}
}

func TestResampler_Close(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSilentSource(44100, 1, 10)
	if err := audio.NewResampler(src, 8000).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.Closed {
		t.Error("Close() did not close the source")
	}
}

func TestMonoMixer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		value    func(ch int) float32
		want     float32
	}{
		{name: "mono passes through", channels: 1, value: func(int) float32 { return 0.3 }, want: 0.3},
		{name: "stereo averages", channels: 2, value: func(ch int) float32 { return float32(ch) }, want: 0.5},
		{name: "five channels average", channels: 5, value: func(ch int) float32 { return float32(ch) * 0.1 }, want: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := audiotest.NewMockSource(8000, tt.channels, 300, func(_, ch int) float32 { return tt.value(ch) })
			m := audio.NewMonoMixer(src)
			if m.Channels() != 1 || m.SampleRate() != 8000 {
				t.Fatalf("metadata = %d ch @ %d", m.Channels(), m.SampleRate())
			}

			out := drain(t, m, 128)
			if len(out) != 300 {
				t.Fatalf("frames = %d, want 300", len(out))
			}
			for i, v := range out {
				if math.Abs(float64(v-tt.want)) > 1e-6 {
					t.Fatalf("out[%d] = %v, want %v", i, v, tt.want)
				}
			}
		})
	}
}

func BenchmarkResampler_Downsample(b *testing.B) {
	buf := make([]float32, 2048)

	b.ReportAllocs()

	for b.Loop() {
		r := audio.NewResampler(audiotest.NewSineSource(48000, 2, 48000, 440), 16000)
		for {
			if _, err := r.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
