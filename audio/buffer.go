// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Buffer is a fully decoded, interleaved sample in memory. A Buffer is
// never mutated once handed to the engine.
type Buffer struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames is the number of sample frames held.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels == 0 {
		return 0
	}

	return len(b.Data) / b.Channels
}

// ReadFrames copies frames starting at frame cursor into dst, which must hold
// a whole number of frames. With loop set it wraps at the end of the buffer,
// otherwise it stops there. The number of frames copied is returned.
func (b *Buffer) ReadFrames(dst []float32, cursor int, loop bool) int {
	total := b.Frames()
	if total == 0 {
		return 0
	}

	want := len(dst) / b.Channels
	if loop {
		cursor %= total
		if cursor < 0 {
			cursor += total
		}
	}

	done := 0
	for done < want {
		if cursor >= total {
			if !loop {
				break
			}
			cursor = 0
		}

		n := min(want-done, total-cursor)
		copy(dst[done*b.Channels:(done+n)*b.Channels], b.Data[cursor*b.Channels:(cursor+n)*b.Channels])
		done += n
		cursor += n
	}

	return done
}

// ReadAll drains src into a Buffer at the source's own rate and layout.
func ReadAll(src Source) (*Buffer, error) {
	if src.SampleRate() <= 0 || src.Channels() <= 0 {
		return nil, ErrBadFormat
	}

	size := src.BufSize()
	if size <= 0 {
		size = 4096
	}
	size -= size % src.Channels()
	if size == 0 {
		size = src.Channels()
	}

	buf := &Buffer{
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
		Data:       make([]float32, 0, size*4),
	}
	chunk := make([]float32, size)

	for {
		n, err := src.ReadSamples(chunk)
		buf.Data = append(buf.Data, chunk[:n]...)

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read samples: %w", err)
		}
	}

	// A short trailing read may leave half a frame behind.
	buf.Data = buf.Data[:len(buf.Data)-len(buf.Data)%buf.Channels]
	if len(buf.Data) == 0 {
		return nil, ErrEmptySource
	}

	return buf, nil
}

// Load decodes src into a Buffer at sampleRate. Sources with more than
// maxChannels channels are folded to mono; maxChannels <= 0 disables that.
func Load(src Source, sampleRate, maxChannels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrBadFormat
	}

	var s Source = src
	if maxChannels > 0 && s.Channels() > maxChannels {
		s = NewMonoMixer(s)
	}
	if s.SampleRate() != sampleRate {
		s = NewResampler(s, sampleRate)
	}

	return ReadAll(s)
}
