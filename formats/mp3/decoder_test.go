// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// mockMP3Reader stands in for gomp3.Decoder, handing out at most chunk bytes per Read.
type mockMP3Reader struct {
	sampleRate int
	data       []byte
	chunk      int
	err        error
}

func newMockReader(rate, chunk int, samples ...int16) *mockMP3Reader {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return &mockMP3Reader{sampleRate: rate, data: data, chunk: chunk}
}

func (m *mockMP3Reader) SampleRate() int { return m.sampleRate }

func (m *mockMP3Reader) Read(p []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(m.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), m.chunk)], m.data)
	m.data = m.data[n:]
	return n, nil
}

func TestSource_ConvertsPCM(t *testing.T) {
	t.Parallel()

	src := &source{dec: newMockReader(44100, 1024, 0, 16384, -16384, -32768), buf: make([]byte, 16)}
	if src.SampleRate() != 44100 || src.Channels() != 2 {
		t.Fatalf("metadata = %d ch @ %d", src.Channels(), src.SampleRate())
	}

	dst := make([]float32, 4)
	n, err := src.ReadSamples(dst)
	if n != 4 || err != nil {
		t.Fatalf("ReadSamples() = %d, %v", n, err)
	}

	want := []float32{0, 0.5, -0.5, -1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}

	if n, err := src.ReadSamples(dst); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() at end = %d, %v", n, err)
	}
}

func TestSource_CarriesSplitSamples(t *testing.T) {
	t.Parallel()

	// Odd-sized chunks split samples across reads.
	src := &source{dec: newMockReader(22050, 3, 100, 200, 300, 400, 500, 600), buf: make([]byte, 4)}

	var got []float32
	dst := make([]float32, 2)
	for range 20 {
		n, err := src.ReadSamples(dst)
		got = append(got, dst[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if len(got) != 6 {
		t.Fatalf("decoded %d samples, want 6", len(got))
	}
	for i, v := range got {
		if want := float32(100*(i+1)) / 32768; v != want {
			t.Errorf("sample %d = %v, want %v", i, v, want)
		}
	}
}

func TestSource_PropagatesErrors(t *testing.T) {
	t.Parallel()

	src := &source{dec: &mockMP3Reader{err: io.ErrUnexpectedEOF}}
	if _, err := src.ReadSamples(make([]float32, 4)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadSamples() error = %v", err)
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := (Decoder{}).Decode(bytes.NewReader([]byte("This is not MP3 data"))); err == nil {
		t.Error("Decode() error = nil, want error for invalid data")
	}
}
