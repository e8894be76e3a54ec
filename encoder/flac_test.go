package encoder

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func sinePCM(seconds float64) []byte {
	n := int(seconds * SampleRate)
	pcm := make([]byte, n*2)
	for i := range n {
		s := int16(math.Sin(2*math.Pi*220*float64(i)/SampleRate) * 8000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func TestFlacEncoder(t *testing.T) {
	pcm := sinePCM(1.5)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := Encode(enc, pcm); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if want := uint64(len(pcm) / 2); enc.TotalFrames() != want {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), want)
	}
	data := enc.Bytes()
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	t.Logf("raw: %d bytes, flac: %d bytes", len(pcm), len(data))
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderCloseTwice(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.EncodeBlock(make([]int16, BlockSize/4)); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSamples(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f}
	got := Samples(pcm)
	want := []int16{1, -1, math.MinInt16}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDuration(t *testing.T) {
	for _, tt := range []struct {
		bytes int
		want  time.Duration
	}{
		{0, 0},
		{SampleRate * BytesPerFrame, time.Second},
		{SampleRate * BytesPerFrame * 10, 10 * time.Second},
		{SampleRate, 500 * time.Millisecond},
	} {
		if got := Duration(tt.bytes); got != tt.want {
			t.Errorf("Duration(%d) = %v, want %v", tt.bytes, got, tt.want)
		}
	}
}
