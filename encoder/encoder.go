package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096

	BytesPerFrame = Channels * BitsPerSample / 8
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// Samples decodes little-endian PCM16. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Duration is the playback length of n bytes of PCM16 mono at SampleRate.
func Duration(n int) time.Duration {
	frames := n / BytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

// Encode feeds a whole segment to enc in BlockSize frames and closes it.
func Encode(enc Encoder, pcm []byte) error {
	samples := Samples(pcm)
	for len(samples) > 0 {
		n := min(BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[:n]); err != nil {
			return err
		}
		samples = samples[n:]
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return nil
}
