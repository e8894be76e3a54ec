package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"slowdown/encoder"
)

const wavFormatPCM = 1

// SegmentDumper writes every flushed segment to its own WAV file.
type SegmentDumper struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	seq int
}

func NewSegmentDumper(dir string) (*SegmentDumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating segment dir: %w", err)
	}
	return &SegmentDumper{dir: dir, now: time.Now}, nil
}

func (d *SegmentDumper) Dir() string { return d.dir }

// Write stores pcm (PCM16LE mono at encoder.SampleRate) and returns the
// file path.
func (d *SegmentDumper) Write(pcm []byte) (string, error) {
	d.mu.Lock()
	d.seq++
	name := fmt.Sprintf("segment-%s-%04d.wav", d.now().Format("20060102-150405"), d.seq)
	d.mu.Unlock()

	path := filepath.Join(d.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating wav file: %w", err)
	}
	defer f.Close()

	samples := encoder.Samples(pcm)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	e := wav.NewEncoder(f, encoder.SampleRate, encoder.BitsPerSample, encoder.Channels, wavFormatPCM)
	if err := e.Write(&audio.IntBuffer{
		Data: data,
		Format: &audio.Format{
			NumChannels: encoder.Channels,
			SampleRate:  encoder.SampleRate,
		},
		SourceBitDepth: encoder.BitsPerSample,
	}); err != nil {
		return "", fmt.Errorf("writing wav samples: %w", err)
	}
	if err := e.Close(); err != nil {
		return "", fmt.Errorf("finalizing wav: %w", err)
	}
	return path, nil
}
