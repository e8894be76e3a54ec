package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	levelGain      = 5.0
	levelReceiving = 0.01
)

// LevelMeter tracks the loudness of the most recent capture block.
type LevelMeter struct {
	mu    sync.Mutex
	level float64
}

// Process updates the level from a block of PCM16 samples.
func (m *LevelMeter) Process(data []byte) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))

	m.mu.Lock()
	m.level = min(rms*levelGain, 1)
	m.mu.Unlock()
}

// Level is in [0, 1].
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *LevelMeter) ReceivingAudio() bool {
	return m.Level() > levelReceiving
}

func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}
