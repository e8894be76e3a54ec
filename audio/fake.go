package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"slowdown/encoder"
)

const fakeFrameSize = 1024

// FakeContext replays a fixed PCM buffer as if it were a capture device.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu      sync.Mutex
	devices []DeviceInfo
}

// NewFakeContext decodes a WAV file and converts it to the capture format
// (16 kHz mono PCM16). With realtime set, blocks are delivered at the pace
// they would arrive from a microphone.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", wavPath)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wavPath, err)
	}
	return NewFakeContextPCM(toCapturePCM(buf, int(dec.BitDepth)), realtime), nil
}

// NewFakeContextPCM replays raw 16 kHz mono PCM16.
func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{
		pcm:      pcm,
		realtime: realtime,
		devices:  []DeviceInfo{{ID: "fake", Name: "Fake Microphone", IsDefault: true}},
	}
}

// SetDevices replaces what Devices reports.
func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Close() {}

// Duration is the length of the replayed audio.
func (f *FakeContext) Duration() time.Duration { return encoder.Duration(len(f.pcm)) }

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	name := "fake"
	if device != nil {
		name = device.Name
	}
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, name: name, audioDone: make(chan struct{})}, nil
}

// toCapturePCM mixes down to mono, resamples by nearest neighbour and
// scales to 16 bits.
func toCapturePCM(buf *goaudio.IntBuffer, bitDepth int) []byte {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil
	}
	chans := buf.Format.NumChannels
	frames := len(buf.Data) / chans
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < chans; c++ {
			sum += buf.Data[i*chans+c]
		}
		mono[i] = sum / chans
	}

	shift := bitDepth - 16
	rate := buf.Format.SampleRate
	if rate <= 0 {
		rate = encoder.SampleRate
	}
	outFrames := frames * encoder.SampleRate / rate
	out := make([]byte, outFrames*2)
	for i := 0; i < outFrames; i++ {
		v := mono[i*rate/encoder.SampleRate]
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		v = min(max(v, -32768), 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	name      string
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedBlock(cb DataCallback, pos, blockBytes int) int {
	end := min(pos+blockBytes, len(f.pcm))
	block := make([]byte, end-pos)
	copy(block, f.pcm[pos:end])
	cb(block, uint32(len(block)/encoder.BytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is not recreated here since callers may already wait on it.

	blockBytes := fakeFrameSize * encoder.BytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedBlock(cb, pos, blockBytes)
			}
		}
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		finished := false
		silence := make([]byte, blockBytes)

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			cb := f.callback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.pcm) {
				pos = f.feedBlock(cb, pos, blockBytes)
			} else {
				if !finished {
					finished = true
					close(f.audioDone)
				}
				cb(silence, fakeFrameSize)
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
	f.audioDone = make(chan struct{})
}

func (f *FakeCapture) Close() {}
