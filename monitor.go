package main

import (
	"errors"
	"fmt"
	"sync"

	"slowdown/audio"
	"slowdown/chunker"
	"slowdown/encoder"
	"slowdown/log"
	"slowdown/session"
	"slowdown/wpm"
)

var errUnknownDevice = errors.New("unknown input device")

// Monitor connects a capture device to the chunker and routes every
// transcribed segment into the rate window and the session recorder.
type Monitor struct {
	audioCtx audio.Context
	registry *audio.Registry
	window   *wpm.Window
	chunker  *chunker.Chunker
	recorder *session.Recorder
	meter    *audio.LevelMeter

	mu      sync.Mutex
	running bool
	source  session.AudioSource
	device  *audio.DeviceInfo // preferred microphone, nil for the default
	capture audio.CaptureDevice
	gen     uint64 // chunker generation of the current run

	closeOnce sync.Once
	done      chan struct{}
	consumed  chan struct{}
}

func NewMonitor(audioCtx audio.Context, window *wpm.Window, ch *chunker.Chunker, rec *session.Recorder) *Monitor {
	m := &Monitor{
		audioCtx: audioCtx,
		registry: audio.NewRegistry(audioCtx),
		window:   window,
		chunker:  ch,
		recorder: rec,
		meter:    &audio.LevelMeter{},
		source:   session.SourceMicrophone,
		done:     make(chan struct{}),
		consumed: make(chan struct{}),
	}
	go m.consume()
	return m
}

func (m *Monitor) Registry() *audio.Registry   { return m.registry }
func (m *Monitor) Meter() *audio.LevelMeter    { return m.meter }
func (m *Monitor) Window() *wpm.Window         { return m.window }
func (m *Monitor) Recorder() *session.Recorder { return m.recorder }

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) Source() session.AudioSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// DeviceName is the name of the device being captured, empty when stopped.
func (m *Monitor) DeviceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return ""
	}
	return m.capture.DeviceName()
}

// Start begins a session on source. Starting while running is a no-op.
func (m *Monitor) Start(source session.AudioSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	m.source = source
	return m.startLocked()
}

// Stop ends the session. In-flight transcriptions are abandoned.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// SwitchSource changes the audio source, restarting capture if running.
func (m *Monitor) SwitchSource(source session.AudioSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == source {
		return nil
	}
	wasRunning := m.running
	m.stopLocked()
	m.source = source
	if wasRunning {
		return m.startLocked()
	}
	return nil
}

// SwitchDevice selects dev as the microphone, restarting capture if the
// microphone is being monitored.
func (m *Monitor) SwitchDevice(dev audio.DeviceInfo) error {
	if !m.registry.SetDefaultInputDevice(dev) {
		return fmt.Errorf("%w: %s", errUnknownDevice, dev.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = &dev
	log.Infof("input device: %s", dev.Name)
	if m.running && m.source == session.SourceMicrophone {
		m.stopLocked()
		return m.startLocked()
	}
	return nil
}

// Close stops monitoring and the observation consumer.
func (m *Monitor) Close() {
	m.Stop()
	m.closeOnce.Do(func() {
		close(m.done)
		<-m.consumed
	})
}

func (m *Monitor) resolveDevice() (*audio.DeviceInfo, error) {
	if m.source == session.SourceSystemAudio {
		return m.registry.SystemSource()
	}
	if m.device != nil {
		return m.device, nil
	}
	return m.registry.DefaultInputDevice()
}

func (m *Monitor) startLocked() error {
	dev, err := m.resolveDevice()
	if err != nil {
		log.Errorf("no capture device for %s: %v", m.source, err)
		return fmt.Errorf("selecting %s device: %w", m.source.Label(), err)
	}

	capture, err := m.audioCtx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		return fmt.Errorf("opening capture device: %w", err)
	}
	capture.SetCallback(m.onAudio)

	m.window.Reset()
	m.meter.Reset()
	m.recorder.StartSession(m.source)
	m.chunker.Start()

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		m.chunker.Stop()
		m.recorder.EndSession()
		log.Errorf("capture start error: %v", err)
		return fmt.Errorf("starting capture: %w", err)
	}

	m.capture = capture
	m.gen = m.chunker.Generation()
	m.running = true
	log.Infof("monitoring %s on %s", m.source, capture.DeviceName())
	return nil
}

func (m *Monitor) stopLocked() {
	if !m.running {
		return
	}
	m.running = false

	m.capture.ClearCallback()
	m.capture.Stop()
	m.capture.Close()
	m.capture = nil

	m.chunker.Stop()
	m.drainLocked()
	m.window.Reset()
	m.meter.Reset()
	m.recorder.EndSession()
}

// drainLocked drops observations queued before Stop so they cannot leak
// into the next session.
func (m *Monitor) drainLocked() {
	for {
		select {
		case <-m.chunker.Observations():
		default:
			return
		}
	}
}

func (m *Monitor) onAudio(data []byte, _ uint32) {
	m.meter.Process(data)
	m.chunker.Feed(data)
}

func (m *Monitor) consume() {
	defer close(m.consumed)
	obs := m.chunker.Observations()
	for {
		select {
		case <-m.done:
			return
		case o := <-obs:
			m.handle(o)
		}
	}
}

func (m *Monitor) handle(o chunker.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || o.Gen != m.gen {
		return
	}
	before := m.window.Status()
	m.window.AddObservation(o.WordCount, o.Duration, o.Timestamp)
	rate, status := m.window.CurrentWPM(), m.window.Status()

	log.Observation(o.WordCount, o.Duration, rate, status.String())
	if status != before {
		log.StatusChange(before.String(), status.String(), rate)
	}
	m.recorder.AddDataPoint(rate, o.Timestamp)
}
