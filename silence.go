package main

import (
	"context"
	"time"

	"slowdown/audio"
)

const (
	tickInterval     = 100 * time.Millisecond
	quietWarnAfter   = 20 * time.Second
	quietRepeatEvery = 60 * time.Second
	signalMinRatio   = 0.10
	signalClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type InputEvent int

const (
	InputNone   InputEvent = iota
	InputQuiet             // no signal from the capture device
	InputBack              // signal resumed after a warning
	InputRepeat            // still quiet, warned again
)

// inputMonitor watches the capture level and reports when a device stops
// delivering signal, which usually means a muted or wrong input.
type inputMonitor struct {
	warnAt   int
	repeatAt int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func newInputMonitor() *inputMonitor {
	warnAt := int(quietWarnAfter / tickInterval)
	return &inputMonitor{
		warnAt:   warnAt,
		repeatAt: int(quietRepeatEvery / tickInterval),
		window:   make([]bool, warnAt),
	}
}

// ratio is the share of ticks with signal over the last warnAt ticks.
func (m *inputMonitor) ratio() float64 {
	n := min(m.ticks, m.warnAt)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *inputMonitor) Tick(hasSignal bool) InputEvent {
	m.window[m.ticks%m.warnAt] = hasSignal
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.warnAt && r < signalMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return InputQuiet
	}
	if m.warned && r >= signalClearRatio {
		m.warned = false
		return InputBack
	}
	if m.warned && m.ticks-m.lastWarn >= m.repeatAt {
		m.lastWarn = m.ticks
		return InputRepeat
	}
	return InputNone
}

func (m *inputMonitor) Reset() {
	clear(m.window)
	m.ticks = 0
	m.warned = false
	m.lastWarn = 0
}

// watchInput samples the level meter every tick while running reports true
// and passes events other than InputNone to onEvent.
func watchInput(ctx context.Context, meter *audio.LevelMeter, running func() bool, onEvent func(InputEvent)) {
	m := newInputMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running() {
				m.Reset()
				continue
			}
			if ev := m.Tick(meter.ReceivingAudio()); ev != InputNone {
				onEvent(ev)
			}
		}
	}
}
