package wpm

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultThreshold     = 160
	DefaultWindowSeconds = 60

	// statusBand is the half-width of the Warning tier around the threshold.
	statusBand = 10

	minDurationSeconds = 5.0
	historySize        = 30
)

type Status int

const (
	StatusIdle Status = iota
	StatusGood
	StatusWarning
	StatusTooFast
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusWarning:
		return "warning"
	case StatusTooFast:
		return "too_fast"
	default:
		return "idle"
	}
}

type Observation struct {
	WordCount uint
	Duration  float64 // seconds
	Timestamp time.Time
}

// Settings supplies the tunables. They are read on every recomputation so a
// changed config file takes effect on the next observation.
type Settings interface {
	WPMThreshold() int
	WindowSeconds() int
}

// Window is a sliding-window words-per-minute accumulator.
type Window struct {
	settings Settings
	now      func() time.Time

	mu      sync.Mutex
	obs     []Observation
	current int
	status  Status
	history *ring

	subs subscribers
}

type Option func(*Window)

func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

func New(settings Settings, opts ...Option) *Window {
	w := &Window{
		settings: settings,
		now:      time.Now,
		history:  newRing(historySize),
	}
	w.subs.init()
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Window) AddObservation(wordCount uint, durationSeconds float64, ts time.Time) {
	if durationSeconds < 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		durationSeconds = 0
	}

	w.mu.Lock()
	prev := w.status
	w.obs = append(w.obs, Observation{WordCount: wordCount, Duration: durationSeconds, Timestamp: ts})
	now := w.now()
	w.prune(now)
	w.recompute()
	w.history.write(Reading{WPM: w.current, Timestamp: now})
	u := Update{WPM: w.current, Status: w.status, Previous: prev, At: now}
	w.mu.Unlock()

	w.subs.publish(u)
}

func (w *Window) CurrentWPM() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Window) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// History returns the last computed readings, oldest first.
func (w *Window) History() []Reading {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.readAll()
}

// Totals reports the word and duration sums over the retained observations.
func (w *Window) Totals() (words uint, seconds float64, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.obs {
		words += o.WordCount
		seconds += o.Duration
	}
	return words, seconds, len(w.obs)
}

func (w *Window) Reset() {
	w.mu.Lock()
	prev := w.status
	w.obs = nil
	w.current = 0
	w.status = StatusIdle
	w.history.reset()
	u := Update{WPM: 0, Status: StatusIdle, Previous: prev, At: w.now(), Reset: true}
	w.mu.Unlock()

	w.subs.publish(u)
}

func (w *Window) windowSeconds() int {
	if w.settings == nil {
		return DefaultWindowSeconds
	}
	if s := w.settings.WindowSeconds(); s > 0 {
		return s
	}
	return DefaultWindowSeconds
}

func (w *Window) threshold() int {
	if w.settings == nil {
		return DefaultThreshold
	}
	if t := w.settings.WPMThreshold(); t > 0 {
		return t
	}
	return DefaultThreshold
}

// prune drops observations stamped before now-window, keeping arrival order
// for the rest.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-time.Duration(w.windowSeconds()) * time.Second)
	kept := w.obs[:0]
	for _, o := range w.obs {
		if !o.Timestamp.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	clear(w.obs[len(kept):])
	w.obs = kept
}

func (w *Window) recompute() {
	if len(w.obs) == 0 {
		w.current = 0
		w.status = StatusIdle
		return
	}

	var words uint
	var seconds float64
	for _, o := range w.obs {
		words += o.WordCount
		seconds += o.Duration
	}

	// Below the floor the last computed value is kept.
	if seconds < minDurationSeconds {
		w.status = StatusIdle
		return
	}

	w.current = int(math.Floor(float64(words) / seconds * 60))
	w.status = Classify(w.current, w.threshold())
}

// Classify maps a rate onto a status tier for the given threshold.
func Classify(wpm, threshold int) Status {
	switch {
	case wpm > threshold+statusBand:
		return StatusTooFast
	case wpm > threshold-statusBand:
		return StatusWarning
	default:
		return StatusGood
	}
}
