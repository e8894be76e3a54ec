// Package beep plays the short cues used by the monitor.
package beep

import (
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

// Disable silences every cue for the rest of the process.
func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Alert: bright, very short tick
	alertFreq     = 1760
	alertDuration = 0.12
	alertVolume   = 0.45
	alertDecay    = 45

	// Error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Player adapts the package-level cues to the alert.Player interface.
type Player struct{}

func (Player) PlayAlert() { PlayAlert() }

// tone renders a decaying sine as mono PCM16.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tone(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	out = append(out, b...)
	return out
}

func alertSamples() []int16 {
	return tone(alertFreq, alertDuration, alertVolume, alertDecay)
}

func errorSamples() []int16 {
	return doubleTone(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}
