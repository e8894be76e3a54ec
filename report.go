package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"slowdown/audio"
	"slowdown/log"
	"slowdown/session"
	"slowdown/wpm"
)

const meterWidth = 10

type thresholdSettings interface {
	WPMThreshold() int
	WindowSeconds() int
}

// reporter prints one line per rate update to the terminal.
type reporter struct {
	mu       sync.Mutex
	w        io.Writer
	meter    *audio.LevelMeter
	settings thresholdSettings
}

func newReporter(w io.Writer, meter *audio.LevelMeter, settings thresholdSettings) *reporter {
	return &reporter{w: w, meter: meter, settings: settings}
}

// Run prints window updates until ctx is done.
func (r *reporter) Run(ctx context.Context, window *wpm.Window) {
	id, updates := window.Subscribe()
	defer window.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.Update(u)
		}
	}
}

func statusLabel(s wpm.Status) string {
	switch s {
	case wpm.StatusGood:
		return "good"
	case wpm.StatusWarning:
		return "warning"
	case wpm.StatusTooFast:
		return "TOO FAST"
	}
	return "waiting"
}

func levelBar(level float64) string {
	n := int(level*meterWidth + 0.5)
	n = min(max(n, 0), meterWidth)
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", meterWidth-n) + "]"
}

func (r *reporter) Update(u wpm.Update) {
	if u.Reset {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	level := 0.0
	if r.meter != nil {
		level = r.meter.Level()
	}
	rate := "  -"
	if u.Status != wpm.StatusIdle {
		rate = fmt.Sprintf("%3d", u.WPM)
	}
	fmt.Fprintf(r.w, "%s  %s wpm  %-8s %s\n", u.At.Format("15:04:05"), rate, statusLabel(u.Status), levelBar(level))
}

func (r *reporter) Alert(u wpm.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "          >>> slow down: %d wpm (limit %d)\n", u.WPM, r.settings.WPMThreshold())
}

func (r *reporter) Input(ev InputEvent, device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev {
	case InputQuiet, InputRepeat:
		log.Warnf("no signal from %s", device)
		fmt.Fprintf(r.w, "          !!! no audio from %s, check the input or run `slowdown devices --select`\n", device)
	case InputBack:
		log.Infof("signal back on %s", device)
		fmt.Fprintf(r.w, "          audio from %s is back\n", device)
	}
}

func (r *reporter) Started(source session.AudioSource, device, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Monitoring %s (%s) via %s, limit %d wpm over %ds. Ctrl+C to stop.\n",
		source.Label(), device, provider, r.settings.WPMThreshold(), r.settings.WindowSeconds())
}

// Ended prints the summary of the session that just closed, if any.
func (r *reporter) Ended(ev *session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev == nil {
		return
	}
	if ev.Kind == session.EventDiscarded {
		fmt.Fprintln(r.w, "No speech measured, session not saved.")
		return
	}
	s := ev.Session
	fmt.Fprintf(r.w, "Session %s: %s, avg %d wpm (min %d, max %d), %d samples.\n",
		shortID(s), formatDuration(s.Duration(time.Now())), s.AverageWPM(), s.MinWPM(), s.MaxWPM(), len(s.DataPoints))
}

func shortID(s session.Session) string {
	return s.ID.String()[:8]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
