// Package alert warns the speaker when the rolling rate crosses into the
// too-fast tier.
package alert

import (
	"context"
	"sync"
	"time"

	"slowdown/log"
	"slowdown/wpm"
)

// Cooldown is the minimum spacing between two alerts.
const Cooldown = 10 * time.Second

type Player interface {
	PlayAlert()
}

// Settings is read at the moment an alert fires.
type Settings interface {
	AlertSoundEnabled() bool
	WPMThreshold() int
}

type Alerter struct {
	player   Player
	settings Settings
	now      func() time.Time

	mu     sync.Mutex
	last   time.Time
	fired  int
	notify func(wpm.Update)
}

type Option func(*Alerter)

func WithClock(now func() time.Time) Option {
	return func(a *Alerter) { a.now = now }
}

// WithNotify registers a callback run on every alert, sound or not.
func WithNotify(fn func(wpm.Update)) Option {
	return func(a *Alerter) { a.notify = fn }
}

func New(player Player, settings Settings, opts ...Option) *Alerter {
	a := &Alerter{player: player, settings: settings, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handle fires on a transition into StatusTooFast unless the previous alert
// was less than Cooldown ago. It reports whether an alert fired.
func (a *Alerter) Handle(u wpm.Update) bool {
	if !u.Entered(wpm.StatusTooFast) {
		return false
	}

	a.mu.Lock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < Cooldown {
		a.mu.Unlock()
		return false
	}
	a.last = now
	a.fired++
	notify := a.notify
	a.mu.Unlock()

	sound := a.settings == nil || a.settings.AlertSoundEnabled()
	threshold := wpm.DefaultThreshold
	if a.settings != nil {
		threshold = a.settings.WPMThreshold()
	}
	log.Alert(u.WPM, threshold, sound)

	if sound && a.player != nil {
		a.player.PlayAlert()
	}
	if notify != nil {
		notify(u)
	}
	return true
}

// Fired reports how many alerts have fired.
func (a *Alerter) Fired() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired
}

// Run handles updates until ctx is done or the channel is closed.
func (a *Alerter) Run(ctx context.Context, updates <-chan wpm.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			a.Handle(u)
		}
	}
}
