package alert

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"slowdown/wpm"
)

type countingPlayer struct{ n atomic.Int32 }

func (p *countingPlayer) PlayAlert() { p.n.Add(1) }

type settings struct{ sound bool }

func (s *settings) AlertSoundEnabled() bool { return s.sound }
func (s *settings) WPMThreshold() int       { return 160 }

func enter() wpm.Update {
	return wpm.Update{WPM: 190, Status: wpm.StatusTooFast, Previous: wpm.StatusWarning}
}

func newTestAlerter(sound bool) (*Alerter, *countingPlayer, *settings, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &countingPlayer{}
	s := &settings{sound: sound}
	a := New(p, s, WithClock(func() time.Time { return now }))
	return a, p, s, &now
}

func TestAlertOnTransitionOnly(t *testing.T) {
	a, p, _, _ := newTestAlerter(true)
	stay := wpm.Update{WPM: 200, Status: wpm.StatusTooFast, Previous: wpm.StatusTooFast}
	leave := wpm.Update{WPM: 150, Status: wpm.StatusGood, Previous: wpm.StatusTooFast}

	if a.Handle(stay) || a.Handle(leave) {
		t.Fatal("non-transition updates must not alert")
	}
	if !a.Handle(enter()) {
		t.Fatal("transition into too_fast should alert")
	}
	if got := p.n.Load(); got != 1 {
		t.Errorf("played %d times, want 1", got)
	}
}

func TestCooldown(t *testing.T) {
	a, p, _, now := newTestAlerter(true)
	a.Handle(enter())

	*now = now.Add(9 * time.Second)
	if a.Handle(enter()) {
		t.Error("alert inside cooldown")
	}
	*now = now.Add(time.Second)
	if !a.Handle(enter()) {
		t.Error("alert after exactly 10s should fire")
	}
	if got := p.n.Load(); got != 2 {
		t.Errorf("played %d times, want 2", got)
	}
	if a.Fired() != 2 {
		t.Errorf("Fired = %d, want 2", a.Fired())
	}
}

func TestSoundSettingReadAtAlertTime(t *testing.T) {
	a, p, s, now := newTestAlerter(false)
	if !a.Handle(enter()) {
		t.Fatal("alert should fire even when muted")
	}
	if p.n.Load() != 0 {
		t.Error("muted alert played a sound")
	}

	s.sound = true
	*now = now.Add(Cooldown)
	a.Handle(enter())
	if p.n.Load() != 1 {
		t.Error("sound should follow the setting at alert time")
	}
}

func TestNotify(t *testing.T) {
	var got wpm.Update
	a := New(nil, nil, WithNotify(func(u wpm.Update) { got = u }))
	a.Handle(enter())
	if got.WPM != 190 {
		t.Errorf("notify got %+v", got)
	}
}

func TestRunConsumesWindowUpdates(t *testing.T) {
	p := &countingPlayer{}
	a := New(p, &settings{sound: true})
	w := wpm.New(nil)
	id, ch := w.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, ch)
		close(done)
	}()

	w.AddObservation(40, 10, time.Now()) // 240 wpm
	deadline := time.After(2 * time.Second)
	for p.n.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no alert from window update")
		case <-time.After(5 * time.Millisecond):
		}
	}
	w.Unsubscribe(id)
	<-done
	cancel()
}
