package wpm

import "time"

// Reading is one computed rate, kept for trend display.
type Reading struct {
	WPM       int
	Timestamp time.Time
}

// ring is a fixed-capacity circular buffer of readings.
type ring struct {
	buf  []Reading
	pos  int // next write position
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Reading, capacity)}
}

func (r *ring) write(v Reading) {
	r.buf[r.pos] = v
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
}

// readAll returns the readings in chronological order.
func (r *ring) readAll() []Reading {
	if !r.full {
		out := make([]Reading, r.pos)
		copy(out, r.buf[:r.pos])
		return out
	}
	out := make([]Reading, len(r.buf))
	n := copy(out, r.buf[r.pos:])
	copy(out[n:], r.buf[:r.pos])
	return out
}

func (r *ring) reset() {
	clear(r.buf)
	r.pos = 0
	r.full = false
}
