package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"slowdown/log"
)

var ErrNotFound = errors.New("session not found")

const (
	DefaultMaxSessions = 100

	subscriberBufCap = 16
)

// Store persists the whole closed-session list.
type Store interface {
	Load(ctx context.Context) ([]Session, error)
	Save(ctx context.Context, sessions []Session) error
}

// Clock abstracts time so tests are deterministic.
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	New() uuid.UUID
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type randomIDs struct{}

func (randomIDs) New() uuid.UUID { return uuid.New() }

type EventKind int

const (
	EventStarted EventKind = iota
	EventEnded
	EventDiscarded
	EventDeleted
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventDiscarded:
		return "discarded"
	case EventDeleted:
		return "deleted"
	case EventCleared:
		return "cleared"
	}
	return "unknown"
}

type Event struct {
	Kind    EventKind
	Session Session // zero for EventCleared
}

type Option func(*Recorder)

func WithClock(c Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

func WithMaxSessions(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.max = n
		}
	}
}

// Recorder owns the active session and the history of closed ones. All
// methods are safe for concurrent use.
type Recorder struct {
	store Store
	clock Clock
	ids   IDGenerator
	max   int

	mu       sync.Mutex
	sessions []Session
	active   *Session

	subsMu sync.RWMutex
	subs   map[string]chan Event
}

// NewRecorder returns an empty recorder. A nil store keeps history in memory
// only.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		clock: systemClock{},
		ids:   randomIDs{},
		max:   DefaultMaxSessions,
		subs:  make(map[string]chan Event),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load replaces the in-memory history with the persisted one. On error the
// history is left empty and the error is returned for reporting.
func (r *Recorder) Load(ctx context.Context) error {
	var loaded []Session
	var err error
	if r.store != nil {
		loaded, err = r.store.Load(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		log.Warnf("session history unreadable, starting empty: %v", err)
		r.sessions = nil
		return err
	}
	if len(loaded) > r.max {
		loaded = loaded[len(loaded)-r.max:]
	}
	r.sessions = loaded
	return nil
}

// StartSession closes any open session and opens a new one.
func (r *Recorder) StartSession(source AudioSource) Session {
	r.mu.Lock()
	var events []Event
	if r.active != nil {
		events = append(events, r.finalizeLocked())
	}
	s := Session{
		ID:          r.ids.New(),
		StartTime:   r.clock.Now(),
		AudioSource: source,
		DataPoints:  []WPMDataPoint{},
	}
	r.active = &s
	started := s.clone()
	events = append(events, Event{Kind: EventStarted, Session: started})
	r.mu.Unlock()

	log.SessionStart(started.ID.String(), string(source))
	r.publish(events...)
	return started
}

// AddDataPoint appends a sample to the open session. It reports false when
// no session is open.
func (r *Recorder) AddDataPoint(wpm int, ts time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return false
	}
	r.active.DataPoints = append(r.active.DataPoints, WPMDataPoint{
		ID:        r.ids.New(),
		WPM:       max(wpm, 0),
		Timestamp: ts,
	})
	return true
}

// EndSession closes the open session. The returned bool is true only when
// the session was kept in history; sessions without samples are discarded.
func (r *Recorder) EndSession() (Session, bool) {
	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		return Session{}, false
	}
	ev := r.finalizeLocked()
	r.mu.Unlock()

	r.publish(ev)
	return ev.Session, ev.Kind == EventEnded
}

// finalizeLocked closes r.active, appends it to history when it has samples
// and persists. r.mu must be held.
func (r *Recorder) finalizeLocked() Event {
	s := *r.active
	r.active = nil
	end := r.clock.Now()
	s.EndTime = &end

	kept := len(s.DataPoints) > 0
	log.SessionEnd(s.ID.String(), len(s.DataPoints), s.AverageWPM(), kept)
	if !kept {
		return Event{Kind: EventDiscarded, Session: s.clone()}
	}
	r.sessions = append(r.sessions, s)
	r.truncateLocked()
	r.persistLocked()
	return Event{Kind: EventEnded, Session: s.clone()}
}

func (r *Recorder) DeleteSession(id uuid.UUID) error {
	r.mu.Lock()
	i := slices.IndexFunc(r.sessions, func(s Session) bool { return s.ID == id })
	if i < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	removed := r.sessions[i]
	r.sessions = slices.Delete(r.sessions, i, i+1)
	r.truncateLocked()
	r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventDeleted, Session: removed.clone()})
	return nil
}

// ClearAll drops the whole history. The open session, if any, is kept.
func (r *Recorder) ClearAll() {
	r.mu.Lock()
	r.sessions = nil
	r.persistLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventCleared})
}

func (r *Recorder) truncateLocked() {
	if n := len(r.sessions); n > r.max {
		r.sessions = slices.Clone(r.sessions[n-r.max:])
	}
}

// persistLocked writes the history. Failures are logged and the in-memory
// list stays authoritative.
func (r *Recorder) persistLocked() {
	if r.store == nil {
		return
	}
	snapshot := make([]Session, len(r.sessions))
	for i, s := range r.sessions {
		snapshot[i] = s.clone()
	}
	if err := r.store.Save(context.Background(), snapshot); err != nil {
		log.Errorf("saving session history: %v", err)
	}
}

// Sessions returns the closed sessions in the order they ended.
func (r *Recorder) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.clone()
	}
	return out
}

func (r *Recorder) SessionsBySource(source AudioSource) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.AudioSource == source {
			out = append(out, s.clone())
		}
	}
	return out
}

func (r *Recorder) Active() Active {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return NoActiveSession{}
	}
	return ActiveSession{Session: r.active.clone()}
}

// Stats summarizes the closed sessions. OverallAverageWPM is the mean of the
// per-session averages, not a sample-weighted mean.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summarize(r.sessions, r.clock.Now())
}

// Summarize computes Stats over any session list.
func Summarize(sessions []Session, now time.Time) Stats {
	st := Stats{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return st
	}
	sum := 0
	for _, s := range sessions {
		st.TotalSpeakingTime += s.Duration(now)
		sum += s.AverageWPM()
	}
	st.OverallAverageWPM = sum / len(sessions)
	return st
}

// Subscribe returns a channel receiving every subsequent Event and an ID for
// Unsubscribe. Events are dropped for a subscriber whose buffer is full.
func (r *Recorder) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBufCap)
	r.subsMu.Lock()
	r.subs[id] = ch
	r.subsMu.Unlock()
	return id, ch
}

func (r *Recorder) Unsubscribe(id string) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	if ch, ok := r.subs[id]; ok {
		close(ch)
		delete(r.subs, id)
	}
}

func (r *Recorder) publish(events ...Event) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, ev := range events {
		for _, ch := range r.subs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
