package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type seqIDs struct{ n uint32 }

func (g *seqIDs) New() uuid.UUID {
	g.n++
	var id uuid.UUID
	id[12], id[13], id[14], id[15] = byte(g.n>>24), byte(g.n>>16), byte(g.n>>8), byte(g.n)
	return id
}

type memStore struct {
	saved   []Session
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) ([]Session, error) { return m.saved, m.loadErr }

func (m *memStore) Save(_ context.Context, s []Session) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = s
	return nil
}

func newTestRecorder(store Store, opts ...Option) (*Recorder, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk), WithIDGenerator(&seqIDs{})}, opts...)
	return NewRecorder(store, opts...), clk
}

// record runs one session with the given samples, one minute apart.
func record(r *Recorder, clk *fakeClock, source AudioSource, wpms ...int) {
	r.StartSession(source)
	for _, w := range wpms {
		clk.Advance(time.Minute)
		r.AddDataPoint(w, clk.Now())
	}
	clk.Advance(time.Minute)
	r.EndSession()
}

func TestEndWithoutActiveIsNoop(t *testing.T) {
	store := &memStore{}
	r, _ := newTestRecorder(store)
	if _, kept := r.EndSession(); kept {
		t.Fatal("EndSession without active session reported kept")
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
}

func TestEmptySessionIsDiscarded(t *testing.T) {
	store := &memStore{}
	r, _ := newTestRecorder(store)
	id, events := r.Subscribe()
	defer r.Unsubscribe(id)

	r.StartSession(SourceMicrophone)
	s, kept := r.EndSession()
	if kept {
		t.Fatal("session without data points was kept")
	}
	if s.EndTime == nil {
		t.Error("discarded session should still carry an end time")
	}
	if n := len(r.Sessions()); n != 0 {
		t.Errorf("Sessions = %d, want 0", n)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
	if ev := <-events; ev.Kind != EventStarted {
		t.Errorf("first event = %v, want started", ev.Kind)
	}
	if ev := <-events; ev.Kind != EventDiscarded {
		t.Errorf("second event = %v, want discarded", ev.Kind)
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	store := &memStore{}
	r, clk := newTestRecorder(store)
	r.StartSession(SourceMicrophone)
	r.AddDataPoint(150, clk.Now())

	s, kept := r.EndSession()
	if !kept || s.EndTime == nil {
		t.Fatalf("first EndSession = (%+v, %v)", s, kept)
	}
	if _, kept := r.EndSession(); kept {
		t.Error("second EndSession reported kept")
	}
	if n := len(r.Sessions()); n != 1 {
		t.Errorf("Sessions = %d, want 1", n)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestStartFinalizesPrevious(t *testing.T) {
	r, clk := newTestRecorder(nil)
	first := r.StartSession(SourceMicrophone)
	r.AddDataPoint(140, clk.Now())
	clk.Advance(time.Minute)

	second := r.StartSession(SourceSystemAudio)
	if first.ID == second.ID {
		t.Fatal("new session reused the old id")
	}

	hist := r.Sessions()
	if len(hist) != 1 || hist[0].ID != first.ID {
		t.Fatalf("history = %+v, want the first session", hist)
	}
	if hist[0].EndTime == nil || !hist[0].EndTime.Equal(clk.Now()) {
		t.Errorf("first session end = %v, want %v", hist[0].EndTime, clk.Now())
	}

	active, ok := r.Active().(ActiveSession)
	if !ok {
		t.Fatalf("Active = %T, want ActiveSession", r.Active())
	}
	if active.Session.ID != second.ID || !active.Session.IsActive() {
		t.Errorf("active = %+v", active.Session)
	}
}

func TestSingleActiveSession(t *testing.T) {
	r, clk := newTestRecorder(nil)
	if _, ok := r.Active().(NoActiveSession); !ok {
		t.Fatalf("fresh recorder Active = %T", r.Active())
	}
	r.StartSession(SourceMicrophone)
	r.AddDataPoint(100, clk.Now())
	r.StartSession(SourceMicrophone)
	r.StartSession(SourceMicrophone)
	for _, s := range r.Sessions() {
		if s.IsActive() {
			t.Errorf("closed history contains open session %s", s.ID)
		}
	}
	r.EndSession()
	if _, ok := r.Active().(NoActiveSession); !ok {
		t.Errorf("after EndSession Active = %T", r.Active())
	}
}

func TestAddDataPointWithoutActive(t *testing.T) {
	r, clk := newTestRecorder(nil)
	if r.AddDataPoint(150, clk.Now()) {
		t.Fatal("AddDataPoint without session reported success")
	}
}

func TestAddDataPointClampsNegative(t *testing.T) {
	r, clk := newTestRecorder(nil)
	r.StartSession(SourceMicrophone)
	r.AddDataPoint(-5, clk.Now())
	s, _ := r.EndSession()
	if s.DataPoints[0].WPM != 0 {
		t.Errorf("WPM = %d, want 0", s.DataPoints[0].WPM)
	}
}

func TestSessionSummaries(t *testing.T) {
	for _, tt := range []struct {
		name          string
		wpms          []int
		avg, max, min int
	}{
		{"empty", nil, 0, 0, 0},
		{"single", []int{150}, 150, 150, 150},
		{"floored", []int{100, 101}, 100, 101, 100},
		{"spread", []int{120, 180, 150, 90}, 135, 180, 90},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var s Session
			for _, w := range tt.wpms {
				s.DataPoints = append(s.DataPoints, WPMDataPoint{WPM: w})
			}
			if got := s.AverageWPM(); got != tt.avg {
				t.Errorf("AverageWPM = %d, want %d", got, tt.avg)
			}
			if got := s.MaxWPM(); got != tt.max {
				t.Errorf("MaxWPM = %d, want %d", got, tt.max)
			}
			if got := s.MinWPM(); got != tt.min {
				t.Errorf("MinWPM = %d, want %d", got, tt.min)
			}
		})
	}
}

func TestSessionDuration(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := Session{StartTime: start}
	if got := s.Duration(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("open Duration = %v, want 90s", got)
	}
	end := start.Add(time.Minute)
	s.EndTime = &end
	if got := s.Duration(start.Add(time.Hour)); got != time.Minute {
		t.Errorf("closed Duration = %v, want 1m", got)
	}
}

func TestStatsAverageOfAverages(t *testing.T) {
	r, clk := newTestRecorder(nil)
	record(r, clk, SourceMicrophone, 100, 200) // avg 150, 3 minutes
	record(r, clk, SourceMicrophone, 90)       // avg 90, 2 minutes

	st := r.Stats()
	if st.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", st.TotalSessions)
	}
	// Sample-weighted would be 130.
	if st.OverallAverageWPM != 120 {
		t.Errorf("OverallAverageWPM = %d, want 120", st.OverallAverageWPM)
	}
	if st.TotalSpeakingTime != 5*time.Minute {
		t.Errorf("TotalSpeakingTime = %v, want 5m", st.TotalSpeakingTime)
	}
}

func TestStatsEmpty(t *testing.T) {
	r, _ := newTestRecorder(nil)
	if st := r.Stats(); st != (Stats{}) {
		t.Errorf("Stats = %+v, want zero", st)
	}
}

func TestHistoryIsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFileName)
	r, clk := newTestRecorder(NewJSONStore(path))

	var ids []uuid.UUID
	for i := range 105 {
		r.StartSession(SourceMicrophone)
		r.AddDataPoint(100+i, clk.Now())
		s, _ := r.EndSession()
		ids = append(ids, s.ID)
		clk.Advance(time.Minute)
	}

	hist := r.Sessions()
	if len(hist) != DefaultMaxSessions {
		t.Fatalf("len = %d, want %d", len(hist), DefaultMaxSessions)
	}
	if hist[0].ID != ids[5] || hist[99].ID != ids[104] {
		t.Error("truncation should keep the most recent sessions in order")
	}

	reloaded, _ := newTestRecorder(NewJSONStore(path))
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := reloaded.Sessions()
	if len(got) != DefaultMaxSessions || got[0].ID != ids[5] {
		t.Errorf("reloaded %d sessions starting at %v", len(got), got[0].ID)
	}
}

func TestWithMaxSessions(t *testing.T) {
	r, clk := newTestRecorder(nil, WithMaxSessions(2))
	for _, w := range []int{1, 2, 3} {
		record(r, clk, SourceMicrophone, w)
	}
	hist := r.Sessions()
	if len(hist) != 2 || hist[0].AverageWPM() != 2 {
		t.Errorf("history = %+v", hist)
	}
}

func TestLoadTruncatesOversizedHistory(t *testing.T) {
	store := &memStore{}
	for i := range 5 {
		store.saved = append(store.saved, Session{ID: uuid.New(), DataPoints: []WPMDataPoint{{WPM: i}}})
	}
	r, _ := newTestRecorder(store, WithMaxSessions(3))
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	hist := r.Sessions()
	if len(hist) != 3 || hist[0].DataPoints[0].WPM != 2 {
		t.Errorf("history = %+v", hist)
	}
}

func TestLoadCorruptFileGivesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ := newTestRecorder(NewJSONStore(path))
	if err := r.Load(context.Background()); err == nil {
		t.Error("expected decode error to be reported")
	}
	if n := len(r.Sessions()); n != 0 {
		t.Errorf("Sessions = %d, want 0", n)
	}
}

func TestLoadMissingFileGivesEmpty(t *testing.T) {
	r, _ := newTestRecorder(NewJSONStore(filepath.Join(t.TempDir(), "nope", JSONFileName)))
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(r.Sessions()); n != 0 {
		t.Errorf("Sessions = %d, want 0", n)
	}
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	r, clk := newTestRecorder(store)
	record(r, clk, SourceMicrophone, 150)
	if n := len(r.Sessions()); n != 1 {
		t.Errorf("Sessions = %d, want 1 despite save failure", n)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestDeleteSession(t *testing.T) {
	store := &memStore{}
	r, clk := newTestRecorder(store)
	record(r, clk, SourceMicrophone, 150)
	record(r, clk, SourceSystemAudio, 170)
	target := r.Sessions()[0].ID

	if err := r.DeleteSession(target); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].AudioSource != SourceSystemAudio {
		t.Errorf("persisted = %+v", store.saved)
	}
	if err := r.DeleteSession(target); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestClearAll(t *testing.T) {
	store := &memStore{}
	r, clk := newTestRecorder(store)
	record(r, clk, SourceMicrophone, 150)
	record(r, clk, SourceMicrophone, 150)

	r.ClearAll()
	if n := len(r.Sessions()); n != 0 {
		t.Errorf("Sessions = %d, want 0", n)
	}
	if store.saved == nil || len(store.saved) != 0 {
		t.Errorf("persisted = %v, want empty list", store.saved)
	}
}

func TestSessionsBySource(t *testing.T) {
	r, clk := newTestRecorder(nil)
	record(r, clk, SourceMicrophone, 150)
	record(r, clk, SourceSystemAudio, 170)
	record(r, clk, SourceMicrophone, 130)

	mic := r.SessionsBySource(SourceMicrophone)
	if len(mic) != 2 {
		t.Fatalf("microphone sessions = %d, want 2", len(mic))
	}
	for _, s := range mic {
		if s.AudioSource != SourceMicrophone {
			t.Errorf("got source %q", s.AudioSource)
		}
	}
	if n := len(r.SessionsBySource(SourceSystemAudio)); n != 1 {
		t.Errorf("system sessions = %d, want 1", n)
	}
}

func TestSessionsReturnsCopies(t *testing.T) {
	r, clk := newTestRecorder(nil)
	record(r, clk, SourceMicrophone, 150)
	r.Sessions()[0].DataPoints[0].WPM = 999
	if got := r.Sessions()[0].DataPoints[0].WPM; got != 150 {
		t.Errorf("internal state mutated through Sessions(): %d", got)
	}
}

func TestParseAudioSource(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want AudioSource
		ok   bool
	}{
		{"microphone", SourceMicrophone, true},
		{"Mic", SourceMicrophone, true},
		{"systemAudio", SourceSystemAudio, true},
		{"system", SourceSystemAudio, true},
		{"speaker", "", false},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAudioSource(tt.in)
			if (err == nil) != tt.ok || got != tt.want {
				t.Errorf("ParseAudioSource(%q) = (%q, %v)", tt.in, got, err)
			}
		})
	}
}
