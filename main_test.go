package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"slowdown/config"
	"slowdown/session"
	"slowdown/wpm"
)

func TestFlagOverrides(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--threshold", "190", "--no-sound", "--source", "system", "--chunk", "5s"}); err != nil {
		t.Fatal(err)
	}
	o, err := flagOverrides(cmd)
	if err != nil {
		t.Fatalf("flagOverrides: %v", err)
	}

	s := config.New(config.FileConfig{Monitor: config.MonitorConfig{WindowSeconds: ptrTo(45)}})
	s.Override(o)
	if s.WPMThreshold() != 190 {
		t.Errorf("WPMThreshold = %d", s.WPMThreshold())
	}
	if s.AlertSoundEnabled() {
		t.Error("--no-sound ignored")
	}
	if s.AudioSource() != config.SourceSystemAudio {
		t.Errorf("AudioSource = %q", s.AudioSource())
	}
	if s.ChunkDuration() != 5*time.Second {
		t.Errorf("ChunkDuration = %v", s.ChunkDuration())
	}
	// Flags not passed leave the file value alone.
	if s.WindowSeconds() != 45 {
		t.Errorf("WindowSeconds = %d, want file value 45", s.WindowSeconds())
	}
}

func TestFlagOverridesRejectsBadValues(t *testing.T) {
	for _, args := range [][]string{
		{"--source", "speakers"},
		{"--window", "0"},
		{"--chunk", "100ms"},
	} {
		cmd := newRootCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		if _, err := flagOverrides(cmd); err == nil {
			t.Errorf("flagOverrides(%v) accepted bad value", args)
		}
	}
}

func ptrTo[T any](v T) *T { return &v }

func TestLevelBar(t *testing.T) {
	for _, tt := range []struct {
		level float64
		want  string
	}{
		{0, "[..........]"},
		{0.26, "[###.......]"},
		{1, "[##########]"},
		{3, "[##########]"},
	} {
		if got := levelBar(tt.level); got != tt.want {
			t.Errorf("levelBar(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	for _, tt := range []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{time.Hour + 2*time.Minute + 400*time.Millisecond, "1h02m00s"},
	} {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestReporterSkipsReset(t *testing.T) {
	var buf bytes.Buffer
	r := newReporter(&buf, nil, config.New(config.FileConfig{}))
	r.Update(wpm.Update{Reset: true, At: time.Now()})
	if buf.Len() != 0 {
		t.Fatalf("reset update printed %q", buf.String())
	}
	r.Update(wpm.Update{WPM: 182, Status: wpm.StatusTooFast, At: time.Now()})
	if !strings.Contains(buf.String(), "182 wpm") || !strings.Contains(buf.String(), "TOO FAST") {
		t.Fatalf("line = %q", buf.String())
	}
}

func testSessions(now time.Time) []session.Session {
	mk := func(id string, start time.Time, src session.AudioSource, wpms ...int) session.Session {
		end := start.Add(2 * time.Minute)
		s := session.Session{ID: uuid.MustParse(id), StartTime: start, EndTime: &end, AudioSource: src}
		for i, w := range wpms {
			s.DataPoints = append(s.DataPoints, session.WPMDataPoint{ID: uuid.New(), WPM: w, Timestamp: start.Add(time.Duration(i) * time.Second)})
		}
		return s
	}
	return []session.Session{
		mk("aaaa1111-0000-0000-0000-000000000001", now.Add(-2*time.Hour), session.SourceMicrophone, 140, 160),
		mk("aaaa2222-0000-0000-0000-000000000002", now.Add(-time.Hour), session.SourceSystemAudio, 180),
	}
}

func TestPrintHistory(t *testing.T) {
	now := time.Now()
	var buf bytes.Buffer
	printHistory(&buf, testSessions(now), now)
	out := buf.String()

	if strings.Index(out, "aaaa2222") > strings.Index(out, "aaaa1111") {
		t.Errorf("newest session not listed first:\n%s", out)
	}
	if !strings.Contains(out, "2 sessions, 4m00s speaking, average 165 wpm") {
		t.Errorf("summary line missing:\n%s", out)
	}

	buf.Reset()
	printHistory(&buf, nil, now)
	if !strings.Contains(buf.String(), "No sessions") {
		t.Errorf("empty history output = %q", buf.String())
	}
}

func TestMatchSession(t *testing.T) {
	sessions := testSessions(time.Now())

	id, err := matchSession(sessions, "aaaa2")
	if err != nil || id != sessions[1].ID {
		t.Fatalf("prefix match = %v, %v", id, err)
	}
	if _, err := matchSession(sessions, "aaaa"); err == nil {
		t.Error("ambiguous prefix accepted")
	}
	if _, err := matchSession(sessions, "ffff"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	full := sessions[0].ID.String()
	if id, err := matchSession(sessions, full); err != nil || id != sessions[0].ID {
		t.Errorf("full id match = %v, %v", id, err)
	}
}

func TestExpectedSegments(t *testing.T) {
	for _, tt := range []struct {
		d, chunk time.Duration
		want     int
	}{
		{0, 10 * time.Second, 0},
		{10 * time.Second, 10 * time.Second, 1},
		{25 * time.Second, 10 * time.Second, 3},
		{time.Second, 0, 0},
	} {
		if got := expectedSegments(tt.d, tt.chunk); got != tt.want {
			t.Errorf("expectedSegments(%v, %v) = %d, want %d", tt.d, tt.chunk, got, tt.want)
		}
	}
}
