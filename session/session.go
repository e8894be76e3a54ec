// Package session records speaking sessions and their WPM samples and keeps
// a bounded, persisted history of finished sessions.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AudioSource string

const (
	SourceMicrophone  AudioSource = "microphone"
	SourceSystemAudio AudioSource = "systemAudio"
)

// ParseAudioSource accepts the stored form plus a few CLI spellings.
func ParseAudioSource(s string) (AudioSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "microphone", "mic":
		return SourceMicrophone, nil
	case "systemaudio", "system", "system-audio", "system_audio":
		return SourceSystemAudio, nil
	}
	return "", fmt.Errorf("unknown audio source %q (use microphone or system)", s)
}

func (a AudioSource) Label() string {
	switch a {
	case SourceMicrophone:
		return "Microphone"
	case SourceSystemAudio:
		return "System Audio"
	}
	return string(a)
}

type WPMDataPoint struct {
	ID        uuid.UUID `json:"id"`
	WPM       int       `json:"wpm"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	ID          uuid.UUID      `json:"id"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	AudioSource AudioSource    `json:"audioSource"`
	DataPoints  []WPMDataPoint `json:"wpmDataPoints"`
}

func (s Session) IsActive() bool { return s.EndTime == nil }

// Duration is EndTime-StartTime, or now-StartTime while the session is open.
func (s Session) Duration(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(s.StartTime)
}

// AverageWPM is the floored mean of the samples, 0 when there are none.
func (s Session) AverageWPM() int {
	if len(s.DataPoints) == 0 {
		return 0
	}
	sum := 0
	for _, p := range s.DataPoints {
		sum += p.WPM
	}
	return sum / len(s.DataPoints)
}

func (s Session) MaxWPM() int {
	if len(s.DataPoints) == 0 {
		return 0
	}
	m := s.DataPoints[0].WPM
	for _, p := range s.DataPoints[1:] {
		m = max(m, p.WPM)
	}
	return m
}

func (s Session) MinWPM() int {
	if len(s.DataPoints) == 0 {
		return 0
	}
	m := s.DataPoints[0].WPM
	for _, p := range s.DataPoints[1:] {
		m = min(m, p.WPM)
	}
	return m
}

func (s Session) clone() Session {
	c := s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.DataPoints = append([]WPMDataPoint(nil), s.DataPoints...)
	return c
}

// Active is either NoActiveSession or ActiveSession.
type Active interface {
	isActive()
}

type NoActiveSession struct{}

type ActiveSession struct {
	Session Session
}

func (NoActiveSession) isActive() {}
func (ActiveSession) isActive()   {}

type Stats struct {
	TotalSessions     int
	TotalSpeakingTime time.Duration
	OverallAverageWPM int
}
