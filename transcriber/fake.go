package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeTranscriber returns a fixed transcript for every session. An empty
// text is reported as no speech.
type FakeTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	lang     string
	delay    time.Duration
	openErr  error
	script   []fakeReply
	sessions int
	fed      int
}

type fakeReply struct {
	text  string
	delay time.Duration
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *FakeTranscriber) GetLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

// SetText changes the transcript returned by sessions created afterwards.
func (f *FakeTranscriber) SetText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

// SetDelay makes Close wait d (or until the session context is done)
// before returning.
func (f *FakeTranscriber) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// Queue scripts the next session: it returns text after delay. Queued
// replies are used in order before the fixed transcript.
func (f *FakeTranscriber) Queue(text string, delay time.Duration) {
	f.mu.Lock()
	f.script = append(f.script, fakeReply{text: text, delay: delay})
	f.mu.Unlock()
}

// SetSessionErr makes NewSession fail with err.
func (f *FakeTranscriber) SetSessionErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

// Sessions reports how many sessions were opened.
func (f *FakeTranscriber) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// FedBytes reports the total PCM fed across all sessions.
func (f *FakeTranscriber) FedBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

func (f *FakeTranscriber) NewSession(ctx context.Context, _ SessionConfig) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.sessions++
	reply := fakeReply{text: f.text, delay: f.delay}
	if len(f.script) > 0 {
		reply, f.script = f.script[0], f.script[1:]
	}
	updates := make(chan string)
	close(updates)
	return &fakeSession{
		parent:  f,
		ctx:     ctx,
		text:    reply.text,
		err:     f.err,
		delay:   reply.delay,
		updates: updates,
	}, nil
}

type fakeSession struct {
	parent  *FakeTranscriber
	ctx     context.Context
	text    string
	err     error
	delay   time.Duration
	updates chan string
}

func (s *fakeSession) Feed(pcm []byte) {
	s.parent.mu.Lock()
	s.parent.fed += len(pcm)
	s.parent.mu.Unlock()
}

func (s *fakeSession) Updates() <-chan string { return s.updates }

func (s *fakeSession) Close() (SessionResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return SessionResult{}, s.ctx.Err()
		}
	}
	if s.err != nil {
		return SessionResult{}, fmt.Errorf("fake transcriber error: %w", s.err)
	}
	return SessionResult{
		Text:     s.text,
		HasText:  s.text != "",
		NoSpeech: s.text == "",
	}, nil
}
