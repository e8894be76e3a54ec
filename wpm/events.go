package wpm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const subscriberBufCap = 16

// Update is published after every recomputation and on Reset.
type Update struct {
	WPM      int
	Status   Status
	Previous Status
	At       time.Time
	Reset    bool // published by Reset rather than an observation
}

// Entered reports whether this update moved the window into s.
func (u Update) Entered(s Status) bool {
	return u.Status == s && u.Previous != s
}

type subscribers struct {
	mu   sync.RWMutex
	subs map[string]chan Update
}

func (s *subscribers) init() {
	s.subs = make(map[string]chan Update)
}

// publish never blocks; a subscriber whose buffer is full misses the update.
func (s *subscribers) publish(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribe returns a channel receiving every subsequent Update and an ID
// for Unsubscribe.
func (w *Window) Subscribe() (string, <-chan Update) {
	id := uuid.New().String()
	ch := make(chan Update, subscriberBufCap)
	w.subs.mu.Lock()
	w.subs.subs[id] = ch
	w.subs.mu.Unlock()
	return id, ch
}

func (w *Window) Unsubscribe(id string) {
	w.subs.mu.Lock()
	defer w.subs.mu.Unlock()
	if ch, ok := w.subs.subs[id]; ok {
		close(ch)
		delete(w.subs.subs, id)
	}
}
