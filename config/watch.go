package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"slowdown/log"
)

const debounceInterval = 250 * time.Millisecond

// Watch reloads the settings whenever the config file changes and calls
// onChange (may be nil) after each successful reload. The parent directory
// is watched so editors that replace the file by rename are seen. Watching
// stops when ctx is done.
func (s *Settings) Watch(ctx context.Context, onChange func()) error {
	if s.path == "" {
		return fmt.Errorf("settings have no backing file")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	go s.watchLoop(ctx, w, onChange)
	return nil
}

func (s *Settings) watchLoop(ctx context.Context, w *fsnotify.Watcher, onChange func()) {
	defer w.Close()
	name := filepath.Clean(s.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, func() {
				if ctx.Err() != nil {
					return
				}
				if err := s.Reload(); err != nil {
					log.Warnf("config reload failed: %v", err)
					return
				}
				log.Info("config reloaded")
				if onChange != nil {
					onChange()
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}
