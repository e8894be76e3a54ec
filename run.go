package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"slowdown/alert"
	"slowdown/audio"
	"slowdown/beep"
	"slowdown/chunker"
	"slowdown/config"
	"slowdown/log"
	"slowdown/session"
	"slowdown/shutdown"
	"slowdown/transcriber"
	"slowdown/wpm"
)

// pipeline is everything between a capture device and the session history.
type pipeline struct {
	settings *config.Settings
	tr       transcriber.Transcriber
	window   *wpm.Window
	chunker  *chunker.Chunker
	recorder *session.Recorder
	close    func()
}

// openStore picks the history backend from settings.
func openStore(settings *config.Settings) (session.Store, func(), error) {
	path := settings.HistoryPath()
	if settings.HistoryBackend() == config.BackendSQLite {
		st, err := session.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history db: %w", err)
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.Warnf("closing history db: %v", err)
			}
		}, nil
	}
	return session.NewJSONStore(path), func() {}, nil
}

// openRecorder loads the history. A corrupt history is reported and the
// recorder starts empty.
func openRecorder(ctx context.Context, settings *config.Settings) (*session.Recorder, func(), error) {
	store, closeStore, err := openStore(settings)
	if err != nil {
		return nil, nil, err
	}
	rec := session.NewRecorder(store)
	if err := rec.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read session history: %v\n", err)
	}
	return rec, closeStore, nil
}

// newPipeline wires the core components. With persist unset the session
// history lives in memory only.
func newPipeline(ctx context.Context, settings *config.Settings, tr transcriber.Transcriber, persist bool) (*pipeline, error) {
	tr.SetLanguage(settings.Language())

	rec, closeStore := session.NewRecorder(nil), func() {}
	if persist {
		var err error
		rec, closeStore, err = openRecorder(ctx, settings)
		if err != nil {
			return nil, err
		}
	}

	var dump *chunker.SegmentDumper
	if settings.SaveChunks() {
		var err error
		dump, err = chunker.NewSegmentDumper(config.DefaultChunkDir())
		if err != nil {
			log.Warnf("segment dump disabled: %v", err)
			dump = nil
		}
	}

	ch := chunker.New(tr, chunker.Config{
		ChunkDuration: settings.ChunkDuration(),
		Session: transcriber.SessionConfig{
			Format:   transcriber.FormatFLAC,
			Language: settings.Language(),
		},
		Dump: dump,
	})

	return &pipeline{
		settings: settings,
		tr:       tr,
		window:   wpm.New(settings),
		chunker:  ch,
		recorder: rec,
		close:    closeStore,
	}, nil
}

func runMonitorCmd(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	tr, err := transcriber.New(settings.Provider())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := newPipeline(ctx, settings, tr, true)
	if err != nil {
		return err
	}
	defer p.close()

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer audioCtx.Close()
	beep.Init()

	mon := NewMonitor(audioCtx, p.window, p.chunker, p.recorder)
	defer mon.Close()

	if name := settings.Device(); name != "" {
		if dev, ok := mon.Registry().FindInput(name); ok {
			if err := mon.SwitchDevice(*dev); err != nil {
				log.Warnf("device %q: %v", name, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", name)
			log.Warnf("device %q not found", name)
		}
	}

	if err := settings.Watch(ctx, nil); err != nil {
		log.Warnf("config watch disabled: %v", err)
	}

	out := newReporter(os.Stdout, mon.Meter(), settings)
	alerter := alert.New(beep.Player{}, settings, alert.WithNotify(out.Alert))
	alertID, alerts := p.window.Subscribe()
	defer p.window.Unsubscribe(alertID)
	go alerter.Run(ctx, alerts)
	go out.Run(ctx, p.window)
	go watchInput(ctx, mon.Meter(), mon.Running, func(ev InputEvent) {
		out.Input(ev, mon.DeviceName())
		if ev == InputQuiet {
			beep.PlayError()
		}
	})

	evID, events := p.recorder.Subscribe()
	defer p.recorder.Unsubscribe(evID)

	source, err := session.ParseAudioSource(settings.AudioSource())
	if err != nil {
		return err
	}
	if err := mon.Start(source); err != nil {
		if errors.Is(err, audio.ErrNoMonitorSource) {
			return fmt.Errorf("%w (system audio capture needs a pulse monitor source or WASAPI loopback)", err)
		}
		return err
	}
	out.Started(source, mon.DeviceName(), tr.Name())

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	defer signal.Stop(sig)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	mon.Stop()
	out.Ended(drainEnded(events))
	return nil
}

// drainEnded returns the last finished session among the queued events.
func drainEnded(events <-chan session.Event) *session.Event {
	var last *session.Event
	for {
		select {
		case ev := <-events:
			if ev.Kind == session.EventEnded || ev.Kind == session.EventDiscarded {
				last = &ev
			}
		default:
			return last
		}
	}
}
