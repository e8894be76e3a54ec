package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"slowdown/alert"
	"slowdown/audio"
	"slowdown/beep"
	"slowdown/session"
	"slowdown/shutdown"
	"slowdown/transcriber"
)

// replayGrace bounds the wait for the last transcription after the audio ends.
const replayGrace = 30 * time.Second

var (
	replayRecord bool
	replaySound  bool
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <wav-file>",
		Short: "Run a WAV recording through the monitor in real time",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	addMonitorFlags(cmd)
	cmd.Flags().BoolVar(&replayRecord, "record", false, "save the replayed session to history")
	cmd.Flags().BoolVar(&replaySound, "sound", false, "play alert sounds during replay")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	if !replaySound {
		beep.Disable()
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	tr, err := transcriber.New(settings.Provider())
	if err != nil {
		return err
	}

	fakeCtx, err := audio.NewFakeContext(args[0], true)
	if err != nil {
		return fmt.Errorf("loading WAV: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := newPipeline(ctx, settings, tr, replayRecord)
	if err != nil {
		return err
	}
	defer p.close()
	beep.Init()

	mon := NewMonitor(fakeCtx, p.window, p.chunker, p.recorder)
	defer mon.Close()

	out := newReporter(cmd.OutOrStdout(), mon.Meter(), settings)
	alerter := alert.New(beep.Player{}, settings, alert.WithNotify(out.Alert))
	alertID, alerts := p.window.Subscribe()
	defer p.window.Unsubscribe(alertID)
	go alerter.Run(ctx, alerts)

	updID, updates := p.window.Subscribe()
	defer p.window.Unsubscribe(updID)

	evID, events := p.recorder.Subscribe()
	defer p.recorder.Unsubscribe(evID)

	if err := mon.Start(session.SourceMicrophone); err != nil {
		return err
	}
	out.Started(session.SourceMicrophone, args[0], tr.Name())

	segments := expectedSegments(fakeCtx.Duration(), settings.ChunkDuration())
	deadline := time.NewTimer(fakeCtx.Duration() + settings.ChunkDuration() + replayGrace)
	defer deadline.Stop()

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	defer signal.Stop(sig)

	seen := 0
	for seen < segments {
		select {
		case u := <-updates:
			if u.Reset {
				continue
			}
			out.Update(u)
			seen++
		case <-deadline.C:
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: got %d of %d segments before timing out\n", seen, segments)
			seen = segments
		case <-sig:
			seen = segments
		}
	}

	mon.Stop()
	out.Ended(drainEnded(events))
	fmt.Fprintf(cmd.OutOrStdout(), "Alerts: %d\n", alerter.Fired())
	return nil
}

// expectedSegments is the number of chunk ticks needed to cover d.
func expectedSegments(d, chunk time.Duration) int {
	if chunk <= 0 || d <= 0 {
		return 0
	}
	return int((d + chunk - 1) / chunk)
}
