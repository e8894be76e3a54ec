// Package doctor runs interactive checks of the config, the audio devices
// and the transcription provider.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"slowdown/audio"
	"slowdown/chunker"
	"slowdown/config"
	"slowdown/encoder"
	"slowdown/shutdown"
	"slowdown/transcriber"
)

const recordFor = 5 * time.Second

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(configPath string) int {
	setupInterruptHandler()

	fmt.Println("slowdown doctor - system diagnostics")
	fmt.Println("====================================")

	settings, ok := checkConfig(os.Stdout, configPath)
	if !ok {
		return finish(false)
	}

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("\n[2/4] Audio devices\n  FAIL: cannot connect to audio: %v\n", err)
		return finish(false)
	}
	defer actx.Close()

	device, ok := checkDevices(os.Stdout, audio.NewRegistry(actx), settings)
	if !ok {
		return finish(false)
	}

	fmt.Println()
	fmt.Println("[3/4] Microphone level")
	fmt.Printf("Press Enter and speak for %d seconds...", int(recordFor.Seconds()))
	bufio.NewReader(os.Stdin).ReadString('\n')

	stop := make(chan struct{})
	time.AfterFunc(recordFor, func() { close(stop) })
	pcm, peak, err := recordAudio(actx, device, stop)
	if !checkLevel(os.Stdout, pcm, peak, err) {
		return finish(false)
	}

	return finish(checkTranscription(os.Stdout, settings, pcm))
}

func finish(allPass bool) int {
	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(w io.Writer, path string) (*config.Settings, bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[1/4] Config")
	fmt.Fprintf(w, "  file: %s\n", path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "  (not present, using defaults; run `slowdown config` to create it)")
	}
	settings, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return nil, false
	}
	fmt.Fprintf(w, "  threshold %d wpm, window %ds, chunk %v, sound %v\n",
		settings.WPMThreshold(), settings.WindowSeconds(), settings.ChunkDuration(), settings.AlertSoundEnabled())
	fmt.Fprintf(w, "  history: %s (%s)\n", settings.HistoryPath(), settings.HistoryBackend())
	fmt.Fprintln(w, "  PASS: config readable")
	return settings, true
}

// checkDevices reports the inputs and system source and returns the
// microphone the monitor would use.
func checkDevices(w io.Writer, reg *audio.Registry, settings *config.Settings) (*audio.DeviceInfo, bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[2/4] Audio devices")

	inputs, err := reg.ListInputDevices()
	if err != nil {
		fmt.Fprintf(w, "  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(inputs) == 0 {
		fmt.Fprintln(w, "  FAIL: no capture devices found")
		return nil, false
	}
	for _, d := range inputs {
		fmt.Fprintf(w, "  mic: %s\n", d.Name)
	}

	if sys, err := reg.SystemSource(); err == nil {
		fmt.Fprintf(w, "  system audio: %s\n", sys.Name)
	} else {
		fmt.Fprintf(w, "  system audio: unavailable (%v)\n", err)
	}

	var device *audio.DeviceInfo
	if name := settings.Device(); name != "" {
		d, ok := reg.FindInput(name)
		if !ok {
			fmt.Fprintf(w, "  FAIL: configured device %q not found\n", name)
			return nil, false
		}
		device = d
	} else if device, err = reg.DefaultInputDevice(); err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return nil, false
	}
	if audio.IsBluetooth(device.Name) {
		fmt.Fprintf(w, "  Warning: %s looks like a Bluetooth headset; transcription quality may suffer\n", device.Name)
	}
	fmt.Fprintf(w, "  PASS: using %s\n", device.Name)
	return device, true
}

func checkLevel(w io.Writer, pcm []byte, peak float64, err error) bool {
	if err != nil {
		fmt.Fprintf(w, "  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Fprintln(w, "  FAIL: no audio captured")
		return false
	}
	fmt.Fprintf(w, "  Recorded %.1fs, peak level %.2f\n", encoder.Duration(len(pcm)).Seconds(), peak)
	if peak <= 0.01 {
		fmt.Fprintln(w, "  FAIL: input is silent, check that the microphone is not muted")
		return false
	}
	fmt.Fprintln(w, "  PASS: signal detected")
	return true
}

func checkTranscription(w io.Writer, settings *config.Settings, pcm []byte) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[4/4] Transcription")

	tr, err := transcriber.New(settings.Provider())
	if err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "  provider: %s, transcribing...\n", tr.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := tr.NewSession(ctx, transcriber.SessionConfig{
		Format:   transcriber.FormatFLAC,
		Language: settings.Language(),
	})
	if err != nil {
		fmt.Fprintf(w, "  FAIL: session error: %v\n", err)
		return false
	}
	sess.Feed(pcm)
	result, err := sess.Close()
	if err != nil {
		fmt.Fprintf(w, "  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		fmt.Fprintln(w, "  FAIL: no speech detected")
		return false
	}
	words := chunker.CountWords(text)
	secs := encoder.Duration(len(pcm)).Seconds()
	fmt.Fprintf(w, "\n  Transcribed text: %s\n", text)
	fmt.Fprintf(w, "  %d words in %.0fs (about %d wpm)\n", words, secs, int(float64(words)/secs*60))
	fmt.Fprintln(w, "  PASS: transcription works")
	return true
}

func recordAudio(actx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, float64, error) {
	var pcmBuf []byte
	var peak float64
	var bufMu sync.Mutex
	var stopped bool
	var meter audio.LevelMeter
	done := make(chan struct{})

	captureDevice, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, 0, err
	}

	captureDevice.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if stopped {
			return
		}
		pcmBuf = append(pcmBuf, data...)
		meter.Process(data)
		peak = max(peak, meter.Level())
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, 0, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.ClearCallback()
	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, peak, nil
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}
