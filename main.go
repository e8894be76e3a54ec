package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"slowdown/config"
	"slowdown/log"
	"slowdown/session"
)

var version = "dev"

var (
	logPathFlag string
	configFlag  string

	monitorThreshold  int
	monitorWindow     int
	monitorSource     string
	monitorDevice     string
	monitorProvider   string
	monitorLang       string
	monitorNoSound    bool
	monitorChunk      time.Duration
	monitorSaveChunks bool
)

func main() {
	err := newRootCmd().Execute()
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "slowdown",
		Short:             "Live speaking-rate monitor",
		Long:              "slowdown listens to the microphone or system audio, transcribes it in short segments\nand warns when the rolling words-per-minute rate gets too high.",
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: setupLogging,
		RunE:              runMonitorCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logPathFlag, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&configFlag, "config", "", "config file (default: $XDG_CONFIG_HOME/slowdown/config.toml)")

	addMonitorFlags(rootCmd)

	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func addMonitorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&monitorThreshold, "threshold", config.DefaultWPMThreshold, "alert threshold in words per minute (100-250)")
	f.IntVar(&monitorWindow, "window", config.DefaultWindowSeconds, "rolling window length in seconds")
	f.StringVar(&monitorSource, "source", config.SourceMicrophone, "audio source: microphone or system")
	f.StringVar(&monitorDevice, "device", "", "use named microphone device")
	f.StringVar(&monitorProvider, "provider", "", "transcription provider: groq, openai, deepgram or fake")
	f.StringVar(&monitorLang, "lang", config.DefaultLanguage, "language code for transcription")
	f.BoolVar(&monitorNoSound, "no-sound", false, "do not play the alert sound")
	f.DurationVar(&monitorChunk, "chunk", config.DefaultChunkSeconds*time.Second, "length of each transcribed segment")
	f.BoolVar(&monitorSaveChunks, "save-chunks", false, "keep every transcribed segment as a WAV file")
}

// setupLogging resolves the log directory, installs the crash log and opens
// the diagnostics log. Failures only cost diagnostics.
func setupLogging(_ *cobra.Command, _ []string) error {
	logPath, err := log.ResolveDir(logPathFlag)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return nil
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	return nil
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.DefaultConfigPath()
}

// loadSettings reads the config file and lays the flags the user actually
// passed on top of it.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	o, err := flagOverrides(cmd)
	if err != nil {
		return nil, err
	}
	settings.Override(o)
	return settings, nil
}

func flagOverrides(cmd *cobra.Command) (config.FileConfig, error) {
	var o config.FileConfig
	f := cmd.Flags()
	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}

	if changed("threshold") {
		o.Monitor.WPMThreshold = &monitorThreshold
	}
	if changed("window") {
		if monitorWindow <= 0 {
			return o, fmt.Errorf("--window must be positive, got %d", monitorWindow)
		}
		o.Monitor.WindowSeconds = &monitorWindow
	}
	if changed("no-sound") {
		on := !monitorNoSound
		o.Monitor.AlertSound = &on
	}
	if changed("chunk") {
		secs := int(monitorChunk.Round(time.Second) / time.Second)
		if secs <= 0 {
			return o, fmt.Errorf("--chunk must be at least 1s, got %v", monitorChunk)
		}
		o.Monitor.ChunkSeconds = &secs
	}
	if changed("source") {
		src, err := session.ParseAudioSource(monitorSource)
		if err != nil {
			return o, err
		}
		s := string(src)
		o.Audio.Source = &s
	}
	if changed("device") {
		o.Audio.Device = &monitorDevice
	}
	if changed("provider") {
		o.Transcription.Provider = &monitorProvider
	}
	if changed("lang") {
		o.Transcription.Language = &monitorLang
	}
	if changed("save-chunks") {
		o.Transcription.SaveChunks = &monitorSaveChunks
	}
	return o, nil
}
