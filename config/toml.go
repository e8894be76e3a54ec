// Package config loads, layers and persists the monitor settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Nil fields fall back
// to defaults.
type FileConfig struct {
	Monitor       MonitorConfig       `toml:"monitor"`
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	History       HistoryConfig       `toml:"history"`
}

type MonitorConfig struct {
	WPMThreshold  *int  `toml:"wpm-threshold,omitempty"`
	WindowSeconds *int  `toml:"window-seconds,omitempty"`
	AlertSound    *bool `toml:"alert-sound,omitempty"`
	ChunkSeconds  *int  `toml:"chunk-seconds,omitempty"`
}

type AudioConfig struct {
	Source *string `toml:"source,omitempty"`
	Device *string `toml:"device,omitempty"`
}

type TranscriptionConfig struct {
	Provider   *string `toml:"provider,omitempty"`
	Language   *string `toml:"lang,omitempty"`
	SaveChunks *bool   `toml:"save-chunks,omitempty"`
}

type HistoryConfig struct {
	Backend *string `toml:"backend,omitempty"`
	Path    *string `toml:"path,omitempty"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// SaveFile encodes cfg and replaces path atomically.
func SaveFile(path string, cfg FileConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

const defaultFile = `# slowdown configuration

[monitor]
# Alert when the rolling rate exceeds this many words per minute (100-250).
wpm-threshold = 160
# Length of the rolling window, in seconds.
window-seconds = 60
# Play a sound when speaking too fast.
alert-sound = true
# Length of each transcribed audio segment, in seconds.
chunk-seconds = 10

[audio]
# "microphone" or "systemAudio".
source = "microphone"
# Capture device name; empty uses the system default.
# device = ""

[transcription]
# groq, openai or deepgram; empty picks the first with an API key set.
# provider = ""
lang = "en"
# Keep every transcribed segment as a WAV file in the data directory.
save-chunks = false

[history]
# "json" or "sqlite".
backend = "json"
# path = ""
`

// WriteDefault creates a commented config at path. It reports false when a
// file already exists.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := writeAtomic(path, []byte(defaultFile)); err != nil {
		return false, err
	}
	return true, nil
}
