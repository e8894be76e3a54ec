package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultWPMThreshold  = 160
	MinWPMThreshold      = 100
	MaxWPMThreshold      = 250
	DefaultWindowSeconds = 60
	DefaultChunkSeconds  = 10
	DefaultLanguage      = "en"

	SourceMicrophone  = "microphone"
	SourceSystemAudio = "systemAudio"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Settings is the live view of the config file with per-run overrides laid
// on top. Accessors read the current snapshot so a reload is seen by the
// next caller.
type Settings struct {
	path string

	mu        sync.RWMutex
	file      FileConfig
	overrides FileConfig
}

// Load reads path into a new Settings. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	fc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &Settings{path: path, file: fc}, nil
}

// New returns Settings backed by fc with no file behind it.
func New(fc FileConfig) *Settings {
	return &Settings{file: fc}
}

func (s *Settings) Path() string { return s.path }

// Override layers non-nil fields of o over the file values for this run.
// Later calls replace earlier ones field by field.
func (s *Settings) Override(o FileConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merge(&s.overrides, o)
}

// Reload re-reads the backing file. Overrides are kept.
func (s *Settings) Reload() error {
	if s.path == "" {
		return nil
	}
	fc, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.file = fc
	s.mu.Unlock()
	return nil
}

// Save writes the file values (not the overrides) back to disk.
func (s *Settings) Save() error {
	if s.path == "" {
		return fmt.Errorf("settings have no backing file")
	}
	s.mu.RLock()
	fc := s.file
	s.mu.RUnlock()
	return SaveFile(s.path, fc)
}

// File returns a copy of the values read from disk.
func (s *Settings) File() FileConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

func (s *Settings) SetDevice(name string) {
	s.mu.Lock()
	s.file.Audio.Device = &name
	s.mu.Unlock()
}

func (s *Settings) SetAudioSource(source string) {
	s.mu.Lock()
	s.file.Audio.Source = &source
	s.mu.Unlock()
}

func (s *Settings) SetWPMThreshold(v int) {
	s.mu.Lock()
	s.file.Monitor.WPMThreshold = &v
	s.mu.Unlock()
}

func (s *Settings) SetAlertSound(on bool) {
	s.mu.Lock()
	s.file.Monitor.AlertSound = &on
	s.mu.Unlock()
}

// WPMThreshold is clamped to [MinWPMThreshold, MaxWPMThreshold].
func (s *Settings) WPMThreshold() int {
	v := pick(DefaultWPMThreshold, get(s, func(f *FileConfig) *int { return f.Monitor.WPMThreshold })...)
	return min(max(v, MinWPMThreshold), MaxWPMThreshold)
}

func (s *Settings) WindowSeconds() int {
	v := pick(DefaultWindowSeconds, get(s, func(f *FileConfig) *int { return f.Monitor.WindowSeconds })...)
	if v <= 0 {
		return DefaultWindowSeconds
	}
	return v
}

func (s *Settings) AlertSoundEnabled() bool {
	return pick(true, get(s, func(f *FileConfig) *bool { return f.Monitor.AlertSound })...)
}

func (s *Settings) ChunkDuration() time.Duration {
	v := pick(DefaultChunkSeconds, get(s, func(f *FileConfig) *int { return f.Monitor.ChunkSeconds })...)
	if v <= 0 {
		v = DefaultChunkSeconds
	}
	return time.Duration(v) * time.Second
}

// AudioSource returns SourceMicrophone unless systemAudio is configured.
func (s *Settings) AudioSource() string {
	v := pick(SourceMicrophone, get(s, func(f *FileConfig) *string { return f.Audio.Source })...)
	if v == SourceSystemAudio {
		return v
	}
	return SourceMicrophone
}

func (s *Settings) Device() string {
	return pick("", get(s, func(f *FileConfig) *string { return f.Audio.Device })...)
}

func (s *Settings) Provider() string {
	return pick("", get(s, func(f *FileConfig) *string { return f.Transcription.Provider })...)
}

func (s *Settings) Language() string {
	v := pick(DefaultLanguage, get(s, func(f *FileConfig) *string { return f.Transcription.Language })...)
	if v == "" {
		return DefaultLanguage
	}
	return v
}

func (s *Settings) SaveChunks() bool {
	return pick(false, get(s, func(f *FileConfig) *bool { return f.Transcription.SaveChunks })...)
}

func (s *Settings) HistoryBackend() string {
	if pick(BackendJSON, get(s, func(f *FileConfig) *string { return f.History.Backend })...) == BackendSQLite {
		return BackendSQLite
	}
	return BackendJSON
}

// HistoryPath defaults to the backend's file in the data dir.
func (s *Settings) HistoryPath() string {
	if v := pick("", get(s, func(f *FileConfig) *string { return f.History.Path })...); v != "" {
		return v
	}
	return DefaultHistoryPath(s.HistoryBackend())
}

// get returns the field from overrides then file, in priority order.
func get[T any](s *Settings, field func(*FileConfig) *T) []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []*T{field(&s.overrides), field(&s.file)}
}

func pick[T any](def T, vals ...*T) T {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return def
}

func merge(dst *FileConfig, src FileConfig) {
	set(&dst.Monitor.WPMThreshold, src.Monitor.WPMThreshold)
	set(&dst.Monitor.WindowSeconds, src.Monitor.WindowSeconds)
	set(&dst.Monitor.AlertSound, src.Monitor.AlertSound)
	set(&dst.Monitor.ChunkSeconds, src.Monitor.ChunkSeconds)
	set(&dst.Audio.Source, src.Audio.Source)
	set(&dst.Audio.Device, src.Audio.Device)
	set(&dst.Transcription.Provider, src.Transcription.Provider)
	set(&dst.Transcription.Language, src.Transcription.Language)
	set(&dst.Transcription.SaveChunks, src.Transcription.SaveChunks)
	set(&dst.History.Backend, src.History.Backend)
	set(&dst.History.Path, src.History.Path)
}

func set[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
