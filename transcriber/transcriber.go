package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoProvider is returned by New when no API key is configured for any
// supported provider.
var ErrNoProvider = errors.New("no transcription provider configured")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	Duration     float64
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

var providerKeys = []struct {
	name string
	env  string
	make func(key string) Transcriber
}{
	{"groq", "GROQ_API_KEY", func(k string) Transcriber { return NewGroq(k) }},
	{"openai", "OPENAI_API_KEY", func(k string) Transcriber { return NewOpenAI(k) }},
	{"deepgram", "DEEPGRAM_API_KEY", func(k string) Transcriber { return NewDeepgram(k) }},
}

// New returns the named provider, or the first provider with an API key in
// the environment when name is empty. "fake" returns a FakeTranscriber that
// reports no speech.
func New(name string) (Transcriber, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "fake" {
		return NewFake("", nil), nil
	}
	for _, p := range providerKeys {
		if name != "" && name != p.name {
			continue
		}
		key := os.Getenv(p.env)
		if key == "" {
			if name != "" {
				return nil, fmt.Errorf("%s: set %s: %w", p.name, p.env, ErrNoProvider)
			}
			continue
		}
		return p.make(key), nil
	}
	if name != "" {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return nil, fmt.Errorf("set GROQ_API_KEY, OPENAI_API_KEY or DEEPGRAM_API_KEY: %w", ErrNoProvider)
}
