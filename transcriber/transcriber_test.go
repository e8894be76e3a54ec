package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slowdown/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func testPCM(frames int) []byte {
	pcm := make([]byte, frames*2)
	for i := range frames {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%1000))
	}
	return pcm
}

func TestBatchSessionFeedAndClose(t *testing.T) {
	var gotFormat string
	var gotSize int
	fakeFn := func(_ context.Context, audio []byte, format string) (*Result, error) {
		gotFormat, gotSize = format, len(audio)
		return &Result{
			Text:    "  hello world ",
			Metrics: &NetworkMetrics{TTFB: 10 * time.Millisecond},
		}, nil
	}

	bs, err := newBatchSession(context.Background(), SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}

	pcm := testPCM(encoder.BlockSize + encoder.BlockSize/2)
	bs.Feed(pcm[:len(pcm)/2])
	bs.Feed(pcm[len(pcm)/2:])

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("Text = %q, want %q", result.Text, "hello world")
	}
	if !result.HasText || result.NoSpeech {
		t.Errorf("HasText=%v NoSpeech=%v", result.HasText, result.NoSpeech)
	}
	if gotFormat != FormatFLAC || gotSize == 0 {
		t.Errorf("upload format=%q size=%d", gotFormat, gotSize)
	}
	if result.Batch == nil || result.Batch.AudioLengthS <= 0 {
		t.Fatalf("Batch = %+v", result.Batch)
	}
	if _, ok := <-bs.Updates(); ok {
		t.Error("Updates should be closed for batch sessions")
	}
}

func TestBatchSessionEmptyTextIsNoSpeech(t *testing.T) {
	fakeFn := func(context.Context, []byte, string) (*Result, error) {
		return &Result{Text: " "}, nil
	}
	bs, err := newBatchSession(context.Background(), SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatal(err)
	}
	bs.Feed(testPCM(100))
	result, err := bs.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !result.NoSpeech || result.HasText {
		t.Errorf("result = %+v, want no speech", result)
	}
}

func TestBatchSessionNoSpeechProbability(t *testing.T) {
	for _, tt := range []struct {
		prob float64
		want bool
	}{
		{0, false},
		{0.4, false},
		{NoSpeechCutoff, false},
		{0.9, true},
	} {
		fakeFn := func(context.Context, []byte, string) (*Result, error) {
			return &Result{Text: "Thank you.", NoSpeechProb: tt.prob, Confidence: 0.7}, nil
		}
		bs, err := newBatchSession(context.Background(), SessionConfig{}, fakeFn)
		if err != nil {
			t.Fatal(err)
		}
		bs.Feed(testPCM(100))
		result, err := bs.Close()
		if err != nil {
			t.Fatal(err)
		}
		if result.NoSpeech != tt.want {
			t.Errorf("prob %v: NoSpeech = %v, want %v", tt.prob, result.NoSpeech, tt.want)
		}
		if result.Batch.NoSpeechProb != tt.prob || result.Batch.Confidence != 0.7 {
			t.Errorf("prob %v: Batch = %+v", tt.prob, result.Batch)
		}
	}
}

func TestBatchSessionCanceledContext(t *testing.T) {
	called := false
	fakeFn := func(context.Context, []byte, string) (*Result, error) {
		called = true
		return &Result{Text: "x"}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	bs, err := newBatchSession(ctx, SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatal(err)
	}
	bs.Feed(testPCM(100))
	cancel()
	if _, err := bs.Close(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Close err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("transcribe should not run after cancel")
	}
}

func TestBatchSessionUnknownFormat(t *testing.T) {
	if _, err := newBatchSession(context.Background(), SessionConfig{Format: "ogg"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestGroqTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("language") != "en" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("x-ratelimit-remaining-requests", "9")
		w.Header().Set("x-ratelimit-limit-requests", "10")
		w.Write([]byte(`{"text":"one two three","duration":1.5,"segments":[{"no_speech_prob":0.2},{"no_speech_prob":0.4}]}`))
	}))
	defer srv.Close()

	g := NewGroq("k")
	g.apiURL = srv.URL
	g.client = NewTracedClient(srv.URL)
	g.SetLanguage("en")

	res, err := g.transcribe(context.Background(), []byte("fLaC"), FormatFLAC)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "one two three" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.RateLimit != "9/10" {
		t.Errorf("RateLimit = %q", res.RateLimit)
	}
	if res.NoSpeechProb != 0.4 {
		t.Errorf("NoSpeechProb = %v, want 0.4", res.NoSpeechProb)
	}
}

func TestGroqTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGroq("k")
	g.apiURL = srv.URL
	g.client = NewTracedClient(srv.URL)
	if _, err := g.transcribe(context.Background(), nil, FormatFLAC); err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestDeepgramTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") != "de" || r.Header.Get("Content-Type") != "audio/flac" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"metadata":{"duration":2},"results":{"channels":[{"alternatives":[{"transcript":"hallo welt","confidence":0.9}]}]}}`))
	}))
	defer srv.Close()

	d := NewDeepgram("k")
	d.apiURL = srv.URL
	d.client = NewTracedClient(srv.URL)
	d.SetLanguage("de")

	res, err := d.transcribe(context.Background(), []byte("fLaC"), FormatFLAC)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hallo welt" || res.Confidence != 0.9 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	for _, tt := range []struct {
		name     string
		provider string
		env      map[string]string
		want     string
		wantErr  error
	}{
		{"first configured", "", map[string]string{"OPENAI_API_KEY": "x"}, "openai", nil},
		{"groq preferred", "", map[string]string{"GROQ_API_KEY": "x", "DEEPGRAM_API_KEY": "y"}, "groq", nil},
		{"explicit", "deepgram", map[string]string{"GROQ_API_KEY": "x", "DEEPGRAM_API_KEY": "y"}, "deepgram", nil},
		{"fake", "fake", nil, "fake", nil},
		{"none", "", nil, "", ErrNoProvider},
		{"explicit missing key", "openai", map[string]string{"GROQ_API_KEY": "x"}, "", ErrNoProvider},
	} {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range providerKeys {
				t.Setenv(p.env, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tr, err := New(tt.provider)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tr.Name() != tt.want {
				t.Errorf("Name = %q, want %q", tr.Name(), tt.want)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("whisper.cpp"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFakeSessionDelayHonorsCancel(t *testing.T) {
	f := NewFake("hi", nil)
	f.SetDelay(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := f.NewSession(ctx, SessionConfig{})
	cancel()
	if _, err := s.Close(); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
