package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"slowdown/encoder"
)

// NoSpeechCutoff is the segment no-speech probability above which a
// transcript is treated as silence. Whisper invents short phrases on quiet
// audio and reports them with a high probability.
const NoSpeechCutoff = 0.6

type transcribeFunc func(ctx context.Context, audio []byte, format string) (*Result, error)

type batchSession struct {
	ctx        context.Context
	cfg        SessionConfig
	transcribe transcribeFunc
	updates    chan string

	mu  sync.Mutex
	pcm []byte
}

func newBatchSession(ctx context.Context, cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	if cfg.Format == "" {
		cfg.Format = FormatFLAC
	}
	if cfg.Format != FormatFLAC {
		return nil, fmt.Errorf("unknown format %q", cfg.Format)
	}
	updates := make(chan string)
	close(updates)
	return &batchSession{
		ctx:        ctx,
		cfg:        cfg,
		transcribe: transcribe,
		updates:    updates,
	}, nil
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.mu.Lock()
	bs.pcm = append(bs.pcm, pcm...)
	bs.mu.Unlock()
}

// Updates is closed immediately; batch sessions have no interim text.
func (bs *batchSession) Updates() <-chan string {
	return bs.updates
}

func (bs *batchSession) Close() (SessionResult, error) {
	bs.mu.Lock()
	pcm := bs.pcm
	bs.pcm = nil
	bs.mu.Unlock()

	if err := bs.ctx.Err(); err != nil {
		return SessionResult{}, err
	}

	enc, err := encoder.NewFlac()
	if err != nil {
		return SessionResult{}, err
	}
	start := time.Now()
	if err := encoder.Encode(enc, pcm); err != nil {
		return SessionResult{}, err
	}
	encodeTime := time.Since(start)

	result, err := bs.transcribe(bs.ctx, enc.Bytes(), bs.cfg.Format)
	if err != nil {
		return SessionResult{}, err
	}

	text := strings.TrimSpace(result.Text)
	rawSize := len(pcm)
	encodedSize := len(enc.Bytes())
	compressionPct := 0.0
	if rawSize > 0 {
		compressionPct = (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	}
	m := result.Metrics
	if m == nil {
		m = &NetworkMetrics{}
	}

	return SessionResult{
		Text:      text,
		HasText:   text != "",
		NoSpeech:  text == "" || result.NoSpeechProb > NoSpeechCutoff,
		RateLimit: result.RateLimit,
		Batch: &BatchStats{
			AudioLengthS:     encoder.Duration(rawSize).Seconds(),
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(encodeTime.Milliseconds()),
			DNSTimeMs:        float64(m.DNS.Milliseconds()),
			TLSTimeMs:        float64(m.TLS.Milliseconds()),
			TTFBMs:           float64(m.TTFB.Milliseconds()),
			TotalTimeMs:      float64(m.Sum().Milliseconds()),
			ConnReused:       m.ConnReused,
			TLSProtocol:      m.TLSProtocol,
			Confidence:       result.Confidence,
			NoSpeechProb:     result.NoSpeechProb,
		},
	}, nil
}
