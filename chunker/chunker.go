// Package chunker cuts a live PCM stream into fixed-length segments, sends
// each one for transcription and reports the word count of every result.
package chunker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"slowdown/encoder"
	"slowdown/log"
	"slowdown/transcriber"
)

const (
	DefaultChunkDuration = 10 * time.Second

	observationBufCap = 64
)

type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Observation is the word count of one transcribed segment.
type Observation struct {
	WordCount uint
	Duration  float64 // seconds, always the nominal chunk length
	Timestamp time.Time
	Gen       uint64 // Start generation that produced it
}

type Config struct {
	ChunkDuration time.Duration
	Session       transcriber.SessionConfig
	Dump          *SegmentDumper // optional
}

type Chunker struct {
	tr  transcriber.Transcriber
	cfg Config
	now func() time.Time
	out chan Observation

	mu       sync.Mutex
	state    State
	pending  [][]byte
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	stopTick chan struct{}
	tickDone chan struct{}
}

func New(tr transcriber.Transcriber, cfg Config) *Chunker {
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultChunkDuration
	}
	return &Chunker{
		tr:  tr,
		cfg: cfg,
		now: time.Now,
		out: make(chan Observation, observationBufCap),
	}
}

// Observations delivers one value per successful transcription, in arrival
// order. The channel is never closed.
func (c *Chunker) Observations() <-chan Observation {
	return c.out
}

func (c *Chunker) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation identifies the current (or last) run. It advances on every
// Start; Observation.Gen carries the value of the run that produced it.
func (c *Chunker) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Chunker) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		return
	}
	c.state = StateRecording
	c.pending = nil
	c.gen++
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.stopTick = make(chan struct{})
	c.tickDone = make(chan struct{})
	go c.tickLoop(c.cfg.ChunkDuration, c.stopTick, c.tickDone)
}

func (c *Chunker) tickLoop(d time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

// Feed queues a copy of one capture block. Blocks arriving while idle are
// dropped.
func (c *Chunker) Feed(block []byte) {
	if len(block) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return
	}
	c.pending = append(c.pending, bytes.Clone(block))
}

// Stop discards buffered audio and abandons in-flight transcriptions. It
// returns once the ticker goroutine has exited.
func (c *Chunker) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.pending = nil
	c.cancel()
	stop, done := c.stopTick, c.tickDone
	close(stop)
	c.mu.Unlock()

	<-done
}

func (c *Chunker) flush() {
	c.mu.Lock()
	if c.state != StateRecording || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	segment := bytes.Join(c.pending, nil)
	c.pending = nil
	gen, ctx := c.gen, c.ctx
	c.mu.Unlock()

	if c.cfg.Dump != nil {
		if _, err := c.cfg.Dump.Write(segment); err != nil {
			log.Warnf("segment dump failed: %v", err)
		}
	}
	log.ChunkSubmitted(len(segment), encoder.Duration(len(segment)).Seconds())
	go c.transcribe(ctx, gen, segment)
}

func (c *Chunker) transcribe(ctx context.Context, gen uint64, segment []byte) {
	sess, err := c.tr.NewSession(ctx, c.cfg.Session)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Errorf("transcription session: %v", err)
		return
	}
	sess.Feed(segment)
	res, err := sess.Close()
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		log.Warnf("transcription failed, segment dropped: %v", err)
		return
	}

	var words uint
	if !res.NoSpeech {
		words = uint(CountWords(res.Text))
		log.TranscriptionText(res.Text)
	}
	if res.Batch != nil {
		b := res.Batch
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS:     b.AudioLengthS,
			RawSizeKB:        b.RawSizeKB,
			CompressedSizeKB: b.CompressedSizeKB,
			CompressionPct:   b.CompressionPct,
			EncodeTimeMs:     b.EncodeTimeMs,
			DNSTimeMs:        b.DNSTimeMs,
			TLSTimeMs:        b.TLSTimeMs,
			TTFBMs:           b.TTFBMs,
			TotalTimeMs:      b.TotalTimeMs,
			Confidence:       b.Confidence,
			NoSpeechProb:     b.NoSpeechProb,
		}, c.tr.Name(), int(words), b.ConnReused, b.TLSProtocol)
	}

	c.deliver(gen, Observation{
		WordCount: words,
		Duration:  c.cfg.ChunkDuration.Seconds(),
		Timestamp: c.now(),
	})
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// deliver drops results from a stopped or superseded run.
func (c *Chunker) deliver(gen uint64, obs Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording || gen != c.gen {
		return
	}
	obs.Gen = gen
	select {
	case c.out <- obs:
	default:
		log.Warn("observation dropped: consumer not keeping up")
	}
}
