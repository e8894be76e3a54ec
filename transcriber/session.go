package transcriber

const FormatFLAC = "flac"

type SessionConfig struct {
	Format   string // only "flac" is supported; empty means flac
	Language string
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
	TLSProtocol      string
	Confidence       float64
	NoSpeechProb     float64
}

type SessionResult struct {
	Text      string
	HasText   bool
	NoSpeech  bool
	RateLimit string      // "remaining/limit" or empty
	Batch     *BatchStats // nil for the fake
}

// Session transcribes one segment. Feed may be called any number of times;
// Close uploads everything fed so far and returns the transcript.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan string
	Close() (SessionResult, error)
}
