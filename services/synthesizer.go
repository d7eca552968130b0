package services

import "context"

// SynthesisRequest is one text-to-speech call.
type SynthesisRequest struct {
	Text     string
	Language string
	Voice    string // provider voice id/name; empty selects the provider default
}

// Synthesizer turns text into MP3 bytes. Implementations classify failures
// with the ErrSynthesis* sentinels so callers can decide on retries.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
	Name() string
}

// SynthesizeFunc is the hook the audio cache calls on a miss.
type SynthesizeFunc func(ctx context.Context, text, language string) ([]byte, error)
