// Package tts provides text-to-speech synthesis for the text response mode,
// where the model produces text and speech is rendered by a separate
// service.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice  string  // Voice identifier
	Speed  float64 // Speed multiplier (0.25-4.0, default 1.0)
	Format string  // Output format: "wav", "mp3", or "pcm"
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio    []byte // Audio data
	MIMEType string // MIME type of the audio data
}
