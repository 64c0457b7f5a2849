package live

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by session operations after Close.
var ErrSessionClosed = errors.New("live: provider session closed")

// ResponseMode selects how the provider returns its answer.
type ResponseMode string

const (
	// ResponseModeAudio streams synthesized speech directly from the
	// provider.
	ResponseModeAudio ResponseMode = "audio"

	// ResponseModeText streams text only; the caller converts it to speech
	// through a separate synthesis call.
	ResponseModeText ResponseMode = "text"
)

// ResponseChunk is one piece of provider output. Audio and Text are
// mutually exclusive; Done marks the end of the provider's turn and may
// arrive on an otherwise empty chunk.
type ResponseChunk struct {
	Audio    []byte
	MIMEType string
	Text     string
	Done     bool
}

// Callbacks are invoked asynchronously by a provider session as output
// arrives. All callbacks for one session are invoked from a single
// goroutine, in arrival order.
type Callbacks struct {
	// OnTranscript delivers the transcription of user speech accumulated so
	// far for the in-flight turn. May be called several times per turn with
	// progressively longer text; the last call before OnResponse Done is
	// the finalized utterance.
	OnTranscript func(text string)

	// OnResponse delivers provider output.
	OnResponse func(chunk ResponseChunk)

	// OnError reports a session-level failure. The session is unusable
	// afterwards.
	OnError func(err error)

	// OnClosed fires once when the underlying connection ends.
	OnClosed func()
}

// OpenConfig configures a new provider session.
type OpenConfig struct {
	// SystemInstruction is the persona prompt for this conversation.
	SystemInstruction string

	// ResponseMode selects audio or text output.
	ResponseMode ResponseMode

	// InputAudio describes the PCM the caller will send.
	InputAudio AudioConfig

	// Callbacks receive asynchronous session output. OnResponse must be
	// set; the rest are optional.
	Callbacks Callbacks
}

// Provider opens streaming conversation sessions.
type Provider interface {
	Open(ctx context.Context, cfg OpenConfig) (ProviderSession, error)
}

// ProviderSession is one bidirectional streaming conversation. It doubles
// as the ActivitySink for the connection's ActivityDetector.
//
// The caller owns the session exclusively and must close any prior session
// before opening a new one for the same connection. Close is idempotent.
type ProviderSession interface {
	ActivitySink

	Close() error
}
