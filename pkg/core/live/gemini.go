package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"
)

// DefaultGeminiLiveModel is the native-audio Live API model.
const DefaultGeminiLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// GeminiConfig configures the Gemini Live provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider opens Gemini Live API sessions. The Live API offers no
// automatic voice activity detection in this operating mode, so sessions
// are opened with detection disabled and turn boundaries are driven
// entirely by SignalStart/SignalEnd.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiProvider creates a provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("live: gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiLiveModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("live: create gemini client: %w", err)
	}

	return &GeminiProvider{cfg: cfg, client: client, logger: logger}, nil
}

// Open connects a new Live API session.
func (p *GeminiProvider) Open(ctx context.Context, cfg OpenConfig) (ProviderSession, error) {
	if cfg.Callbacks.OnResponse == nil {
		return nil, errors.New("live: OnResponse callback is required")
	}

	modality := genai.ModalityAudio
	if cfg.ResponseMode == ResponseModeText {
		modality = genai.ModalityText
	}

	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
		RealtimeInputConfig: &genai.RealtimeInputConfig{
			AutomaticActivityDetection: &genai.AutomaticActivityDetection{Disabled: true},
		},
		InputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if modality == genai.ModalityAudio {
		// Audio replies carry no text parts, so the assistant side of the
		// turn would otherwise be lost to the transcript store.
		connectCfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.SystemInstruction != "" {
		connectCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	conn, err := p.client.Live.Connect(ctx, p.cfg.Model, connectCfg)
	if err != nil {
		return nil, fmt.Errorf("live: connect gemini live: %w", err)
	}

	audio := cfg.InputAudio
	if audio.SampleRate == 0 {
		audio = DefaultInputAudioConfig()
	}

	s := &geminiSession{
		conn:      conn,
		callbacks: cfg.Callbacks,
		inputMIME: audio.MIMEType(),
		logger:    p.logger,
	}
	go s.receiveLoop()
	return s, nil
}

type geminiSession struct {
	conn      *genai.Session
	callbacks Callbacks
	inputMIME string
	logger    *slog.Logger
	closed    atomic.Bool
}

func (s *geminiSession) SendAudio(frame []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: frame, MIMEType: s.inputMIME},
	})
}

func (s *geminiSession) SignalStart() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
		ActivityStart: &genai.ActivityStart{},
	})
}

func (s *geminiSession) SignalEnd() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
		ActivityEnd: &genai.ActivityEnd{},
	})
}

func (s *geminiSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

// receiveLoop pumps Live API server messages into the session callbacks.
// It exits when the connection ends or Close is called.
func (s *geminiSession) receiveLoop() {
	var transcript strings.Builder

	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, io.EOF) {
				s.logger.Warn("gemini live: receive failed", "error", err)
				if s.callbacks.OnError != nil {
					s.callbacks.OnError(err)
				}
			}
			if s.callbacks.OnClosed != nil {
				s.callbacks.OnClosed()
			}
			return
		}
		if msg == nil || msg.ServerContent == nil {
			continue
		}
		s.applyServerContent(msg.ServerContent, &transcript)
	}
}

func (s *geminiSession) applyServerContent(sc *genai.LiveServerContent, transcript *strings.Builder) {
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		transcript.WriteString(sc.InputTranscription.Text)
		if s.callbacks.OnTranscript != nil {
			s.callbacks.OnTranscript(strings.TrimSpace(transcript.String()))
		}
	}

	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		s.callbacks.OnResponse(ResponseChunk{Text: sc.OutputTranscription.Text})
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				s.callbacks.OnResponse(ResponseChunk{
					Audio:    part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				})
			}
			if part.Text != "" {
				s.callbacks.OnResponse(ResponseChunk{Text: part.Text})
			}
		}
	}

	if sc.TurnComplete {
		transcript.Reset()
		s.callbacks.OnResponse(ResponseChunk{Done: true})
	}
}
