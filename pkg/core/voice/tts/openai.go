package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "tts-1"
	openAIDefaultVoice   = "alloy"
)

// OpenAIProvider synthesizes speech with the OpenAI speech endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAI creates a provider with a default HTTP client.
func NewOpenAI(apiKey string) *OpenAIProvider {
	return NewOpenAIWithClient(apiKey, nil)
}

// NewOpenAIWithClient creates a provider using the supplied HTTP client.
// A nil client falls back to a default with a 30 second timeout.
func NewOpenAIWithClient(apiKey string, client *http.Client) *OpenAIProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenAIProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      openAIDefaultModel,
		httpClient: client,
		baseURL:    openAIDefaultBaseURL,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (p *OpenAIProvider) WithBaseURL(base string) *OpenAIProvider {
	if p == nil {
		return p
	}
	base = strings.TrimSpace(base)
	if base != "" {
		p.baseURL = strings.TrimSuffix(base, "/")
	}
	return p
}

// WithModel overrides the speech model.
func (p *OpenAIProvider) WithModel(model string) *OpenAIProvider {
	if p == nil {
		return p
	}
	model = strings.TrimSpace(model)
	if model != "" {
		p.model = model
	}
	return p
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("tts: openai api key is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("tts: text is required")
	}

	voice := opts.Voice
	if voice == "" {
		voice = openAIDefaultVoice
	}
	format := getFormat(opts.Format)

	body, err := json.Marshal(openAISpeechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          opts.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts: speech request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	return &Synthesis{Audio: audio, MIMEType: formatMIMEType(format)}, nil
}

// getFormat normalizes the output format, defaulting to wav.
func getFormat(format string) string {
	switch format {
	case "wav", "mp3", "pcm":
		return format
	default:
		return "wav"
	}
}

func formatMIMEType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "pcm":
		return "audio/pcm;rate=24000"
	default:
		return "audio/wav"
	}
}
