package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TriggerStrategy selects which quiz trigger a session uses. The two are
// mutually exclusive.
type TriggerStrategy string

const (
	TriggerStrategyRule  TriggerStrategy = "rule"
	TriggerStrategyAgent TriggerStrategy = "agent"
)

type Config struct {
	Addr string

	// Gemini
	GeminiAPIKey    string
	GeminiLiveModel string
	QuizModel       string

	// TTS, used in text response mode.
	OpenAIAPIKey string
	TTSVoice     string

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// Activity detection
	EnergyThreshold float64
	SilenceTimeout  time.Duration

	// Quiz triggering
	TriggerStrategy           TriggerStrategy
	QuizInterval              int
	HistoryLimit              int
	AgentMinConversationTurns int
	AgentMinGapTurns          int

	// WebSocket
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	WSPingInterval      time.Duration
	WSWriteTimeout      time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                      envOr("CUPID_ADDR", ":8080"),
		GeminiAPIKey:              envOr("GEMINI_API_KEY", ""),
		GeminiLiveModel:           envOr("CUPID_LIVE_MODEL", ""),
		QuizModel:                 envOr("CUPID_QUIZ_MODEL", ""),
		OpenAIAPIKey:              envOr("OPENAI_API_KEY", ""),
		TTSVoice:                  envOr("CUPID_TTS_VOICE", "alloy"),
		DatabaseURL:               envOr("DATABASE_URL", ""),
		EnergyThreshold:           envFloat64Or("CUPID_ENERGY_THRESHOLD", 0.015),
		SilenceTimeout:            envDurationOr("CUPID_SILENCE_TIMEOUT_MS", 900*time.Millisecond),
		TriggerStrategy:           TriggerStrategy(envOr("CUPID_TRIGGER_STRATEGY", string(TriggerStrategyRule))),
		QuizInterval:              envIntOr("CUPID_QUIZ_INTERVAL", 5),
		HistoryLimit:              envIntOr("CUPID_HISTORY_LIMIT", 20),
		AgentMinConversationTurns: envIntOr("CUPID_AGENT_MIN_CONVERSATION_TURNS", 3),
		AgentMinGapTurns:          envIntOr("CUPID_AGENT_MIN_GAP_TURNS", 3),
		MaxAudioFrameBytes:        envIntOr("CUPID_MAX_AUDIO_FRAME_BYTES", 32768),
		MaxJSONMessageBytes:       envInt64Or("CUPID_MAX_JSON_MESSAGE_BYTES", 64*1024),
		WSPingInterval:            envDurationOr("CUPID_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:            envDurationOr("CUPID_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:         envDurationOr("CUPID_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:       envDurationOr("CUPID_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	switch cfg.TriggerStrategy {
	case TriggerStrategyRule, TriggerStrategyAgent:
	default:
		return Config{}, fmt.Errorf("CUPID_TRIGGER_STRATEGY must be one of rule|agent")
	}
	if cfg.EnergyThreshold <= 0 || cfg.EnergyThreshold >= 1 {
		return Config{}, fmt.Errorf("CUPID_ENERGY_THRESHOLD must be in (0, 1)")
	}
	if cfg.SilenceTimeout <= 0 {
		return Config{}, fmt.Errorf("CUPID_SILENCE_TIMEOUT_MS must be > 0")
	}
	if cfg.QuizInterval <= 0 {
		return Config{}, fmt.Errorf("CUPID_QUIZ_INTERVAL must be > 0")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("CUPID_HISTORY_LIMIT must be > 0")
	}
	if cfg.AgentMinConversationTurns <= 0 {
		return Config{}, fmt.Errorf("CUPID_AGENT_MIN_CONVERSATION_TURNS must be > 0")
	}
	if cfg.AgentMinGapTurns <= 0 {
		return Config{}, fmt.Errorf("CUPID_AGENT_MIN_GAP_TURNS must be > 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("CUPID_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("CUPID_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("CUPID_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("CUPID_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CUPID_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CUPID_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

// envDurationOr reads a duration from key. A bare integer is interpreted
// as milliseconds; otherwise time.ParseDuration syntax applies.
func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
