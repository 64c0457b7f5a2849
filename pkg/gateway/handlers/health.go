package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aicupid/cupid-live/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK              bool     `json:"ok"`
		TriggerStrategy string   `json:"trigger_strategy"`
		Persistent      bool     `json:"persistent"`
		TextModeEnabled bool     `json:"text_mode_enabled"`
		Issues          []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key not configured")
	}
	switch h.Config.TriggerStrategy {
	case config.TriggerStrategyRule, config.TriggerStrategyAgent:
	default:
		issues = append(issues, "invalid trigger_strategy")
	}
	if h.Config.EnergyThreshold <= 0 || h.Config.EnergyThreshold >= 1 {
		issues = append(issues, "energy threshold out of range")
	}
	if h.Config.SilenceTimeout <= 0 {
		issues = append(issues, "silence timeout must be > 0")
	}
	if h.Config.QuizInterval <= 0 {
		issues = append(issues, "quiz interval must be > 0")
	}
	if h.Config.HistoryLimit <= 0 {
		issues = append(issues, "history limit must be > 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:              ok,
		TriggerStrategy: string(h.Config.TriggerStrategy),
		Persistent:      h.Config.DatabaseURL != "",
		TextModeEnabled: h.Config.OpenAIAPIKey != "",
		Issues:          issues,
	})
}
