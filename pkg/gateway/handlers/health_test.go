package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aicupid/cupid-live/pkg/events"
	"github.com/aicupid/cupid-live/pkg/gateway/config"
	"github.com/aicupid/cupid-live/pkg/store"
)

func validTestConfig() config.Config {
	return config.Config{
		GeminiAPIKey:    "key",
		TriggerStrategy: config.TriggerStrategyRule,
		EnergyThreshold: 0.015,
		SilenceTimeout:  900 * time.Millisecond,
		QuizInterval:    5,
		HistoryLimit:    20,
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok\n" {
		t.Fatalf("body = %q, want %q", got, "ok\n")
	}
}

func TestReadyHandlerOK(t *testing.T) {
	rec := httptest.NewRecorder()
	ReadyHandler{Config: validTestConfig()}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK              bool     `json:"ok"`
		TriggerStrategy string   `json:"trigger_strategy"`
		Issues          []string `json:"issues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		t.Fatalf("ok = false, issues = %v", resp.Issues)
	}
	if resp.TriggerStrategy != "rule" {
		t.Fatalf("trigger_strategy = %q, want rule", resp.TriggerStrategy)
	}
}

func TestReadyHandlerReportsIssues(t *testing.T) {
	cfg := validTestConfig()
	cfg.GeminiAPIKey = ""
	cfg.EnergyThreshold = 2

	rec := httptest.NewRecorder()
	ReadyHandler{Config: cfg}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var resp struct {
		OK     bool     `json:"ok"`
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OK {
		t.Fatal("ok = true, want false")
	}
	if len(resp.Issues) != 2 {
		t.Fatalf("issues = %v, want 2 entries", resp.Issues)
	}
}

func testVoiceHandler() *VoiceHandler {
	logger := slog.New(slog.DiscardHandler)
	return NewVoiceHandler(logger, nil, nil, store.NewMemory(), events.NewEngine(logger), validTestConfig(), nil, nil)
}

func TestVoiceHandlerRejectsNonGet(t *testing.T) {
	rec := httptest.NewRecorder()
	testVoiceHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/voice", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestVoiceHandlerRejectsPlainGet(t *testing.T) {
	rec := httptest.NewRecorder()
	testVoiceHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/voice", nil))

	// A GET without websocket upgrade headers must fail the upgrade.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVoiceHandlerRefusesWhileDraining(t *testing.T) {
	h := testVoiceHandler()
	h.Draining = func() bool { return true }

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/voice", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
