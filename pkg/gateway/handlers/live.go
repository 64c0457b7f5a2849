package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aicupid/cupid-live/pkg/core/live"
	"github.com/aicupid/cupid-live/pkg/core/voice/tts"
	"github.com/aicupid/cupid-live/pkg/events"
	"github.com/aicupid/cupid-live/pkg/gateway/config"
	"github.com/aicupid/cupid-live/pkg/gateway/live/session"
	"github.com/aicupid/cupid-live/pkg/gateway/live/sessions"
	"github.com/aicupid/cupid-live/pkg/gateway/mw"
	"github.com/aicupid/cupid-live/pkg/store"
)

// VoiceHandler upgrades /v1/voice requests to a websocket and runs a
// live session over the connection. One websocket is one session.
type VoiceHandler struct {
	Logger   *slog.Logger
	Provider live.Provider
	TTS      tts.Provider
	Store    store.Store
	Engine   *events.Engine
	Config   config.Config
	// Sessions, when set, tracks running sessions for graceful drain.
	Sessions *sessions.Tracker
	// Draining, when set, makes the handler refuse new sessions during
	// shutdown.
	Draining func() bool

	upgrader websocket.Upgrader
}

func NewVoiceHandler(logger *slog.Logger, provider live.Provider, ttsProvider tts.Provider, st store.Store, engine *events.Engine, cfg config.Config, tracker *sessions.Tracker, draining func() bool) *VoiceHandler {
	return &VoiceHandler{
		Logger:   logger,
		Provider: provider,
		TTS:      ttsProvider,
		Store:    st,
		Engine:   engine,
		Config:   cfg,
		Sessions: tracker,
		Draining: draining,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins during
			// development; client auth lives outside the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Draining != nil && h.Draining() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	logger := h.Logger
	if reqID, ok := mw.RequestIDFrom(r.Context()); ok {
		logger = logger.With("request_id", reqID)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess, err := session.New(session.Dependencies{
		Conn:     ws,
		Logger:   logger,
		Provider: h.Provider,
		TTS:      h.TTS,
		Store:    h.Store,
		Engine:   h.Engine,
		Config: session.Config{
			EnergyThreshold:     h.Config.EnergyThreshold,
			SilenceTimeout:      h.Config.SilenceTimeout,
			HistoryLimit:        h.Config.HistoryLimit,
			MaxAudioFrameBytes:  h.Config.MaxAudioFrameBytes,
			MaxJSONMessageBytes: h.Config.MaxJSONMessageBytes,
			PingInterval:        h.Config.WSPingInterval,
			WriteTimeout:        h.Config.WSWriteTimeout,
			TTSVoice:            h.Config.TTSVoice,
		},
	})
	if err != nil {
		logger.Error("session setup failed", "error", err)
		_ = ws.Close()
		return
	}

	var unregister func()
	if h.Sessions != nil {
		unregister = h.Sessions.Register(uuid.NewString(), sessions.Handle{
			Cancel: sess.Cancel,
			Warn:   sess.WarnShutdown,
		})
	}

	err = sess.Run()
	if unregister != nil {
		unregister()
	}
	if err != nil {
		logger.Warn("session ended with error", "error", err)
	}
}
