// Package server wires the HTTP surface: health probes and the voice
// websocket endpoint, wrapped in the shared middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/aicupid/cupid-live/pkg/core/live"
	"github.com/aicupid/cupid-live/pkg/core/voice/tts"
	"github.com/aicupid/cupid-live/pkg/events"
	"github.com/aicupid/cupid-live/pkg/gateway/config"
	"github.com/aicupid/cupid-live/pkg/gateway/handlers"
	"github.com/aicupid/cupid-live/pkg/gateway/live/sessions"
	"github.com/aicupid/cupid-live/pkg/gateway/mw"
	"github.com/aicupid/cupid-live/pkg/store"
)

type Dependencies struct {
	Logger   *slog.Logger
	Provider live.Provider
	TTS      tts.Provider
	Store    store.Store
	Engine   *events.Engine
}

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	mux      *http.ServeMux
	tracker  *sessions.Tracker
	draining atomic.Bool
}

func New(cfg config.Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		logger:  deps.Logger,
		mux:     http.NewServeMux(),
		tracker: sessions.NewTracker(),
	}
	s.routes(deps)
	return s
}

func (s *Server) routes(deps Dependencies) {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})
	s.mux.Handle("/v1/voice", handlers.NewVoiceHandler(
		deps.Logger, deps.Provider, deps.TTS, deps.Store, deps.Engine, s.cfg,
		s.tracker, s.draining.Load,
	))
}

// SetDraining flips the server into shutdown mode: new voice sessions
// are refused while existing ones keep running.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

// WarnLiveSessionsDraining tells every connected client the server is
// going away.
func (s *Server) WarnLiveSessionsDraining() {
	n := s.tracker.WarnAll("server is shutting down")
	if n > 0 {
		s.logger.Info("warned live sessions of shutdown", "sessions", n)
	}
}

// WaitLiveSessions blocks until all sessions end or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelLiveSessions force-closes whatever sessions remain.
func (s *Server) CancelLiveSessions() {
	n := s.tracker.CancelAll()
	if n > 0 {
		s.logger.Info("canceled live sessions", "sessions", n)
	}
}

// Handler returns the root handler with the middleware chain applied.
// RequestID runs outermost so the access log and panic recovery both see
// the request id.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
