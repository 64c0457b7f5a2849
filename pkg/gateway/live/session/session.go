// Package session runs one spoken-conversation session per WebSocket
// connection: inbound audio drives the activity detector, the provider
// session streams replies back, and completed turns are persisted and fed
// to the event engine.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aicupid/cupid-live/pkg/core/live"
	"github.com/aicupid/cupid-live/pkg/core/persona"
	"github.com/aicupid/cupid-live/pkg/core/voice/tts"
	"github.com/aicupid/cupid-live/pkg/events"
	"github.com/aicupid/cupid-live/pkg/gateway/live/protocol"
	"github.com/aicupid/cupid-live/pkg/store"
)

var errBackpressure = errors.New("live outbound backpressure")

const outboundPriorityQueueSize = 8

type Config struct {
	EnergyThreshold     float64
	SilenceTimeout      time.Duration
	HistoryLimit        int
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	TTSVoice            string
	OutboundQueueSize   int
}

type Dependencies struct {
	Conn     *websocket.Conn
	Logger   *slog.Logger
	Provider live.Provider
	// TTS is required only for text response mode.
	TTS    tts.Provider
	Store  store.Store
	Engine *events.Engine
	Config Config
}

// LiveSession owns one connection. All session state is confined to the
// run loop; the read goroutine and provider callbacks communicate with it
// over channels, and the writer goroutine owns socket writes.
type LiveSession struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	provider live.Provider
	tts      tts.Provider
	store    store.Store
	engine   *events.Engine
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan []byte
	outboundNormal   chan []byte
	providerEvents   chan providerEvent

	// Run-loop state. Touched only by the run loop.
	sessionID    string
	responseMode live.ResponseMode
	psession     live.ProviderSession
	providerGen  int
	detector     *live.ActivityDetector
	pendingUser  string
	assistantBuf strings.Builder
	speaking     bool
}

type inboundFrame struct {
	data []byte
	err  error
}

type providerEvent struct {
	// gen identifies which provider session produced the event; events
	// from a session replaced by a later init are dropped.
	gen        int
	transcript string
	hasChunk   bool
	chunk      live.ResponseChunk
	err        error
	closed     bool
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("event engine is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.HistoryLimit <= 0 {
		deps.Config.HistoryLimit = 20
	}
	if deps.Config.MaxAudioFrameBytes <= 0 {
		deps.Config.MaxAudioFrameBytes = 32768
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		conn:             deps.Conn,
		logger:           deps.Logger,
		provider:         deps.Provider,
		tts:              deps.TTS,
		store:            deps.Store,
		engine:           deps.Engine,
		cfg:              deps.Config,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan []byte, outboundPriorityQueueSize),
		outboundNormal:   make(chan []byte, deps.Config.OutboundQueueSize),
		providerEvents:   make(chan providerEvent, 64),
		responseMode:     live.ResponseModeAudio,
	}, nil
}

// Run drives the session until the client disconnects or a fatal error
// occurs. It always releases the provider session and detector timer.
func (s *LiveSession) Run() error {
	defer s.cancel()
	defer s.teardown()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      s.ctx,
			cfg:      s.cfg,
			priority: s.outboundPriority,
			normal:   s.outboundNormal,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	for {
		select {
		case frame, ok := <-readCh:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if websocket.IsCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return nil
				}
				return frame.err
			}
			s.handleClientFrame(frame.data)
		case ev := <-s.providerEvents:
			s.handleProviderEvent(ev)
		case err := <-writerErrCh:
			return err
		case <-s.ctx.Done():
			return nil
		}
	}
}

// Cancel aborts the session from outside, typically on server shutdown.
func (s *LiveSession) Cancel() {
	s.cancel()
}

// WarnShutdown tells the client the server is draining. The frame goes
// out on the priority queue so it is not stuck behind audio.
func (s *LiveSession) WarnShutdown(message string) error {
	return s.sendErrorPriority("server_shutdown", message)
}

func (s *LiveSession) teardown() {
	if s.detector != nil {
		s.detector.Stop()
	}
	if s.psession != nil {
		_ = s.psession.Close()
	}
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) handleClientFrame(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) {
			_ = s.sendError(decErr.Code, decErr.Error())
		} else {
			_ = s.sendError("bad_request", "invalid message")
		}
		return
	}

	switch m := msg.(type) {
	case protocol.ClientInit:
		s.handleInit(m)
	case protocol.ClientAudioChunk:
		s.handleAudioChunk(m)
	case protocol.ClientForceCommit:
		if s.detector != nil {
			s.detector.ForceEnd()
		}
	case protocol.ClientQuizAnswer:
		s.handleQuizAnswer(m)
	}
}

func (s *LiveSession) handleInit(msg protocol.ClientInit) {
	// A repeated init replaces the previous provider session. Only one
	// provider connection exists per logical session.
	if s.psession != nil {
		_ = s.psession.Close()
		s.psession = nil
	}
	if s.detector != nil {
		s.detector.Stop()
		s.detector = nil
	}
	s.pendingUser = ""
	s.assistantBuf.Reset()
	s.speaking = false

	mode := live.ResponseModeAudio
	if msg.ResponseMode == protocol.ResponseModeText {
		mode = live.ResponseModeText
	}
	if mode == live.ResponseModeText && s.tts == nil {
		_ = s.sendError("unsupported", "text response mode is not configured")
		return
	}

	p := persona.Lookup(msg.PersonaID)
	sessionID := uuid.NewString()
	if err := s.store.CreateSession(s.ctx, sessionID, p.ID); err != nil {
		s.logger.Error("create session failed", "error", err)
		_ = s.sendError("storage_error", "failed to create session")
		_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarIdle))
		return
	}

	s.providerGen++
	gen := s.providerGen
	psession, err := s.provider.Open(s.ctx, live.OpenConfig{
		SystemInstruction: p.Instruction,
		ResponseMode:      mode,
		InputAudio:        live.DefaultInputAudioConfig(),
		Callbacks: live.Callbacks{
			OnTranscript: func(text string) {
				s.pushProviderEvent(providerEvent{gen: gen, transcript: text})
			},
			OnResponse: func(chunk live.ResponseChunk) {
				s.pushProviderEvent(providerEvent{gen: gen, hasChunk: true, chunk: chunk})
			},
			OnError: func(err error) {
				s.pushProviderEvent(providerEvent{gen: gen, err: err})
			},
			OnClosed: func() {
				s.pushProviderEvent(providerEvent{gen: gen, closed: true})
			},
		},
	})
	if err != nil {
		s.logger.Error("provider open failed", "persona", p.ID, "error", err)
		_ = s.sendError("provider_error", "failed to open live session")
		_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarIdle))
		return
	}

	s.sessionID = sessionID
	s.responseMode = mode
	s.psession = psession
	s.detector = live.NewActivityDetector(live.ActivityConfig{
		EnergyThreshold: s.cfg.EnergyThreshold,
		SilenceTimeout:  s.cfg.SilenceTimeout,
	}, psession, s.logger)

	s.logger.Info("session initialized",
		"session_id", sessionID,
		"persona", p.ID,
		"response_mode", string(mode))
	_ = s.sendJSON(protocol.NewSessionReady(sessionID))
	_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarListening))
}

func (s *LiveSession) handleAudioChunk(msg protocol.ClientAudioChunk) {
	// Audio before init has nowhere to go.
	if s.detector == nil {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		_ = s.sendError("bad_request", "audio_chunk.data is not valid base64")
		return
	}
	if len(pcm) > s.cfg.MaxAudioFrameBytes {
		_ = s.sendError("bad_request", "audio frame too large")
		return
	}
	s.detector.Process(pcm)
}

func (s *LiveSession) handleQuizAnswer(msg protocol.ClientQuizAnswer) {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = s.sessionID
	}
	if sessionID == "" {
		return
	}
	if err := s.store.RecordQuizAnswer(s.ctx, sessionID, msg.QuestionID, msg.AnswerIndex); err != nil {
		s.logger.Warn("record quiz answer failed",
			"session_id", sessionID,
			"question_id", msg.QuestionID,
			"error", err)
		return
	}
	s.logger.Info("quiz answer recorded",
		"session_id", sessionID,
		"question_id", msg.QuestionID,
		"answer_index", msg.AnswerIndex)
}

// pushProviderEvent hands a callback's payload to the run loop. Invoked
// on the provider's receive goroutine.
func (s *LiveSession) pushProviderEvent(ev providerEvent) {
	select {
	case s.providerEvents <- ev:
	case <-s.ctx.Done():
	}
}

func (s *LiveSession) handleProviderEvent(ev providerEvent) {
	// Events buffered from a provider session that a later init replaced
	// must not leak into the current session.
	if ev.gen != s.providerGen {
		return
	}
	switch {
	case ev.err != nil:
		s.logger.Error("provider session error", "session_id", s.sessionID, "error", ev.err)
		_ = s.sendErrorPriority("provider_error", "live session error")
		_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarIdle))
	case ev.closed:
		s.logger.Info("provider session closed", "session_id", s.sessionID)
	case ev.transcript != "":
		s.pendingUser = ev.transcript
		_ = s.sendJSON(protocol.NewTranscript(ev.transcript))
		if !s.speaking {
			_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarThinking))
		}
	case ev.hasChunk:
		s.handleResponseChunk(ev.chunk)
	}
}

func (s *LiveSession) handleResponseChunk(chunk live.ResponseChunk) {
	if len(chunk.Audio) > 0 {
		if !s.speaking {
			s.speaking = true
			_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarSpeaking))
		}
		_ = s.sendJSON(protocol.NewAIAudio(base64.StdEncoding.EncodeToString(chunk.Audio), chunk.MIMEType, false))
	}
	if chunk.Text != "" {
		s.assistantBuf.WriteString(chunk.Text)
	}
	if chunk.Done {
		s.finishTurn()
	}
}

// finishTurn runs when the provider signals turn completion: deliver the
// remaining reply, persist the turn, dispatch triggers, and re-arm the
// detector. Next-turn audio frames queue behind this; activity detection
// resumes only once the turn is fully processed.
func (s *LiveSession) finishTurn() {
	assistantText := s.assistantBuf.String()
	s.assistantBuf.Reset()

	if s.responseMode == live.ResponseModeText && assistantText != "" {
		_ = s.sendJSON(protocol.NewAIText(assistantText))
		s.synthesizeReply(assistantText)
	} else {
		_ = s.sendJSON(protocol.NewAIAudio("", "", true))
	}
	s.speaking = false

	if s.pendingUser != "" {
		s.processCompletedTurn(s.pendingUser, assistantText)
	}
	s.pendingUser = ""

	if s.detector != nil {
		s.detector.Reset()
	}
	_ = s.sendJSON(protocol.NewAvatarState(protocol.AvatarListening))
}

func (s *LiveSession) synthesizeReply(text string) {
	syn, err := s.tts.Synthesize(s.ctx, text, tts.SynthesizeOptions{Voice: s.cfg.TTSVoice})
	if err != nil {
		s.logger.Warn("tts synthesis failed", "session_id", s.sessionID, "error", err)
		_ = s.sendJSON(protocol.NewAIAudio("", "", true))
		return
	}
	_ = s.sendJSON(protocol.NewAIAudio(base64.StdEncoding.EncodeToString(syn.Audio), syn.MIMEType, true))
}

func (s *LiveSession) processCompletedTurn(userText, assistantText string) {
	ctx := s.ctx
	if err := s.store.AppendMessage(ctx, s.sessionID, store.RoleUser, userText); err != nil {
		s.logger.Error("persist user message failed", "session_id", s.sessionID, "error", err)
		return
	}
	if assistantText != "" {
		if err := s.store.AppendMessage(ctx, s.sessionID, store.RoleAssistant, assistantText); err != nil {
			s.logger.Error("persist assistant message failed", "session_id", s.sessionID, "error", err)
		}
	}

	count, err := s.store.UserMessageCount(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("user message count failed", "session_id", s.sessionID, "error", err)
		return
	}
	history, err := s.store.RecentMessages(ctx, s.sessionID, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Error("recent messages failed", "session_id", s.sessionID, "error", err)
		return
	}

	turn := events.TurnContext{
		SessionID:        s.sessionID,
		UserText:         userText,
		AssistantText:    assistantText,
		UserMessageCount: count,
		History:          history,
	}
	for _, ev := range s.engine.ProcessTurn(ctx, turn) {
		s.dispatchEvent(ev)
	}
}

func (s *LiveSession) dispatchEvent(ev events.Event) {
	switch e := ev.(type) {
	case *events.QuizEvent:
		if err := s.store.SaveQuiz(s.ctx, s.sessionID, e.Questions); err != nil {
			s.logger.Error("save quiz failed", "session_id", s.sessionID, "error", err)
		}
		payload := make([]protocol.QuizQuestionPayload, 0, len(e.Questions))
		for _, q := range e.Questions {
			payload = append(payload, protocol.QuizQuestionPayload{
				ID:           q.ID,
				Question:     q.Question,
				Choices:      q.Choices,
				CorrectIndex: q.CorrectIndex,
				TimeLimitSec: q.TimeLimitSec,
			})
		}
		_ = s.sendJSON(protocol.NewQuiz(payload))
		s.logger.Info("quiz dispatched", "session_id", s.sessionID, "questions", len(payload))
	default:
		s.logger.Warn("unhandled event type", "event_type", ev.EventType())
	}
}

func (s *LiveSession) sendError(code, message string) error {
	return s.sendJSON(protocol.NewError(code, message))
}

func (s *LiveSession) sendErrorPriority(code, message string) error {
	return s.sendJSONPriority(protocol.NewError(code, message))
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outboundNormal <- payload:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- payload:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- payload:
		return nil
	default:
		return errBackpressure
	}
}
