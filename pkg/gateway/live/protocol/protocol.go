// Package protocol defines the JSON wire messages exchanged over the voice
// WebSocket, and their decoding and validation.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Avatar states pushed to the client for UI animation.
const (
	AvatarIdle      = "idle"
	AvatarListening = "listening"
	AvatarThinking  = "thinking"
	AvatarSpeaking  = "speaking"
)

// Response modes a client may request at init.
const (
	ResponseModeAudio = "audio"
	ResponseModeText  = "text"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientInit starts or restarts the session with a persona. A second init
// on the same connection tears down the previous provider session first.
type ClientInit struct {
	Type         string `json:"type"`
	PersonaID    string `json:"personaId"`
	ResponseMode string `json:"responseMode,omitempty"`
}

// ClientAudioChunk carries base64-encoded 16-bit LE PCM microphone audio.
type ClientAudioChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientForceCommit ends the current utterance immediately, bypassing the
// silence timeout.
type ClientForceCommit struct {
	Type string `json:"type"`
}

// ClientQuizAnswer records the user's answer to a previously sent quiz
// question.
type ClientQuizAnswer struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	QuestionID  string `json:"questionId"`
	AnswerIndex int    `json:"answerIndex"`
}

// DecodeClientMessage decodes and validates one client JSON frame. The
// returned value is one of the Client* message types; errors are always
// *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "init":
		var msg ClientInit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid init frame", "")
		}
		mode := strings.TrimSpace(msg.ResponseMode)
		switch mode {
		case "", ResponseModeAudio, ResponseModeText:
		default:
			return nil, unsupported("unsupported response mode", "responseMode")
		}
		msg.ResponseMode = mode
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("audio_chunk.data is required", "data")
		}
		return msg, nil
	case "force_commit":
		var msg ClientForceCommit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid force_commit", "")
		}
		return msg, nil
	case "quiz_answer":
		var msg ClientQuizAnswer
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid quiz_answer", "")
		}
		if strings.TrimSpace(msg.QuestionID) == "" {
			return nil, badRequest("quiz_answer.questionId is required", "questionId")
		}
		if msg.AnswerIndex < 0 {
			return nil, badRequest("quiz_answer.answerIndex must be >= 0", "answerIndex")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerSessionReady acknowledges init.
type ServerSessionReady struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// ServerTranscript carries the final transcription of a user utterance.
type ServerTranscript struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerAIText carries the model's full text reply in text response mode.
type ServerAIText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerAIAudio carries base64-encoded model or TTS audio. Done marks the
// final chunk of a reply.
type ServerAIAudio struct {
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Done     bool   `json:"done,omitempty"`
}

// ServerAvatarState drives the client avatar animation.
type ServerAvatarState struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// QuizQuestionPayload is one question in a quiz message.
type QuizQuestionPayload struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// ServerQuiz pushes a generated quiz to the client.
type ServerQuiz struct {
	Type      string                `json:"type"`
	Questions []QuizQuestionPayload `json:"questions"`
}

// ServerError reports a recoverable or fatal session error.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Constructors pinning the type tag.

func NewSessionReady(sessionID string) ServerSessionReady {
	return ServerSessionReady{Type: "session_ready", SessionID: sessionID}
}

func NewTranscript(text string) ServerTranscript {
	return ServerTranscript{Type: "transcript", Text: text}
}

func NewAIText(text string) ServerAIText {
	return ServerAIText{Type: "ai_text", Text: text}
}

func NewAIAudio(dataB64, mimeType string, done bool) ServerAIAudio {
	return ServerAIAudio{Type: "ai_audio", Data: dataB64, MIMEType: mimeType, Done: done}
}

func NewAvatarState(state string) ServerAvatarState {
	return ServerAvatarState{Type: "avatar_state", State: state}
}

func NewQuiz(questions []QuizQuestionPayload) ServerQuiz {
	return ServerQuiz{Type: "quiz", Questions: questions}
}

func NewError(code, message string) ServerError {
	return ServerError{Type: "error", Code: code, Message: message}
}
