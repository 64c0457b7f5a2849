// Package store persists conversation sessions, turns, and generated
// quizzes. Each session owns disjoint rows, so concurrent appends from
// different connections never contend beyond the engine's own write
// serialization.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when an operation references a session
// that was never created.
var ErrSessionNotFound = errors.New("store: session not found")

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one voice conversation. Immutable once created; a client
// re-init mints a new session rather than mutating the old one.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one conversation utterance. Append-only; ordering by
// creation time is the canonical conversation order.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuizQuestion is one four-choice question of a generated quiz. The JSON
// shape is relayed to clients as-is inside quiz events.
type QuizQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// Store is the persistence contract for the voice gateway. All writes are
// append-only.
type Store interface {
	// CreateSession registers a new session.
	CreateSession(ctx context.Context, id, personaID string) error

	// AppendMessage appends one utterance to a session.
	AppendMessage(ctx context.Context, sessionID string, role Role, text string) error

	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// UserMessageCount counts user-role messages for the session,
	// including any appended earlier in the same turn.
	UserMessageCount(ctx context.Context, sessionID string) (int, error)

	// SaveQuiz persists the questions of an emitted quiz.
	SaveQuiz(ctx context.Context, sessionID string, questions []QuizQuestion) error

	// RecordQuizAnswer stores a client's answer submission. No scoring.
	RecordQuizAnswer(ctx context.Context, sessionID, questionID string, answerIndex int) error
}
