package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store. Used by tests and by deployments run
// without a database.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]Message
	quizzes  map[string][]QuizQuestion
	answers  map[string][]memoryAnswer
	nextID   int64
}

type memoryAnswer struct {
	QuestionID  string
	AnswerIndex int
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
		quizzes:  make(map[string][]QuizQuestion),
		answers:  make(map[string][]memoryAnswer),
	}
}

func (m *Memory) CreateSession(ctx context.Context, id, personaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = Session{ID: id, PersonaID: personaID, CreatedAt: time.Now()}
	return nil
}

func (m *Memory) AppendMessage(ctx context.Context, sessionID string, role Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	m.nextID++
	m.messages[sessionID] = append(m.messages[sessionID], Message{
		ID:        m.nextID,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	msgs := m.messages[sessionID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]Message, 0, limit)
	for i := len(msgs) - 1; i >= len(msgs)-limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (m *Memory) UserMessageCount(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return 0, ErrSessionNotFound
	}
	count := 0
	for _, msg := range m.messages[sessionID] {
		if msg.Role == RoleUser {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SaveQuiz(ctx context.Context, sessionID string, questions []QuizQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	m.quizzes[sessionID] = append(m.quizzes[sessionID], questions...)
	return nil
}

func (m *Memory) RecordQuizAnswer(ctx context.Context, sessionID, questionID string, answerIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	m.answers[sessionID] = append(m.answers[sessionID], memoryAnswer{QuestionID: questionID, AnswerIndex: answerIndex})
	return nil
}

// QuizAnswerCount returns the number of recorded answers for a session.
// Test helper.
func (m *Memory) QuizAnswerCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.answers[sessionID])
}

// SavedQuizQuestions returns all persisted quiz questions for a session.
// Test helper.
func (m *Memory) SavedQuizQuestions(sessionID string) []QuizQuestion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizQuestion, len(m.quizzes[sessionID]))
	copy(out, m.quizzes[sessionID])
	return out
}
