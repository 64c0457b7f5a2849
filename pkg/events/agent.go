package events

import (
	"context"
	"sync"

	"github.com/aicupid/cupid-live/pkg/store"
)

// Judge decides whether the conversation has reached a natural point for a
// quiz. Implemented by [GeminiJudge]; tests substitute fakes.
type Judge interface {
	ShouldQuiz(ctx context.Context, history []store.Message) (bool, error)
}

// AgentTriggerConfig tunes the gates applied before the judge is consulted.
type AgentTriggerConfig struct {
	// MinConversationTurns is the minimum cumulative user-message count
	// before the judge is ever consulted.
	MinConversationTurns int
	// MinGapTurns is the minimum number of user turns between two fired
	// quizzes.
	MinGapTurns int
}

// DefaultAgentTriggerConfig returns the gates used in production.
func DefaultAgentTriggerConfig() AgentTriggerConfig {
	return AgentTriggerConfig{
		MinConversationTurns: 3,
		MinGapTurns:          3,
	}
}

// AgentTrigger fires a quiz when an LLM judge decides the moment is right.
// Cheap gates (conversation length, turns since the last quiz) run first so
// the judge is only consulted when a quiz is plausible.
type AgentTrigger struct {
	cfg       AgentTriggerConfig
	judge     Judge
	generator QuizGenerator

	mu             sync.Mutex
	lastFiredCount int
}

// NewAgentTrigger creates an agent-judged quiz trigger.
func NewAgentTrigger(cfg AgentTriggerConfig, judge Judge, generator QuizGenerator) *AgentTrigger {
	if cfg.MinConversationTurns <= 0 {
		cfg.MinConversationTurns = DefaultAgentTriggerConfig().MinConversationTurns
	}
	if cfg.MinGapTurns <= 0 {
		cfg.MinGapTurns = DefaultAgentTriggerConfig().MinGapTurns
	}
	return &AgentTrigger{cfg: cfg, judge: judge, generator: generator}
}

func (t *AgentTrigger) Name() string { return "quiz.agent" }

func (t *AgentTrigger) Evaluate(ctx context.Context, turn TurnContext) (Event, error) {
	if turn.UserMessageCount < t.cfg.MinConversationTurns {
		return nil, nil
	}
	t.mu.Lock()
	gapOK := t.lastFiredCount == 0 || turn.UserMessageCount-t.lastFiredCount >= t.cfg.MinGapTurns
	t.mu.Unlock()
	if !gapOK {
		return nil, nil
	}

	fire, err := t.judge.ShouldQuiz(ctx, turn.History)
	if err != nil {
		return nil, err
	}
	if !fire {
		return nil, nil
	}

	questions, err := t.generator.Generate(ctx, turn.History)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	// The gap marker advances only on a delivered quiz so a failed or empty
	// generation does not suppress the next opportunity.
	t.mu.Lock()
	t.lastFiredCount = turn.UserMessageCount
	t.mu.Unlock()
	return &QuizEvent{Questions: questions}, nil
}
