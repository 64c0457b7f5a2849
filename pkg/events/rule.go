package events

import (
	"context"

	"github.com/aicupid/cupid-live/pkg/store"
)

// QuizGenerator produces quiz questions from recent conversation history.
// A generator that cannot produce usable questions returns an empty slice,
// not an error.
type QuizGenerator interface {
	Generate(ctx context.Context, history []store.Message) ([]store.QuizQuestion, error)
}

// RuleTrigger fires a quiz on every Nth user turn. It is the deterministic
// counterpart of [AgentTrigger]; a session uses one or the other.
type RuleTrigger struct {
	interval  int
	generator QuizGenerator
}

// NewRuleTrigger creates a trigger firing every interval user turns.
// A non-positive interval defaults to 5.
func NewRuleTrigger(interval int, generator QuizGenerator) *RuleTrigger {
	if interval <= 0 {
		interval = 5
	}
	return &RuleTrigger{interval: interval, generator: generator}
}

func (t *RuleTrigger) Name() string { return "quiz.rule" }

func (t *RuleTrigger) Evaluate(ctx context.Context, turn TurnContext) (Event, error) {
	if turn.UserMessageCount <= 0 || turn.UserMessageCount%t.interval != 0 {
		return nil, nil
	}
	questions, err := t.generator.Generate(ctx, turn.History)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}
	return &QuizEvent{Questions: questions}, nil
}
