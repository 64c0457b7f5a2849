// Package events evaluates post-turn triggers and produces events for the
// client, such as generated quizzes. Triggers run concurrently after every
// completed conversation turn; a failing trigger never blocks the others.
package events

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aicupid/cupid-live/pkg/store"
)

// Event is the interface for all engine-produced events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// QuizEvent carries a batch of generated quiz questions.
type QuizEvent struct {
	Questions []store.QuizQuestion `json:"questions"`
}

func (e *QuizEvent) EventType() string { return "quiz" }

// TurnContext is the snapshot of a completed conversation turn handed to
// every trigger.
type TurnContext struct {
	SessionID        string
	UserText         string
	AssistantText    string
	UserMessageCount int
	// History is the recent conversation, newest first.
	History []store.Message
}

// Trigger decides whether a completed turn warrants an event. Evaluate
// returns (nil, nil) when the trigger does not fire.
type Trigger interface {
	Name() string
	Evaluate(ctx context.Context, turn TurnContext) (Event, error)
}

// Engine fans a completed turn out to its triggers and collects the events
// they produce.
type Engine struct {
	triggers []Trigger
	logger   *slog.Logger
}

// NewEngine creates an engine over the given triggers. A nil logger falls
// back to slog.Default.
func NewEngine(logger *slog.Logger, triggers ...Trigger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{triggers: triggers, logger: logger}
}

// ProcessTurn evaluates every trigger against the turn concurrently and
// returns the events of the triggers that fired. Trigger errors are logged
// and the trigger's result dropped; the remaining triggers still run to
// completion. With no triggers registered it returns an empty slice.
func (e *Engine) ProcessTurn(ctx context.Context, turn TurnContext) []Event {
	if len(e.triggers) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		events []Event
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, trigger := range e.triggers {
		g.Go(func() error {
			ev, err := trigger.Evaluate(gctx, turn)
			if err != nil {
				e.logger.Warn("trigger evaluation failed",
					"trigger", trigger.Name(),
					"session_id", turn.SessionID,
					"error", err)
				return nil
			}
			if ev == nil {
				return nil
			}
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			return nil
		})
	}
	// Goroutines always return nil; Wait is for joining only.
	_ = g.Wait()
	return events
}
