package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aicupid/cupid-live/pkg/store"
)

type fakeTrigger struct {
	name  string
	event Event
	err   error
	calls int
}

func (t *fakeTrigger) Name() string { return t.name }

func (t *fakeTrigger) Evaluate(ctx context.Context, turn TurnContext) (Event, error) {
	t.calls++
	return t.event, t.err
}

type fakeGenerator struct {
	questions []store.QuizQuestion
	err       error
	calls     int
}

func (g *fakeGenerator) Generate(ctx context.Context, history []store.Message) ([]store.QuizQuestion, error) {
	g.calls++
	return g.questions, g.err
}

func oneQuestion() []store.QuizQuestion {
	return []store.QuizQuestion{{
		ID:           "q1",
		Question:     "What did we talk about?",
		Choices:      []string{"cats", "dogs"},
		CorrectIndex: 0,
		TimeLimitSec: 20,
	}}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestEngineNoTriggers(t *testing.T) {
	e := NewEngine(discard())
	events := e.ProcessTurn(context.Background(), TurnContext{SessionID: "s1"})
	if len(events) != 0 {
		t.Fatalf("events=%v, want none", events)
	}
}

func TestEngineFailureIsolation(t *testing.T) {
	failing := &fakeTrigger{name: "bad", err: errors.New("boom")}
	firing := &fakeTrigger{name: "good", event: &QuizEvent{Questions: oneQuestion()}}
	e := NewEngine(discard(), failing, firing)

	events := e.ProcessTurn(context.Background(), TurnContext{SessionID: "s1"})
	if len(events) != 1 {
		t.Fatalf("len(events)=%d, want 1", len(events))
	}
	if events[0].EventType() != "quiz" {
		t.Fatalf("EventType=%q, want %q", events[0].EventType(), "quiz")
	}
	if failing.calls != 1 || firing.calls != 1 {
		t.Fatalf("calls failing=%d firing=%d, want 1 each", failing.calls, firing.calls)
	}
}

func TestEngineSilentTriggersProduceNothing(t *testing.T) {
	silent := &fakeTrigger{name: "silent"}
	e := NewEngine(discard(), silent, silent)
	if events := e.ProcessTurn(context.Background(), TurnContext{}); len(events) != 0 {
		t.Fatalf("events=%v, want none", events)
	}
}

func TestRuleTriggerInterval(t *testing.T) {
	cases := []struct {
		count int
		fire  bool
	}{
		{0, false},
		{1, false},
		{4, false},
		{5, true},
		{6, false},
		{9, false},
		{10, true},
		{15, true},
	}
	for _, tc := range cases {
		gen := &fakeGenerator{questions: oneQuestion()}
		trig := NewRuleTrigger(5, gen)
		ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: tc.count})
		if err != nil {
			t.Fatalf("count=%d: Evaluate: %v", tc.count, err)
		}
		if fired := ev != nil; fired != tc.fire {
			t.Fatalf("count=%d: fired=%v, want %v", tc.count, fired, tc.fire)
		}
		if tc.fire && gen.calls != 1 {
			t.Fatalf("count=%d: generator calls=%d, want 1", tc.count, gen.calls)
		}
		if !tc.fire && gen.calls != 0 {
			t.Fatalf("count=%d: generator calls=%d, want 0", tc.count, gen.calls)
		}
	}
}

func TestRuleTriggerEmptyGenerationSuppressed(t *testing.T) {
	trig := NewRuleTrigger(5, &fakeGenerator{})
	ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 5})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev != nil {
		t.Fatalf("ev=%v, want nil for empty generation", ev)
	}
}

func TestRuleTriggerGeneratorError(t *testing.T) {
	trig := NewRuleTrigger(5, &fakeGenerator{err: errors.New("quota")})
	if _, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 5}); err == nil {
		t.Fatal("Evaluate err=nil, want generator error")
	}
}

type fakeJudge struct {
	fire  bool
	err   error
	calls int
}

func (j *fakeJudge) ShouldQuiz(ctx context.Context, history []store.Message) (bool, error) {
	j.calls++
	return j.fire, j.err
}

func TestAgentTriggerShortConversationGated(t *testing.T) {
	judge := &fakeJudge{fire: true}
	trig := NewAgentTrigger(AgentTriggerConfig{MinConversationTurns: 3, MinGapTurns: 2}, judge, &fakeGenerator{questions: oneQuestion()})

	for count := 1; count <= 2; count++ {
		ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: count})
		if err != nil {
			t.Fatalf("count=%d: Evaluate: %v", count, err)
		}
		if ev != nil {
			t.Fatalf("count=%d: ev=%v, want nil below conversation minimum", count, ev)
		}
	}
	if judge.calls != 0 {
		t.Fatalf("judge calls=%d, want 0", judge.calls)
	}

	if ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 3}); err != nil || ev == nil {
		t.Fatalf("count=3: ev=%v err=%v, want quiz", ev, err)
	}
}

func TestAgentTriggerMinGapTurns(t *testing.T) {
	judge := &fakeJudge{fire: true}
	trig := NewAgentTrigger(AgentTriggerConfig{MinConversationTurns: 2, MinGapTurns: 3}, judge, &fakeGenerator{questions: oneQuestion()})

	ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 2})
	if err != nil || ev == nil {
		t.Fatalf("first Evaluate ev=%v err=%v, want quiz", ev, err)
	}

	// Two more user turns are inside the gap; the third is past it.
	for _, count := range []int{3, 4} {
		if ev, _ := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: count}); ev != nil {
			t.Fatalf("count=%d: ev=%v inside gap, want nil", count, ev)
		}
	}
	if ev, _ := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 5}); ev == nil {
		t.Fatal("ev=nil after gap elapsed, want quiz")
	}
}

func TestAgentTriggerEmptyGenerationKeepsGapOpen(t *testing.T) {
	judge := &fakeJudge{fire: true}
	gen := &fakeGenerator{}
	trig := NewAgentTrigger(AgentTriggerConfig{MinConversationTurns: 2, MinGapTurns: 10}, judge, gen)

	turn := TurnContext{UserMessageCount: 2}
	if ev, err := trig.Evaluate(context.Background(), turn); ev != nil || err != nil {
		t.Fatalf("ev=%v err=%v, want nil/nil for empty generation", ev, err)
	}

	// An empty generation must not advance the gap marker.
	gen.questions = oneQuestion()
	if ev, _ := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 3}); ev == nil {
		t.Fatal("ev=nil on retry, want quiz")
	}
}

func TestAgentTriggerJudgeDeclines(t *testing.T) {
	judge := &fakeJudge{fire: false}
	gen := &fakeGenerator{questions: oneQuestion()}
	trig := NewAgentTrigger(AgentTriggerConfig{MinConversationTurns: 2, MinGapTurns: 2}, judge, gen)

	ev, err := trig.Evaluate(context.Background(), TurnContext{UserMessageCount: 4})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev != nil {
		t.Fatalf("ev=%v, want nil when judge declines", ev)
	}
	if gen.calls != 0 {
		t.Fatalf("generator calls=%d, want 0", gen.calls)
	}
}
