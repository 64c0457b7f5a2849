package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/aicupid/cupid-live/pkg/store"
)

// DefaultQuizModel is the Gemini model used for quiz generation and the
// agent-trigger judge.
const DefaultQuizModel = "gemini-2.5-flash"

const quizSystemPrompt = `You create short multiple-choice quizzes from a
spoken conversation between a user and an AI companion. Base every question
on facts actually discussed. Reply with a JSON array only, no prose. Each
element has the shape:
{"question": string, "choices": [string, string, string, string], "correctIndex": int, "timeLimitSec": int}
Produce between 1 and 3 questions. If the conversation contains nothing
quizzable, reply with [].`

const judgePrompt = `You monitor a spoken conversation between a user and an
AI companion and decide whether now is a good moment to surprise the user
with a short quiz. Fire only when a topic has just been discussed in enough
depth to ask about. Reply with exactly YES or NO.`

// GeminiQuizGenerator generates quizzes with Gemini's JSON output mode.
type GeminiQuizGenerator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ QuizGenerator = (*GeminiQuizGenerator)(nil)

// NewGeminiQuizGenerator creates a generator over an existing client. An
// empty model selects [DefaultQuizModel].
func NewGeminiQuizGenerator(client *genai.Client, model string, logger *slog.Logger) *GeminiQuizGenerator {
	if model == "" {
		model = DefaultQuizModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiQuizGenerator{client: client, model: model, logger: logger}
}

// Generate asks the model for quiz questions over the recent history.
// Malformed model output yields an empty list, not an error; only transport
// failures are reported as errors.
func (g *GeminiQuizGenerator) Generate(ctx context.Context, history []store.Message) ([]store.QuizQuestion, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(renderHistory(history)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(quizSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return nil, fmt.Errorf("events: quiz generation: %w", err)
	}
	questions := ParseQuizJSON(resp.Text())
	if len(questions) == 0 {
		g.logger.Debug("quiz generation produced no usable questions", "model", g.model)
	}
	return questions, nil
}

// GeminiJudge implements [Judge] with a YES/NO Gemini call.
type GeminiJudge struct {
	client *genai.Client
	model  string
}

var _ Judge = (*GeminiJudge)(nil)

// NewGeminiJudge creates a judge over an existing client. An empty model
// selects [DefaultQuizModel].
func NewGeminiJudge(client *genai.Client, model string) *GeminiJudge {
	if model == "" {
		model = DefaultQuizModel
	}
	return &GeminiJudge{client: client, model: model}
}

func (j *GeminiJudge) ShouldQuiz(ctx context.Context, history []store.Message) (bool, error) {
	resp, err := j.client.Models.GenerateContent(ctx, j.model,
		genai.Text(renderHistory(history)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(judgePrompt, genai.RoleUser),
		})
	if err != nil {
		return false, fmt.Errorf("events: quiz judge: %w", err)
	}
	answer := strings.ToUpper(strings.TrimSpace(resp.Text()))
	return strings.HasPrefix(answer, "YES"), nil
}

// renderHistory flattens recent messages, oldest first, into a plain
// transcript for prompting.
func renderHistory(history []store.Message) string {
	var b strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseQuizJSON parses model output into quiz questions. Markdown code
// fences are tolerated. Anything unparseable, and any question missing a
// usable shape, is dropped silently; a fully malformed payload comes back
// as an empty list.
func ParseQuizJSON(raw string) []store.QuizQuestion {
	raw = stripFences(raw)
	if raw == "" {
		return nil
	}

	var decoded []struct {
		Question     string   `json:"question"`
		Choices      []string `json:"choices"`
		CorrectIndex int      `json:"correctIndex"`
		TimeLimitSec int      `json:"timeLimitSec"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}

	var questions []store.QuizQuestion
	for _, q := range decoded {
		if strings.TrimSpace(q.Question) == "" || len(q.Choices) < 2 {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			continue
		}
		if q.TimeLimitSec <= 0 {
			q.TimeLimitSec = 20
		}
		questions = append(questions, store.QuizQuestion{
			ID:           uuid.NewString(),
			Question:     q.Question,
			Choices:      q.Choices,
			CorrectIndex: q.CorrectIndex,
			TimeLimitSec: q.TimeLimitSec,
		})
	}
	return questions
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
