// Package persona holds the system instructions selectable per session.
package persona

import "strings"

// Persona is a named system instruction for the conversation model.
type Persona struct {
	ID          string
	Name        string
	Instruction string
}

// DefaultID is the persona used when the client names none, or an unknown
// one.
const DefaultID = "companion"

const voiceStyleSuffix = " You are speaking out loud, so answer naturally and briefly, the way a person talks."

var builtin = map[string]Persona{
	"companion": {
		ID:   "companion",
		Name: "Companion",
		Instruction: "You are a warm, friendly conversation companion. " +
			"Chat with the user about whatever is on their mind, ask small follow-up " +
			"questions, and keep your answers short and casual." + voiceStyleSuffix,
	},
	"tutor": {
		ID:   "tutor",
		Name: "Tutor",
		Instruction: "You are a patient tutor. Explain topics the user brings up in " +
			"simple terms, check their understanding, and gently correct mistakes. " +
			"Keep each answer focused on one idea." + voiceStyleSuffix,
	},
	"quizmaster": {
		ID:   "quizmaster",
		Name: "Quiz Master",
		Instruction: "You are a playful quiz-show host. Talk with the user about " +
			"their interests, and weave in trivia and little challenges related to " +
			"what was just discussed. Keep the energy up and the answers short." + voiceStyleSuffix,
	},
}

// Lookup returns the persona for id, falling back to the default for an
// empty or unknown id.
func Lookup(id string) Persona {
	if p, ok := builtin[strings.TrimSpace(id)]; ok {
		return p
	}
	return builtin[DefaultID]
}

// IDs returns the identifiers of all built-in personas.
func IDs() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	return ids
}
