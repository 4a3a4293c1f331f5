// Package prompt builds the instruction prompt sent to the generation engine.
package prompt

import "strings"

// SafetyPreamble constrains the assistant to plain-language, non-diagnostic
// answers and tells it to escalate emergencies.
const SafetyPreamble = "You are a safe, concise telemedicine assistant for rural clinics. " +
	"Answer in plain language, bullet where helpful. " +
	"Never give definitive diagnoses; recommend seeing a doctor for urgent or severe symptoms. " +
	"If it looks like an emergency (chest pain, difficulty breathing, severe bleeding, loss of consciousness), " +
	"advise immediate medical attention."

// Builder combines a fixed preamble with the user's English question.
// The zero value uses SafetyPreamble.
type Builder struct {
	Preamble string
}

// NewBuilder returns a Builder using SafetyPreamble.
func NewBuilder() *Builder {
	return &Builder{Preamble: SafetyPreamble}
}

// Build returns the prompt for questionEn. It is a pure function of its input.
func (b *Builder) Build(questionEn string) string {
	preamble := b.Preamble
	if preamble == "" {
		preamble = SafetyPreamble
	}

	var sb strings.Builder
	sb.Grow(len(preamble) + len(questionEn) + 40)
	sb.WriteString(preamble)
	sb.WriteString("\n\nUser question: ")
	sb.WriteString(questionEn)
	sb.WriteString("\n\nHelpful answer:")
	return sb.String()
}
