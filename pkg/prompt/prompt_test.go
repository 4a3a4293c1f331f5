package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder()
	for _, q := range []string{"I have a fever", "", "chest pain since morning\nwhat do I do?"} {
		assert.Equal(t, b.Build(q), b.Build(q))
	}
}

func TestBuildLayout(t *testing.T) {
	got := NewBuilder().Build("I have a fever")

	want := SafetyPreamble + "\n\nUser question: I have a fever\n\nHelpful answer:"
	assert.Equal(t, want, got)
}

func TestBuildKeepsQuestionLiteral(t *testing.T) {
	q := "  {{not a template}} %s %d  "
	got := NewBuilder().Build(q)
	assert.True(t, strings.Contains(got, "User question: "+q+"\n"))
}

func TestPreambleMentionsEmergencies(t *testing.T) {
	for _, kw := range []string{"chest pain", "difficulty breathing", "severe bleeding", "loss of consciousness"} {
		assert.Contains(t, SafetyPreamble, kw)
	}
}

func TestZeroValueBuilderUsesSafetyPreamble(t *testing.T) {
	var b Builder
	assert.Equal(t, NewBuilder().Build("q"), b.Build("q"))

	custom := Builder{Preamble: "Be brief."}
	assert.Equal(t, "Be brief.\n\nUser question: q\n\nHelpful answer:", custom.Build("q"))
}
