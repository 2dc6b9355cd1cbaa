package generation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

func TestPromptBuilder_NumbersBlocks(t *testing.T) {
	builder := NewPromptBuilder(DefaultPromptConfig())

	prompt, err := builder.Build("q", []string{"A", "  B  "})
	require.NoError(t, err)

	assert.True(t, prompt.HasContext)
	assert.Contains(t, prompt.UserMessage, "[Block 1]\nA")
	assert.Contains(t, prompt.UserMessage, "[Block 2]\nB")
	assert.Contains(t, prompt.UserMessage, "[Block 1]\nA\n\n[Block 2]\nB")
	assert.True(t, strings.HasSuffix(prompt.UserMessage, "USER QUESTION: q"))
	assert.Equal(t, DefaultSystemPrompt, prompt.SystemPrompt)
}

func TestPromptBuilder_NoContext(t *testing.T) {
	builder := NewPromptBuilder(DefaultPromptConfig())

	for _, blocks := range [][]string{nil, {}} {
		prompt, err := builder.Build("what is the fee?", blocks)
		require.NoError(t, err)
		assert.False(t, prompt.HasContext)
		assert.Contains(t, prompt.UserMessage, "No relevant context")
		assert.Contains(t, prompt.UserMessage, "USER QUESTION: what is the fee?")
		assert.NotContains(t, prompt.UserMessage, "[Block")
	}
}

func TestPromptBuilder_EmptyQuery(t *testing.T) {
	builder := NewPromptBuilder(DefaultPromptConfig())

	_, err := builder.Build("   ", []string{"A"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, retrieval.ErrInvalidQuery))
}

func TestPromptBuilder_Truncates(t *testing.T) {
	builder := NewPromptBuilder(PromptConfig{MaxContextChars: 50})

	prompt, err := builder.Build("q", []string{strings.Repeat("x", 10000)})
	require.NoError(t, err)

	assert.Contains(t, prompt.UserMessage, "[truncated]")

	context := builder.formatContext([]string{strings.Repeat("x", 10000)})
	assert.LessOrEqual(t, len(context), 50+len(TruncationMarker))
	assert.True(t, strings.HasSuffix(context, TruncationMarker))
}

func TestPromptBuilder_TruncationDisabled(t *testing.T) {
	builder := NewPromptBuilder(PromptConfig{MaxContextChars: 0})

	long := strings.Repeat("y", 10000)
	prompt, err := builder.Build("q", []string{long})
	require.NoError(t, err)

	assert.NotContains(t, prompt.UserMessage, "[truncated]")
	assert.Contains(t, prompt.UserMessage, long)
}

func TestPromptBuilder_TruncatesAfterJoining(t *testing.T) {
	builder := NewPromptBuilder(PromptConfig{MaxContextChars: 30})

	context := builder.formatContext([]string{"first block", "second block"})
	// "[Block 1]\nfirst block\n\n[Block 2]" is 33 characters long.
	assert.Equal(t, "[Block 1]\nfirst block\n\n[Block "+TruncationMarker, context)
}

func TestPromptBuilder_SystemPromptOverride(t *testing.T) {
	builder := NewPromptBuilder(PromptConfig{SystemPrompt: "Answer briefly."})

	prompt, err := builder.Build("q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Answer briefly.", prompt.SystemPrompt)
	assert.Equal(t, "Answer briefly.\n\n"+prompt.UserMessage, prompt.SingleString("\n\n"))
}
