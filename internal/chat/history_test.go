package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistory_RejectsZeroCapacity(t *testing.T) {
	_, err := NewHistory(0)
	assert.Error(t, err)

	_, err = NewHistory(-3)
	assert.Error(t, err)

	h, err := NewHistory(1)
	require.NoError(t, err)
	assert.Equal(t, 1, h.MaxTurns())
}

func TestHistory_AddAndAccessors(t *testing.T) {
	h, err := NewHistory(5)
	require.NoError(t, err)

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	assert.True(t, h.IsEmpty())
	_, ok := h.LastTurn()
	assert.False(t, ok)

	turn := h.Add("what is the fee?", "INR 36,999", false)
	assert.Equal(t, fixed, turn.Timestamp)
	assert.Equal(t, 1, h.TurnCount())
	assert.False(t, h.IsEmpty())

	h.Add("who teaches?", "I'm sorry, I don't have that.", true)
	last, ok := h.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "who teaches?", last.Query)
	assert.True(t, last.IsFallback)
}

func TestHistory_EvictsOldest(t *testing.T) {
	const maxTurns, extra = 4, 3
	h, err := NewHistory(maxTurns)
	require.NoError(t, err)

	for i := 1; i <= maxTurns+extra; i++ {
		h.Add(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), false)
	}

	assert.Equal(t, maxTurns, h.TurnCount())
	recent := h.Recent(maxTurns)
	require.Len(t, recent, maxTurns)
	assert.Equal(t, fmt.Sprintf("q%d", extra+1), recent[0].Query)
	assert.Equal(t, fmt.Sprintf("q%d", maxTurns+extra), recent[maxTurns-1].Query)
}

func TestHistory_Recent(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		h.Add(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), false)
	}

	assert.Empty(t, h.Recent(0))
	assert.Empty(t, h.Recent(-1))
	assert.Len(t, h.Recent(100), 3)

	two := h.Recent(2)
	assert.Equal(t, "q2", two[0].Query)
	assert.Equal(t, "q3", two[1].Query)

	// The returned slice is a copy.
	two[0].Query = "changed"
	assert.Equal(t, "q2", h.Recent(2)[0].Query)
}

func TestHistory_PromptContext(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	assert.Equal(t, "", h.PromptContext(3))

	h.Add("q1", "a1", false)
	h.Add("q2", "a2", false)
	h.Add("q3", "a3", false)

	assert.Equal(t, "User: q2\nAssistant: a2\nUser: q3\nAssistant: a3", h.PromptContext(2))
}

func TestHistory_Clear(t *testing.T) {
	h, err := NewHistory(3)
	require.NoError(t, err)
	h.Add("q", "a", false)

	h.Clear()

	assert.True(t, h.IsEmpty())
	assert.Equal(t, 0, h.TurnCount())
	assert.Equal(t, "", h.PromptContext(DefaultContextTurns))
}
