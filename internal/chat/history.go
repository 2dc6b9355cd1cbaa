package chat

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxTurns      = 20
	DefaultContextTurns  = 3
	DefaultHistoryLength = 10
)

// Turn is one question and the answer delivered for it.
type Turn struct {
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	IsFallback bool      `json:"is_fallback"`
}

// History is a rolling window of the most recent turns, oldest first.
// It is owned by a single session and is not safe for concurrent use.
type History struct {
	maxTurns int
	turns    []Turn
	now      func() time.Time
}

func NewHistory(maxTurns int) (*History, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be at least 1, got %d", maxTurns)
	}
	return &History{
		maxTurns: maxTurns,
		turns:    make([]Turn, 0, maxTurns),
		now:      time.Now,
	}, nil
}

func (h *History) MaxTurns() int {
	return h.maxTurns
}

// Add records a turn, evicting the oldest ones beyond capacity.
func (h *History) Add(query, answer string, isFallback bool) Turn {
	turn := Turn{
		Query:      query,
		Answer:     answer,
		Timestamp:  h.now(),
		IsFallback: isFallback,
	}
	h.turns = append(h.turns, turn)

	if overflow := len(h.turns) - h.maxTurns; overflow > 0 {
		kept := make([]Turn, h.maxTurns)
		copy(kept, h.turns[overflow:])
		h.turns = kept
	}
	return turn
}

// Recent returns up to n of the latest turns, oldest first.
func (h *History) Recent(n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

// PromptContext renders the last n turns as User/Assistant lines.
func (h *History) PromptContext(n int) string {
	turns := h.Recent(n)
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, "User: "+t.Query, "Assistant: "+t.Answer)
	}
	return strings.Join(lines, "\n")
}

func (h *History) Clear() {
	h.turns = make([]Turn, 0, h.maxTurns)
}

func (h *History) TurnCount() int {
	return len(h.turns)
}

func (h *History) IsEmpty() bool {
	return len(h.turns) == 0
}

// LastTurn returns the newest turn, or false when empty.
func (h *History) LastTurn() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}
