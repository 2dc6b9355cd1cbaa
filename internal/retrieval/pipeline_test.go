package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_RejectedQuery(t *testing.T) {
	backend := &fakeScored{results: []ScoredChunk{scored("A", 0.9, nil)}}
	p := NewPipeline(ScoredBackend(backend), DefaultPipelineConfig(), testLogger())

	out := p.Run(context.Background(), "")
	assert.False(t, out.Success())
	assert.NotEmpty(t, out.Error)
	assert.Empty(t, out.CleanedQuery)
	assert.Empty(t, out.Results)
	assert.Equal(t, 0, backend.calls)
}

func TestPipeline_NoResults(t *testing.T) {
	p := NewPipeline(ScoredBackend(&fakeScored{}), DefaultPipelineConfig(), testLogger())

	out := p.Run(context.Background(), "Who teaches the course?")
	assert.False(t, out.Success())
	assert.Equal(t, "", out.ContextString)
	assert.Equal(t, NoResultsMessage, out.Error)
	assert.Equal(t, "who teaches the course?", out.CleanedQuery)
}

func TestPipeline_JoinsWithSeparator(t *testing.T) {
	backend := &fakeScored{results: []ScoredChunk{
		scored("Fee is INR 36,999", 0.9, map[string]string{"section_type": "pricing"}),
		scored("Duration is 16 weeks", 0.8, map[string]string{"section_type": "overview"}),
	}}
	config := DefaultPipelineConfig()
	config.ContextSeparator = "|||"
	p := NewPipeline(ScoredBackend(backend), config, testLogger())

	out := p.Run(context.Background(), "  What is the FEE? ")
	require.True(t, out.Success())
	assert.Equal(t, "Fee is INR 36,999|||Duration is 16 weeks", out.ContextString)
	assert.Equal(t, "|||", out.Separator)
	assert.Equal(t, "  What is the FEE? ", out.OriginalQuery)
	assert.Equal(t, "what is the fee?", out.CleanedQuery)
	assert.Equal(t, []map[string]string{
		{"section_type": "pricing"},
		{"section_type": "overview"},
	}, out.Metadata())
}

func TestPipeline_DefaultSeparator(t *testing.T) {
	p := NewPipeline(ScoredBackend(&fakeScored{}), PipelineConfig{}, testLogger())
	assert.Equal(t, DefaultContextSeparator, p.Separator())
}
