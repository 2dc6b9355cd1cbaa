package retrieval

import "context"

// Chunk is a unit of indexed text returned by a search backend.
type Chunk interface {
	Content() string
	Metadata() map[string]string
}

// TextChunk is the plain Chunk implementation used by the backends in this module.
type TextChunk struct {
	Text string            `json:"content"`
	Meta map[string]string `json:"metadata,omitempty"`
}

func NewTextChunk(text string, meta map[string]string) TextChunk {
	return TextChunk{Text: text, Meta: meta}
}

func (c TextChunk) Content() string { return c.Text }

func (c TextChunk) Metadata() map[string]string { return c.Meta }

// ScoredChunk pairs a chunk with its similarity score in [0, 1].
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// ScoredSearcher returns (chunk, similarity) pairs ordered best-first.
type ScoredSearcher interface {
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredChunk, error)
}

// UnscoredSearcher returns chunks ordered best-first without scores.
type UnscoredSearcher interface {
	QuerySimilar(ctx context.Context, query string, k int) ([]Chunk, error)
}

// Capability is the search mode a backend declares.
type Capability int

const (
	CapabilityScored Capability = iota
	CapabilityUnscored
)

func (c Capability) String() string {
	switch c {
	case CapabilityScored:
		return "scored"
	case CapabilityUnscored:
		return "unscored"
	default:
		return "unknown"
	}
}

// Backend is a search service together with its declared capability.
// Build one with ScoredBackend or UnscoredBackend.
type Backend struct {
	capability Capability
	scored     ScoredSearcher
	unscored   UnscoredSearcher
}

func ScoredBackend(s ScoredSearcher) Backend {
	return Backend{capability: CapabilityScored, scored: s}
}

func UnscoredBackend(s UnscoredSearcher) Backend {
	return Backend{capability: CapabilityUnscored, unscored: s}
}

func (b Backend) Capability() Capability {
	return b.capability
}

// search runs the backend's declared mode. Unscored results carry a nil score.
func (b Backend) search(ctx context.Context, query string, k int) ([]Chunk, []*float64, error) {
	switch b.capability {
	case CapabilityScored:
		if b.scored == nil {
			return nil, nil, errNoBackend
		}
		raw, err := b.scored.SimilaritySearchWithScore(ctx, query, k)
		if err != nil {
			return nil, nil, err
		}
		chunks := make([]Chunk, len(raw))
		scores := make([]*float64, len(raw))
		for i := range raw {
			score := raw[i].Score
			chunks[i] = raw[i].Chunk
			scores[i] = &score
		}
		return chunks, scores, nil
	case CapabilityUnscored:
		if b.unscored == nil {
			return nil, nil, errNoBackend
		}
		chunks, err := b.unscored.QuerySimilar(ctx, query, k)
		if err != nil {
			return nil, nil, err
		}
		return chunks, make([]*float64, len(chunks)), nil
	default:
		return nil, nil, errNoBackend
	}
}
