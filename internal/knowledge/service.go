package knowledge

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

const DefaultScope = "internal"

// ChunkDocument is one indexed chunk with its metadata.
type ChunkDocument struct {
	Content  string
	FileName string
	Metadata map[string]string
}

// Service exposes the knowledge base as a scored search backend and
// as an ingestion target.
type Service struct {
	client *Client
	scope  string
	logger *logrus.Logger
}

func NewService(client *Client, scope string, logger *logrus.Logger) *Service {
	if scope == "" {
		scope = DefaultScope
	}
	return &Service{
		client: client,
		scope:  scope,
		logger: logger,
	}
}

// SimilaritySearchWithScore returns at most k chunks, best first, with
// scores clamped to [0, 1].
func (s *Service) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]retrieval.ScoredChunk, error) {
	req := SearchRequest{
		Query:                      query,
		Limit:                      k,
		SimilarityThreshold:        0.8,
		MinimumSimilarityThreshold: 0.0,
		Scope:                      s.scope,
	}

	response, err := s.client.SearchWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	results := response.Results
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	chunks := make([]retrieval.ScoredChunk, 0, len(results))
	for _, r := range results {
		meta := r.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		chunks = append(chunks, retrieval.ScoredChunk{
			Chunk: retrieval.NewTextChunk(r.ContextData, meta),
			Score: clamp(r.Score),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"query":   query,
		"k":       k,
		"results": len(chunks),
	}).Debug("Knowledge search completed")

	return chunks, nil
}

// AddChunks uploads chunks belonging to source.
func (s *Service) AddChunks(ctx context.Context, source string, chunks []ChunkDocument) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = Document{
			Content:  chunk.Content,
			FileName: chunk.FileName,
			FileType: "text/plain",
			Metadata: chunk.Metadata,
		}
	}

	req := AddRequest{
		Documents: docs,
		Source:    source,
		Scope:     s.scope,
	}
	if err := s.client.AddWithRetry(ctx, req); err != nil {
		return fmt.Errorf("failed to add %d chunks for %s: %w", len(chunks), source, err)
	}

	s.logger.WithFields(logrus.Fields{
		"source": source,
		"chunks": len(chunks),
	}).Info("Uploaded chunks to knowledge service")
	return nil
}

// DeleteSource removes every document previously added for source.
func (s *Service) DeleteSource(ctx context.Context, source string) error {
	return s.client.Delete(ctx, DeleteRequest{Source: source, ByDoc: true})
}

// Ping checks that the service is reachable and healthy.
func (s *Service) Ping(ctx context.Context) error {
	resp, err := s.client.Health(ctx)
	if err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "ok" && resp.Status != "healthy" {
		return fmt.Errorf("knowledge service reported status %q", resp.Status)
	}
	return nil
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
