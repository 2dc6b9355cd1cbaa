package repository

import (
	"context"
	"fmt"

	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

// ChunkSearch serves course_chunks as an unscored search backend.
type ChunkSearch struct {
	chunks models.CourseChunkRepository
}

func NewChunkSearch(chunks models.CourseChunkRepository) *ChunkSearch {
	return &ChunkSearch{chunks: chunks}
}

func (s *ChunkSearch) QuerySimilar(ctx context.Context, query string, k int) ([]retrieval.Chunk, error) {
	rows, err := s.chunks.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	out := make([]retrieval.Chunk, len(rows))
	for i, row := range rows {
		out[i] = retrieval.NewTextChunk(row.Content, row.Metadata())
	}
	return out, nil
}
