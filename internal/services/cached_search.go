// internal/services/cached_search.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

// RetrievalCache is satisfied by *database.Cache.
type RetrievalCache interface {
	GetCachedRetrieval(ctx context.Context, query string, k int) ([]database.CachedChunk, error)
	CacheRetrieval(ctx context.Context, query string, k int, chunks []database.CachedChunk, expiration time.Duration) error
}

// CachedSearcher decorates a scored searcher with a read-through cache.
// Cache errors are logged and never fail a search.
type CachedSearcher struct {
	next   retrieval.ScoredSearcher
	cache  RetrievalCache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedSearcher(next retrieval.ScoredSearcher, cache RetrievalCache, ttl time.Duration, logger *logrus.Logger) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedSearcher) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]retrieval.ScoredChunk, error) {
	cached, err := s.cache.GetCachedRetrieval(ctx, query, k)
	switch {
	case err == nil:
		s.logger.WithField("query", query).Debug("Retrieval cache hit")
		return fromCached(cached), nil
	case !errors.Is(err, database.ErrCacheMiss):
		s.logger.WithError(err).Warn("Retrieval cache read failed")
	}

	chunks, err := s.next.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}

	// Empty results are not cached so newly seeded content shows up at once.
	if len(chunks) > 0 && s.ttl > 0 {
		if err := s.cache.CacheRetrieval(ctx, query, k, toCached(chunks), s.ttl); err != nil {
			s.logger.WithError(err).Warn("Failed to cache retrieval results")
		}
	}
	return chunks, nil
}

func toCached(chunks []retrieval.ScoredChunk) []database.CachedChunk {
	out := make([]database.CachedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = database.CachedChunk{
			Content:  c.Chunk.Content(),
			Score:    c.Score,
			Metadata: c.Chunk.Metadata(),
		}
	}
	return out
}

func fromCached(cached []database.CachedChunk) []retrieval.ScoredChunk {
	out := make([]retrieval.ScoredChunk, len(cached))
	for i, c := range cached {
		out[i] = retrieval.ScoredChunk{
			Chunk: retrieval.NewTextChunk(c.Content, c.Metadata),
			Score: c.Score,
		}
	}
	return out
}
