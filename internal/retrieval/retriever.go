package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var errNoBackend = errors.New("no search backend configured")

const (
	DefaultTopK             = 5
	DefaultContextSeparator = "\n\n---\n\n"
)

// Result is one retrieved chunk. Rank is its 1-based position in the
// backend's ordering, so ranks may skip values when the threshold drops results.
type Result struct {
	Content  string            `json:"content"`
	Score    *float64          `json:"score,omitempty"`
	Metadata map[string]string `json:"metadata"`
	Rank     int               `json:"rank"`
}

// RetrieverConfig configures a Retriever. A nil RelevanceThreshold disables filtering.
type RetrieverConfig struct {
	TopK               int
	RelevanceThreshold *float64
}

type Retriever struct {
	backend   Backend
	topK      int
	threshold *float64
	logger    *logrus.Logger
}

func NewRetriever(backend Backend, config RetrieverConfig, logger *logrus.Logger) *Retriever {
	topK := config.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		backend:   backend,
		topK:      topK,
		threshold: config.RelevanceThreshold,
		logger:    logger,
	}
}

// Retrieve searches the backend for chunks relevant to query. Backend
// failures are logged and yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string) []Result {
	if strings.TrimSpace(query) == "" {
		r.logger.Warn("Retriever received an empty query")
		return []Result{}
	}

	r.logger.WithFields(logrus.Fields{
		"query":      query,
		"top_k":      r.topK,
		"capability": r.backend.Capability().String(),
	}).Info("Retrieving context")

	chunks, scores, err := r.safeSearch(ctx, query)
	if err != nil {
		r.logger.WithError(err).Error("Vector store search failed")
		return []Result{}
	}

	results := make([]Result, 0, len(chunks))
	for i, chunk := range chunks {
		rank := i + 1
		score := scores[i]

		if score != nil && r.threshold != nil && *score < *r.threshold {
			r.logger.WithFields(logrus.Fields{
				"rank":      rank,
				"score":     *score,
				"threshold": *r.threshold,
			}).Debug("Result dropped below relevance threshold")
			continue
		}

		var content string
		var meta map[string]string
		if chunk != nil {
			content = chunk.Content()
			meta = copyMetadata(chunk.Metadata())
		}

		results = append(results, Result{
			Content:  content,
			Score:    score,
			Metadata: meta,
			Rank:     rank,
		})
	}

	r.logger.WithField("results", len(results)).Info("Retrieval completed")
	return results
}

// ContextString retrieves for query and joins the result contents with separator.
func (r *Retriever) ContextString(ctx context.Context, query, separator string) string {
	results := r.Retrieve(ctx, query)
	if len(results) == 0 {
		return ""
	}
	return joinContents(results, separator)
}

// safeSearch keeps a panicking backend from taking the request down with it.
func (r *Retriever) safeSearch(ctx context.Context, query string) (chunks []Chunk, scores []*float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("search backend panic: %v", rec)
		}
	}()
	return r.backend.search(ctx, query, r.topK)
}

func joinContents(results []Result, separator string) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	return strings.Join(parts, separator)
}

func copyMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
