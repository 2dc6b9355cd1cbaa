// internal/seeder/seeder.go
package seeder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/knowledge"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

// Indexer is the knowledge base the chunks are uploaded to.
type Indexer interface {
	AddChunks(ctx context.Context, source string, chunks []knowledge.ChunkDocument) error
	DeleteSource(ctx context.Context, source string) error
}

// ChunkStore mirrors chunks into the database for keyword search.
type ChunkStore interface {
	Upsert(chunk *models.CourseChunk) error
	DeleteBySource(source string) error
}

// CacheInvalidator drops cached retrieval results after new content lands.
type CacheInvalidator interface {
	InvalidateAllRetrieval(ctx context.Context) (int, error)
}

// Options control one seeding run.
type Options struct {
	DryRun bool
	Reset  bool
}

// Stats summarises a seeding run.
type Stats struct {
	Courses   int
	Documents int
	Chunks    int
	Uploaded  int
	Stored    int
	Failed    int
}

// Seeder loads course data and feeds it to the search backends. Any of
// index, store and cache may be nil.
type Seeder struct {
	fetcher   *Fetcher
	processor *ContentProcessor
	chunker   *Chunker
	index     Indexer
	store     ChunkStore
	cache     CacheInvalidator
	logger    *logrus.Logger
}

func NewSeeder(fetcher *Fetcher, chunker *Chunker, index Indexer, store ChunkStore, cache CacheInvalidator, logger *logrus.Logger) *Seeder {
	return &Seeder{
		fetcher:   fetcher,
		processor: NewContentProcessor(),
		chunker:   chunker,
		index:     index,
		store:     store,
		cache:     cache,
		logger:    logger,
	}
}

// Seed runs fetch, process, chunk and ingest for source.
func (s *Seeder) Seed(ctx context.Context, source string, opts Options) (*Stats, error) {
	s.logger.WithFields(logrus.Fields{
		"source":  source,
		"dry_run": opts.DryRun,
		"reset":   opts.Reset,
	}).Info("Starting content seeding process...")

	data, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	courses, err := s.processor.ParseCourses(data)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Courses: len(courses)}
	for i, course := range courses {
		docs := s.processor.ProcessCourse(course)
		chunks := s.chunker.ChunkDocuments(docs)
		stats.Documents += len(docs)
		stats.Chunks += len(chunks)

		courseSource := course.Metadata.SourceURL
		if courseSource == "" {
			courseSource = course.Course.URL
		}
		if courseSource == "" {
			courseSource = source
		}

		s.logger.WithFields(logrus.Fields{
			"course":    course.Course.Title,
			"documents": len(docs),
			"chunks":    len(chunks),
			"progress":  fmt.Sprintf("%d/%d", i+1, len(courses)),
		}).Info("Processed course")

		if opts.DryRun {
			for _, c := range chunks {
				s.logger.WithFields(logrus.Fields{
					"section_type": c.Metadata["section_type"],
					"title":        c.Metadata["title"],
					"length":       len(c.Content),
				}).Debug("DRY RUN: Would upload chunk")
			}
			continue
		}

		if err := s.ingest(ctx, courseSource, chunks, opts, stats); err != nil {
			return stats, err
		}
	}

	if !opts.DryRun && s.cache != nil && stats.Uploaded+stats.Stored > 0 {
		removed, err := s.cache.InvalidateAllRetrieval(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate retrieval cache")
		} else {
			s.logger.WithField("keys", removed).Info("Invalidated retrieval cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"courses":   stats.Courses,
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
		"uploaded":  stats.Uploaded,
		"stored":    stats.Stored,
		"failed":    stats.Failed,
	}).Info("Content seeding completed")

	return stats, nil
}

func (s *Seeder) ingest(ctx context.Context, source string, chunks []Chunk, opts Options, stats *Stats) error {
	if opts.Reset {
		if s.index != nil {
			if err := s.index.DeleteSource(ctx, source); err != nil {
				s.logger.WithError(err).WithField("source", source).Warn("Failed to reset knowledge source")
			}
		}
		if s.store != nil {
			if err := s.store.DeleteBySource(source); err != nil {
				return fmt.Errorf("failed to reset stored chunks for %s: %w", source, err)
			}
		}
	}

	if s.index != nil && len(chunks) > 0 {
		docs := make([]knowledge.ChunkDocument, len(chunks))
		for i, c := range chunks {
			docs[i] = knowledge.ChunkDocument{
				Content:  c.Content,
				FileName: chunkFileName(c),
				Metadata: c.Metadata,
			}
		}
		if err := s.index.AddChunks(ctx, source, docs); err != nil {
			return fmt.Errorf("failed to upload chunks for %s: %w", source, err)
		}
		stats.Uploaded += len(docs)
	}

	if s.store != nil {
		for _, c := range chunks {
			index, _ := strconv.Atoi(c.Metadata["chunk_index"])
			record := &models.CourseChunk{
				Source:      source,
				SectionType: c.Metadata["section_type"],
				Title:       c.Metadata["title"],
				ChunkIndex:  index,
				Content:     c.Content,
				ContentHash: utils.ContentHash(source, c.Content),
			}
			if err := s.store.Upsert(record); err != nil {
				s.logger.WithError(err).WithField("title", record.Title).Warn("Failed to store chunk")
				stats.Failed++
				continue
			}
			stats.Stored++
		}
	}
	return nil
}

func chunkFileName(c Chunk) string {
	section := c.Metadata["section_type"]
	if section == "" {
		section = "chunk"
	}
	return fmt.Sprintf("%s_%s_%s.txt", section, c.Metadata["chunk_index"], utils.MD5Hash(c.Content)[:8])
}
