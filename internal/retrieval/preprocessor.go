package retrieval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// ErrInvalidQuery is wrapped by every query validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// ValidationError describes why a query was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuery
}

func invalidQuery(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

var (
	// Prompt-injection and abuse patterns, matched case-insensitively
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\b.{0,30}\binstructions?`),
		regexp.MustCompile(`(?i)you are now`),
		regexp.MustCompile(`(?i)\bact as\b`),
		regexp.MustCompile(`(?i)disregard (the |your )?(above|system|previous)`),
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)--|;|drop table`),
	}

	whitespacePattern = regexp.MustCompile(`\s+`)
)

const (
	DefaultMinQueryLength = 3
	DefaultMaxQueryLength = 500
)

// Preprocessor turns a raw user utterance into a clean query for search.
type Preprocessor struct {
	minLength int
	maxLength int
	logger    *logrus.Logger
}

func NewPreprocessor(minLength, maxLength int, logger *logrus.Logger) *Preprocessor {
	if minLength <= 0 {
		minLength = DefaultMinQueryLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &Preprocessor{
		minLength: minLength,
		maxLength: maxLength,
		logger:    logger,
	}
}

// Preprocess validates the query and returns it trimmed, single-spaced and
// lower-cased. Rejections wrap ErrInvalidQuery.
func (p *Preprocessor) Preprocess(raw string) (string, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return "", invalidQuery("Query must not be empty.")
	}

	query = whitespacePattern.ReplaceAllString(query, " ")

	length := utf8.RuneCountInString(query)
	if length < p.minLength {
		return "", invalidQuery("Query is too short (min %d chars): '%s'", p.minLength, query)
	}
	if length > p.maxLength {
		return "", invalidQuery("Query is too long (max %d chars). Got %d chars.", p.maxLength, length)
	}

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(query) {
			p.logger.WithField("pattern", pattern.String()).Warn("Potential injection pattern detected in query")
			return "", invalidQuery("Query contains disallowed patterns. Please ask a relevant question about the course.")
		}
	}

	cleaned := strings.ToLower(query)
	p.logger.WithField("query", cleaned).Debug("Preprocessed query")
	return cleaned, nil
}
