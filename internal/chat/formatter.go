package chat

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultHomepageURL    = "https://nextleap.app"
	DefaultCitationPrefix = "\n\n📚 **Sources:** "
	EmptyAnswerMessage    = "I'm sorry, I couldn't generate a response. Please try again."
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// FormattedResponse is a cleaned answer ready for display.
type FormattedResponse struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	IsFallback bool     `json:"is_fallback"`
	RawAnswer  string   `json:"-"`
}

func (r FormattedResponse) HasCitations() bool {
	return len(r.Citations) > 0
}

type FormatterConfig struct {
	IncludeCitations bool
	CitationPrefix   string
	HomepageURL      string
}

func DefaultFormatterConfig() FormatterConfig {
	return FormatterConfig{
		IncludeCitations: true,
		CitationPrefix:   DefaultCitationPrefix,
		HomepageURL:      DefaultHomepageURL,
	}
}

// Formatter cleans generated text, detects fallback answers and
// appends source citations.
type Formatter struct {
	includeCitations bool
	citationPrefix   string
	fallbackPhrases  []string
}

func NewFormatter(config FormatterConfig) *Formatter {
	prefix := config.CitationPrefix
	if prefix == "" {
		prefix = DefaultCitationPrefix
	}
	homepage := strings.TrimRight(config.HomepageURL, "/")
	if homepage == "" {
		homepage = DefaultHomepageURL
	}

	return &Formatter{
		includeCitations: config.IncludeCitations,
		citationPrefix:   prefix,
		fallbackPhrases: []string{
			"i'm sorry, i don't have",
			"i don't have specific information",
			"please visit " + strings.ToLower(homepage),
			"no relevant context was found",
			"i cannot answer",
			"not enough information",
		},
	}
}

// Format turns a raw model answer into a FormattedResponse. metadata is
// the retrieved chunks' metadata in rank order.
func (f *Formatter) Format(rawAnswer string, metadata []map[string]string) FormattedResponse {
	if strings.TrimSpace(rawAnswer) == "" {
		return FormattedResponse{
			Answer:     EmptyAnswerMessage,
			Citations:  []string{},
			IsFallback: true,
			RawAnswer:  rawAnswer,
		}
	}

	cleaned := strings.TrimSpace(excessNewlines.ReplaceAllString(rawAnswer, "\n\n"))
	isFallback := f.IsFallback(cleaned)
	citations := f.Citations(metadata)

	answer := cleaned
	if f.includeCitations && len(citations) > 0 && !isFallback {
		answer = cleaned + f.citationPrefix + strings.Join(citations, ", ")
	}

	return FormattedResponse{
		Answer:     answer,
		Citations:  citations,
		IsFallback: isFallback,
		RawAnswer:  rawAnswer,
	}
}

// IsFallback reports whether text admits the assistant has no information.
func (f *Formatter) IsFallback(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range f.fallbackPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Citations derives unique, human-readable labels from chunk metadata,
// preserving first-seen order.
func (f *Formatter) Citations(metadata []map[string]string) []string {
	seen := make(map[string]struct{})
	citations := []string{}

	for _, meta := range metadata {
		label := f.label(meta)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		citations = append(citations, label)
	}
	return citations
}

func (f *Formatter) label(meta map[string]string) string {
	if section := meta["section_type"]; section != "" {
		// A Caser keeps state, so one is built per call.
		return cases.Title(language.English).String(strings.ReplaceAll(section, "_", " "))
	}

	source := meta["source"]
	if source == "" {
		return ""
	}
	trimmed := strings.TrimRight(source, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return source
	}
	return trimmed
}
