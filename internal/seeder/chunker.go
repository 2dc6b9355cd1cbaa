package seeder

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100

	// Chunks of this many characters or fewer are dropped as noise.
	minChunkChars = 10
)

var defaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Chunk is a piece of a Document small enough to index on its own.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Chunker splits documents recursively on paragraph, line, sentence and
// word boundaries so that every chunk fits in size characters, with up to
// overlap characters shared between neighbours.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

// ChunkDocuments splits every document and tags each chunk with its
// document metadata plus chunk_index.
func (ch *Chunker) ChunkDocuments(docs []Document) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		index := 0
		for _, piece := range ch.SplitText(doc.Content) {
			if utf8.RuneCountInString(strings.TrimSpace(piece)) <= minChunkChars {
				continue
			}
			meta := make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk_index"] = strconv.Itoa(index)
			chunks = append(chunks, Chunk{Content: piece, Metadata: meta})
			index++
		}
	}
	return chunks
}

// SplitText splits text into chunks of at most size characters.
func (ch *Chunker) SplitText(text string) []string {
	return ch.split(text, ch.separators)
}

func (ch *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	// Separators stay attached to the start of the following piece, so
	// merged chunks are joined back without one.
	var splits []string
	if separator == "" {
		splits = splitRunes(text)
	} else {
		splits = splitKeep(text, separator)
	}

	var (
		final []string
		good  []string
	)
	for _, s := range splits {
		if s == "" {
			continue
		}
		if length(s) < ch.size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, ch.merge(good, "")...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, ch.split(s, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, ch.merge(good, "")...)
	}
	return final
}

// merge greedily packs splits into chunks, carrying a tail of up to
// overlap characters into the next chunk.
func (ch *Chunker) merge(splits []string, separator string) []string {
	sepLen := length(separator)

	var (
		docs    []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, s := range splits {
		l := length(s)
		if total+l+joinLen() > ch.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > ch.overlap || (total+l+joinLen() > ch.size && total > 0)) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += l + joinLen()
		current = append(current, s)
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func splitKeep(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := 1; i < len(parts); i++ {
		parts[i] = sep + parts[i]
	}
	return parts
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
