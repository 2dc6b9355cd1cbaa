package retrieval

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NoResultsMessage is reported when a valid query matched nothing.
const NoResultsMessage = "No relevant information found for your query. " +
	"Please try rephrasing or ask something about the course."

// PipelineOutput is the result of one Pipeline.Run call.
type PipelineOutput struct {
	OriginalQuery string   `json:"original_query"`
	CleanedQuery  string   `json:"cleaned_query"`
	Results       []Result `json:"results"`
	ContextString string   `json:"context_string"`
	Error         string   `json:"error,omitempty"`
	// Separator used to build ContextString.
	Separator string `json:"-"`
}

// Success reports whether the run produced results without error.
func (o PipelineOutput) Success() bool {
	return o.Error == "" && len(o.Results) > 0
}

// Metadata returns the metadata of every result, in rank order.
func (o PipelineOutput) Metadata() []map[string]string {
	out := make([]map[string]string, len(o.Results))
	for i, res := range o.Results {
		out[i] = res.Metadata
	}
	return out
}

type PipelineConfig struct {
	TopK               int
	RelevanceThreshold *float64
	ContextSeparator   string
	MinQueryLength     int
	MaxQueryLength     int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TopK:             DefaultTopK,
		ContextSeparator: DefaultContextSeparator,
		MinQueryLength:   DefaultMinQueryLength,
		MaxQueryLength:   DefaultMaxQueryLength,
	}
}

// Pipeline composes the preprocessor and the retriever.
type Pipeline struct {
	preprocessor *Preprocessor
	retriever    *Retriever
	separator    string
	logger       *logrus.Logger
}

func NewPipeline(backend Backend, config PipelineConfig, logger *logrus.Logger) *Pipeline {
	separator := config.ContextSeparator
	if separator == "" {
		separator = DefaultContextSeparator
	}
	return &Pipeline{
		preprocessor: NewPreprocessor(config.MinQueryLength, config.MaxQueryLength, logger),
		retriever: NewRetriever(backend, RetrieverConfig{
			TopK:               config.TopK,
			RelevanceThreshold: config.RelevanceThreshold,
		}, logger),
		separator: separator,
		logger:    logger,
	}
}

// Separator returns the string used to join context blocks.
func (p *Pipeline) Separator() string {
	return p.separator
}

// Run preprocesses rawQuery, retrieves context and bundles the outcome.
func (p *Pipeline) Run(ctx context.Context, rawQuery string) PipelineOutput {
	output := PipelineOutput{
		OriginalQuery: rawQuery,
		Results:       []Result{},
		Separator:     p.separator,
	}

	cleaned, err := p.preprocessor.Preprocess(rawQuery)
	if err != nil {
		output.Error = err.Error()
		p.logger.WithError(err).Warn("Query rejected by preprocessor")
		return output
	}
	output.CleanedQuery = cleaned

	output.Results = p.retriever.Retrieve(ctx, cleaned)

	if len(output.Results) > 0 {
		output.ContextString = joinContents(output.Results, p.separator)
	} else {
		output.Error = NoResultsMessage
		p.logger.WithField("query", cleaned).Info("Pipeline produced zero results")
	}

	return output
}
