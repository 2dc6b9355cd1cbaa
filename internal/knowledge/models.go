package knowledge

// Request models
type AddRequest struct {
	Documents []Document        `json:"documents"`
	Source    string            `json:"source,omitempty"`
	Scope     string            `json:"scope,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Document struct {
	Content  string            `json:"content"`
	FileName string            `json:"fileName,omitempty"`
	FileType string            `json:"fileType,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SearchRequest struct {
	Query                      string  `json:"query"`
	Limit                      int     `json:"limit,omitempty"`
	SimilarityThreshold        float64 `json:"similarity_threshold"`
	MinimumSimilarityThreshold float64 `json:"minimum_similarity_threshold"`
	Scope                      string  `json:"scope,omitempty"`
}

type DeleteRequest struct {
	Source string `json:"source,omitempty"`
	ByDoc  bool   `json:"by_doc,omitempty"`
}

// Response models
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type SearchResult struct {
	ContextID   string            `json:"contextId"`
	ContextData string            `json:"contextData"`
	Score       float64           `json:"score"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
