package models

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	SessionID  string   `json:"session_id"`
	ChatLogID  uint     `json:"chat_log_id,omitempty"`
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	IsFallback bool     `json:"is_fallback"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

type ClearHistoryRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type HistoryTurn struct {
	Query      string `json:"query"`
	Answer     string `json:"answer"`
	Timestamp  string `json:"timestamp"`
	IsFallback bool   `json:"is_fallback"`
}

type HistoryResponse struct {
	SessionID     string        `json:"session_id"`
	Turns         []HistoryTurn `json:"turns"`
	TurnCount     int           `json:"turn_count"`
	PromptContext string        `json:"prompt_context"`
}

type FeedbackRequest struct {
	ChatLogID    uint   `json:"chat_log_id" binding:"required"`
	FeedbackType string `json:"feedback_type" binding:"required"`
	FeedbackText string `json:"feedback_text"`
	SessionID    string `json:"session_id"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type StatsResponse struct {
	RecentChats       int               `json:"recent_chats"`
	AvgResponseTimeMs int               `json:"avg_response_time_ms"`
	FallbacksLast24h  int64             `json:"fallbacks_last_24h"`
	Feedback          map[string]int    `json:"feedback"`
	RecentComments    []string          `json:"recent_comments,omitempty"`
	TopQueries        []PopularQuery    `json:"top_queries"`
	UnhealthyServices []string          `json:"unhealthy_services,omitempty"`
	Cache             map[string]string `json:"cache,omitempty"`
}
