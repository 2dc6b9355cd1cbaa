package models

// GORM models

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"gorm.io/gorm"
)

// StringArray for PostgreSQL text[] columns
type StringArray []string

// Value encodes the array in Postgres text format.
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		s = StringArray{}
	}
	buf, err := pgtype.NewMap().Encode(pgtype.TextArrayOID, pgtype.TextFormatCode, []string(s), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode string array: %w", err)
	}
	return string(buf), nil
}

func (s *StringArray) Scan(value interface{}) error {
	var src []byte
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case string:
		src = []byte(v)
	case []byte:
		src = v
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}

	var out []string
	if err := pgtype.NewMap().Scan(pgtype.TextArrayOID, pgtype.TextFormatCode, src, &out); err != nil {
		return fmt.Errorf("failed to decode string array: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*s = StringArray(out)
	return nil
}

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatLog records one answered chat turn
type ChatLog struct {
	BaseModel
	SessionID      string      `json:"session_id" gorm:"index"`
	QueryText      string      `json:"query_text" gorm:"not null"`
	CleanedQuery   string      `json:"cleaned_query"`
	Answer         string      `json:"answer"`
	Citations      StringArray `json:"citations" gorm:"type:text[]"`
	IsFallback     bool        `json:"is_fallback" gorm:"default:false"`
	Success        bool        `json:"success" gorm:"default:true"`
	ErrorMessage   string      `json:"error_message"`
	ResultsCount   int         `json:"results_count" gorm:"default:0"`
	ResponseTimeMs int         `json:"response_time_ms"`
	UserAgent      string      `json:"user_agent"`
	IPAddress      string      `json:"ip_address"`

	// Associations
	Feedback []UserFeedback `json:"feedback,omitempty" gorm:"foreignKey:ChatLogID"`
}

// UserFeedback represents user feedback on an answer
type UserFeedback struct {
	BaseModel
	ChatLogID    uint   `json:"chat_log_id" gorm:"not null"`
	FeedbackType string `json:"feedback_type" gorm:"not null;check:feedback_type IN ('helpful','not_helpful','partially_helpful')"`
	FeedbackText string `json:"feedback_text"`
	SessionID    string `json:"session_id"`
}

// CourseChunk mirrors an indexed knowledge-base chunk for keyword search
type CourseChunk struct {
	BaseModel
	Source      string `json:"source" gorm:"index;not null"`
	SectionType string `json:"section_type" gorm:"index"`
	Title       string `json:"title"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content" gorm:"not null"`
	ContentHash string `json:"content_hash" gorm:"uniqueIndex"`
}

// Metadata returns the chunk's metadata in the form the retriever expects.
func (c CourseChunk) Metadata() map[string]string {
	meta := map[string]string{}
	if c.Source != "" {
		meta["source"] = c.Source
	}
	if c.SectionType != "" {
		meta["section_type"] = c.SectionType
	}
	if c.Title != "" {
		meta["title"] = c.Title
	}
	return meta
}

// PopularQuery represents frequently asked questions
type PopularQuery struct {
	BaseModel
	QueryText         string    `json:"query_text" gorm:"unique;not null"`
	SearchCount       int       `json:"search_count" gorm:"default:1"`
	AvgResultsCount   float64   `json:"avg_results_count" gorm:"type:decimal(5,2);default:0"`
	AvgResponseTimeMs int       `json:"avg_response_time_ms" gorm:"default:0"`
	LastSearched      time.Time `json:"last_searched" gorm:"default:NOW()"`
}

// SystemHealth represents service health monitoring
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// Database interfaces for repository pattern
type ChatLogRepository interface {
	Create(log *ChatLog) error
	GetByID(id uint) (*ChatLog, error)
	GetRecent(limit int) ([]ChatLog, error)
	CountFallbacks(since time.Time) (int64, error)
}

type UserFeedbackRepository interface {
	Create(feedback *UserFeedback) error
	GetByType(feedbackType string) ([]UserFeedback, error)
	GetRecentFeedback(limit int) ([]UserFeedback, error)
}

type CourseChunkRepository interface {
	Upsert(chunk *CourseChunk) error
	DeleteBySource(source string) error
	Search(ctx context.Context, query string, limit int) ([]CourseChunk, error)
}

type PopularQueryRepository interface {
	IncrementCount(queryText string) error
	GetTop(limit int) ([]PopularQuery, error)
	GetByPrefix(prefix string, limit int) ([]PopularQuery, error)
	UpdateStats(queryText string, resultsCount float64, responseTime int) error
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error
	GetUnhealthyServices() ([]SystemHealth, error)
}

// TableName methods for custom table names
func (ChatLog) TableName() string      { return "chat_logs" }
func (UserFeedback) TableName() string { return "user_feedback" }
func (CourseChunk) TableName() string  { return "course_chunks" }
func (PopularQuery) TableName() string { return "popular_queries" }
func (SystemHealth) TableName() string { return "system_health" }

// Model validation methods
func (cl *ChatLog) Validate() error {
	if strings.TrimSpace(cl.QueryText) == "" {
		return fmt.Errorf("query text is required")
	}
	if cl.ResponseTimeMs < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	return nil
}

// FeedbackTypes lists the accepted feedback types.
var FeedbackTypes = []string{"helpful", "partially_helpful", "not_helpful"}

// IsValidFeedbackType reports whether t is an accepted feedback type.
func IsValidFeedbackType(t string) bool {
	for _, v := range FeedbackTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (uf *UserFeedback) Validate() error {
	if uf.ChatLogID == 0 {
		return fmt.Errorf("chat log ID is required")
	}
	if !IsValidFeedbackType(uf.FeedbackType) {
		return fmt.Errorf("invalid feedback type: %s", uf.FeedbackType)
	}
	return nil
}

func (cc *CourseChunk) Validate() error {
	if cc.Source == "" {
		return fmt.Errorf("chunk source is required")
	}
	if strings.TrimSpace(cc.Content) == "" {
		return fmt.Errorf("chunk content is required")
	}
	return nil
}

// GORM hooks
func (cl *ChatLog) BeforeCreate(tx *gorm.DB) error {
	return cl.Validate()
}

func (uf *UserFeedback) BeforeCreate(tx *gorm.DB) error {
	return uf.Validate()
}

func (cc *CourseChunk) BeforeSave(tx *gorm.DB) error {
	return cc.Validate()
}
