package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ayash-Bera/coursebot/internal/models"
)

// ChatLogRepositoryImpl implements ChatLogRepository
type ChatLogRepositoryImpl struct {
	db *gorm.DB
}

func NewChatLogRepository(db *gorm.DB) models.ChatLogRepository {
	return &ChatLogRepositoryImpl{db: db}
}

func (r *ChatLogRepositoryImpl) Create(log *models.ChatLog) error {
	return r.db.Create(log).Error
}

func (r *ChatLogRepositoryImpl) GetByID(id uint) (*models.ChatLog, error) {
	var log models.ChatLog
	err := r.db.Preload("Feedback").First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *ChatLogRepositoryImpl) GetRecent(limit int) ([]models.ChatLog, error) {
	var logs []models.ChatLog
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *ChatLogRepositoryImpl) CountFallbacks(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatLog{}).
		Where("is_fallback = ? AND created_at >= ?", true, since).
		Count(&count).Error
	return count, err
}

// UserFeedbackRepositoryImpl implements UserFeedbackRepository
type UserFeedbackRepositoryImpl struct {
	db *gorm.DB
}

func NewUserFeedbackRepository(db *gorm.DB) models.UserFeedbackRepository {
	return &UserFeedbackRepositoryImpl{db: db}
}

func (r *UserFeedbackRepositoryImpl) Create(feedback *models.UserFeedback) error {
	return r.db.Create(feedback).Error
}

func (r *UserFeedbackRepositoryImpl) GetByType(feedbackType string) ([]models.UserFeedback, error) {
	var feedback []models.UserFeedback
	err := r.db.Where("feedback_type = ?", feedbackType).
		Order("created_at DESC").
		Find(&feedback).Error
	return feedback, err
}

func (r *UserFeedbackRepositoryImpl) GetRecentFeedback(limit int) ([]models.UserFeedback, error) {
	var feedback []models.UserFeedback
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&feedback).Error
	return feedback, err
}

// CourseChunkRepositoryImpl implements CourseChunkRepository
type CourseChunkRepositoryImpl struct {
	db *gorm.DB
}

func NewCourseChunkRepository(db *gorm.DB) models.CourseChunkRepository {
	return &CourseChunkRepositoryImpl{db: db}
}

// Upsert inserts the chunk or refreshes the row with the same content hash.
func (r *CourseChunkRepositoryImpl) Upsert(chunk *models.CourseChunk) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "section_type", "title", "chunk_index", "updated_at"}),
	}).Create(chunk).Error
}

func (r *CourseChunkRepositoryImpl) DeleteBySource(source string) error {
	return r.db.Where("source = ?", source).Delete(&models.CourseChunk{}).Error
}

// Search runs a Postgres full text query, best matches first.
func (r *CourseChunkRepositoryImpl) Search(ctx context.Context, query string, limit int) ([]models.CourseChunk, error) {
	var chunks []models.CourseChunk
	err := r.db.WithContext(ctx).Raw(`
		SELECT *
		FROM course_chunks
		WHERE to_tsvector('english', content) @@ plainto_tsquery('english', ?)
		ORDER BY ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) DESC, id
		LIMIT ?
	`, query, query, limit).Scan(&chunks).Error
	return chunks, err
}

// PopularQueryRepositoryImpl implements PopularQueryRepository
type PopularQueryRepositoryImpl struct {
	db *gorm.DB
}

func NewPopularQueryRepository(db *gorm.DB) models.PopularQueryRepository {
	return &PopularQueryRepositoryImpl{db: db}
}

func (r *PopularQueryRepositoryImpl) IncrementCount(queryText string) error {
	return r.db.Exec(`
		INSERT INTO popular_queries (query_text, search_count, last_searched, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW(), NOW())
		ON CONFLICT (query_text)
		DO UPDATE SET
			search_count = popular_queries.search_count + 1,
			last_searched = NOW(),
			updated_at = NOW()
	`, queryText).Error
}

func (r *PopularQueryRepositoryImpl) GetTop(limit int) ([]models.PopularQuery, error) {
	var queries []models.PopularQuery
	err := r.db.Order("search_count DESC").
		Limit(limit).
		Find(&queries).Error
	return queries, err
}

func (r *PopularQueryRepositoryImpl) GetByPrefix(prefix string, limit int) ([]models.PopularQuery, error) {
	var queries []models.PopularQuery
	err := r.db.Where("query_text LIKE ?", escapeLike(prefix)+"%").
		Order("search_count DESC").
		Limit(limit).
		Find(&queries).Error
	return queries, err
}

func (r *PopularQueryRepositoryImpl) UpdateStats(queryText string, resultsCount float64, responseTime int) error {
	return r.db.Exec(`
		UPDATE popular_queries
		SET
			avg_results_count = (avg_results_count * (search_count - 1) + ?) / search_count,
			avg_response_time_ms = (avg_response_time_ms * (search_count - 1) + ?) / search_count,
			updated_at = NOW()
		WHERE query_text = ?
	`, resultsCount, responseTime, queryText).Error
}

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.Create(&models.SystemHealth{
		ServiceName:    serviceName,
		Status:         status,
		ResponseTimeMs: responseTime,
		ErrorMessage:   errorMsg,
		CheckedAt:      time.Now(),
	}).Error
}

func (r *SystemHealthRepositoryImpl) GetUnhealthyServices() ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	err := r.db.Raw(`
		SELECT DISTINCT ON (service_name) *
		FROM system_health
		WHERE status != 'healthy'
		ORDER BY service_name, checked_at DESC
	`).Scan(&health).Error
	return health, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	ChatLog      models.ChatLogRepository
	UserFeedback models.UserFeedbackRepository
	CourseChunk  models.CourseChunkRepository
	PopularQuery models.PopularQueryRepository
	SystemHealth models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		ChatLog:      NewChatLogRepository(db),
		UserFeedback: NewUserFeedbackRepository(db),
		CourseChunk:  NewCourseChunkRepository(db),
		PopularQuery: NewPopularQueryRepository(db),
		SystemHealth: NewSystemHealthRepository(db),
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
