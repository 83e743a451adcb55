package services

import (
	"time"

	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/models"
	"gorm.io/gorm"
)

// UsageService 当月用量统计
type UsageService struct {
	db  *gorm.DB
	now func() time.Time
}

// UsageStats 用量统计结果
type UsageStats struct {
	UserID           string    `json:"user_id"`
	PeriodStart      time.Time `json:"period_start"`
	ChatCreditsUsed  int       `json:"chat_credits_used"`
	GenAICreditsUsed int       `json:"genai_credits_used"`
	TotalTokens      int       `json:"total_tokens"`
	Interactions     int       `json:"interactions"`
}

// NewUsageService 创建用量统计服务实例
func NewUsageService() *UsageService {
	return &UsageService{db: database.DB, now: time.Now}
}

// NewUsageServiceWithDB 使用指定DB创建实例（测试用）
func NewUsageServiceWithDB(db *gorm.DB, now func() time.Time) *UsageService {
	return &UsageService{db: db, now: now}
}

// Stats 汇总自然月内的扣减流水
func (s *UsageService) Stats(userID string) (*UsageStats, error) {
	now := s.now()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var rows []models.CreditTransaction
	err := s.db.Where("user_id = ? AND kind = ? AND create_time >= ?",
		userID, models.TransactionKindDeduct, periodStart).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("usage stats", err)
	}

	stats := &UsageStats{
		UserID:      userID,
		PeriodStart: periodStart,
	}

	for _, row := range rows {
		used := -row.Amount // 扣减流水金额为负
		switch row.CreditType {
		case models.CreditTypeChat:
			stats.ChatCreditsUsed += used
		case models.CreditTypeGenAI:
			stats.GenAICreditsUsed += used
		}
		stats.TotalTokens += row.TokensUsed
		stats.Interactions++
	}

	return stats, nil
}
