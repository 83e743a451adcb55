package services

import (
	"time"

	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/models"
	"gorm.io/gorm"
)

// LedgerService 积分流水查询服务
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService 创建流水服务实例
func NewLedgerService() *LedgerService {
	return &LedgerService{db: database.DB}
}

// NewLedgerServiceWithDB 使用指定DB创建实例（测试用）
func NewLedgerServiceWithDB(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// List 分页查询用户流水（按时间倒序）
func (s *LedgerService) List(userID string, limit, offset int) ([]models.CreditTransaction, int64, error) {
	var records []models.CreditTransaction
	var total int64

	query := s.db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("list transactions", err)
	}

	if err := query.Order("create_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("list transactions", err)
	}

	return records, total, nil
}

// SumSince 统计某时间之后的流水净变动
func (s *LedgerService) SumSince(userID, creditType string, since time.Time) (int, error) {
	var sum *int
	err := s.db.Model(&models.CreditTransaction{}).
		Select("SUM(amount)").
		Where("user_id = ? AND credit_type = ? AND create_time >= ?", userID, creditType, since).
		Scan(&sum).Error
	if err != nil {
		return 0, apperrors.NewDatabaseError("sum transactions", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
