package services

import (
	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/models"
	"gorm.io/gorm"
)

// GenerationService 生成任务记录存取
type GenerationService struct {
	db *gorm.DB
}

// NewGenerationService 创建生成记录服务实例
func NewGenerationService() *GenerationService {
	return &GenerationService{db: database.DB}
}

// NewGenerationServiceWithDB 使用指定DB创建实例（测试用）
func NewGenerationServiceWithDB(db *gorm.DB) *GenerationService {
	return &GenerationService{db: db}
}

// Save 保存生成记录
func (s *GenerationService) Save(record *models.GenerationRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return apperrors.NewDatabaseError("save generation record", err)
	}
	return nil
}

// Get 按请求ID获取记录（校验归属）
func (s *GenerationService) Get(requestID, userID string) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	err := s.db.Where("request_id = ? AND user_id = ?", requestID, userID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("Generation request")
		}
		return nil, apperrors.NewDatabaseError("get generation record", err)
	}
	return &record, nil
}

// ListByUser 分页查询用户生成记录
func (s *GenerationService) ListByUser(userID string, limit, offset int) ([]models.GenerationRecord, int64, error) {
	var records []models.GenerationRecord
	var total int64

	query := s.db.Model(&models.GenerationRecord{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("list generation records", err)
	}

	if err := query.Order("create_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("list generation records", err)
	}

	return records, total, nil
}
