package services

import (
	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/models"
	"gorm.io/gorm"
)

// AccessService AI助手访问策略
type AccessService struct {
	db *gorm.DB
}

// NewAccessService 创建访问策略服务实例
func NewAccessService() *AccessService {
	return &AccessService{db: database.DB}
}

// NewAccessServiceWithDB 使用指定DB创建实例（测试用）
func NewAccessServiceWithDB(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// GetAgent 获取助手信息
func (s *AccessService) GetAgent(agentID string) (*models.AgentResource, error) {
	var agent models.AgentResource
	if err := s.db.Where("agent_id = ?", agentID).First(&agent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("Agent")
		}
		return nil, apperrors.NewDatabaseError("get agent", err)
	}
	return &agent, nil
}

// HasAccess 判断用户是否可以使用指定助手
//
// 依次判定：公开助手、助手归属人、用户团队成员。
// 助手不存在返回NotFound，任何一条命中即放行。
func (s *AccessService) HasAccess(userID, agentID string) (bool, error) {
	agent, err := s.GetAgent(agentID)
	if err != nil {
		return false, err
	}

	if agent.IsPublic {
		return true, nil
	}

	if agent.OwnerID == userID {
		return true, nil
	}

	var account models.UserAccount
	if err := s.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, apperrors.NewDatabaseError("check agent access", err)
	}

	return account.InTeam(agentID), nil
}
