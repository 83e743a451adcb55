package services

import (
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/middleware"
	"github.com/aihub/ai-gateway/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// resetCoordinator 跨实例的重置协调：分布式锁与账户缓存失效
type resetCoordinator interface {
	AcquireLock(lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(lockKey string) error
	InvalidateAccount(userID string) error
}

// ResetService 周期性积分重置
//
// 拉取式：余额读取路径顺带调用MaybeReset，不依赖后台任务。
type ResetService struct {
	db      *gorm.DB
	cache   resetCoordinator
	credits *config.CreditsConfig
	now     func() time.Time
}

// NewResetService 创建重置服务实例
func NewResetService() *ResetService {
	return &ResetService{
		db:      database.DB,
		cache:   middleware.NewRedisService(),
		credits: &config.GetAppConfig().Credits,
		now:     time.Now,
	}
}

// NewResetServiceWithDB 使用指定DB创建实例（测试用）
func NewResetServiceWithDB(db *gorm.DB, credits *config.CreditsConfig, now func() time.Time) *ResetService {
	return &ResetService{
		db:      db,
		credits: credits,
		now:     now,
	}
}

func (s *ResetService) tierDefaults(tier string) (int, int) {
	switch tier {
	case models.TierPro:
		return s.credits.ProChatMonthly, s.credits.ProGenAIMonthly
	case models.TierPremium:
		return s.credits.PremiumChatMonthly, s.credits.PremiumGenAIMonthly
	default:
		return s.credits.FreeChatMonthly, s.credits.FreeGenAIMonthly
	}
}

// MaybeReset 距上次重置满一个周期则恢复档位额度
//
// UPDATE带last_reset旧值条件（CAS），并发调用只有一路生效；
// 生效后就地更新account并补记reset流水。
func (s *ResetService) MaybeReset(account *models.UserAccount) (bool, error) {
	interval := time.Duration(s.credits.ResetIntervalDays) * 24 * time.Hour
	now := s.now()

	if now.Sub(account.LastReset) < interval {
		return false, nil
	}

	chatCredits, genaiCredits := s.tierDefaults(account.Tier)

	// 跨实例锁避免重复走重置流程；锁只是削减无谓竞争，
	// 正确性由下面UPDATE的last_reset条件保证
	if s.cache != nil {
		lockKey := "credit-reset:" + account.UserID
		acquired, lockErr := s.cache.AcquireLock(lockKey, 10*time.Second)
		if lockErr == nil {
			if !acquired {
				return false, nil
			}
			defer s.cache.ReleaseLock(lockKey)
		}
	}

	result := s.db.Model(&models.UserAccount{}).
		Where("user_id = ? AND last_reset = ?", account.UserID, account.LastReset).
		Updates(map[string]interface{}{
			"chat_credits":  chatCredits,
			"genai_credits": genaiCredits,
			"last_reset":    now,
			"update_time":   now,
		})
	if result.Error != nil {
		return false, apperrors.NewDatabaseError("reset credits", result.Error)
	}

	if result.RowsAffected == 0 {
		// 另一路并发已完成本周期重置
		return false, nil
	}

	account.ChatCredits = chatCredits
	account.GenAICredits = genaiCredits
	account.LastReset = now

	s.appendResetLedger(account.UserID, models.CreditTypeChat, chatCredits)
	s.appendResetLedger(account.UserID, models.CreditTypeGenAI, genaiCredits)

	if s.cache != nil {
		s.cache.InvalidateAccount(account.UserID)
	}

	logger.Info("Monthly credits reset",
		zap.String("user_id", account.UserID),
		zap.String("tier", account.Tier),
		zap.Int("chat_credits", chatCredits),
		zap.Int("genai_credits", genaiCredits))

	return true, nil
}

func (s *ResetService) appendResetLedger(userID, creditType string, balanceAfter int) {
	record := models.CreditTransaction{
		UserID:       userID,
		CreditType:   creditType,
		Amount:       balanceAfter,
		Kind:         models.TransactionKindReset,
		BalanceAfter: balanceAfter,
		Reason:       "monthly reset",
		CreateTime:   s.now(),
	}

	if err := s.db.Create(&record).Error; err != nil {
		logger.Error("创建重置流水失败",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
