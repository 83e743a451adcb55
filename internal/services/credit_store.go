package services

import (
	"fmt"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/database"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/middleware"
	"github.com/aihub/ai-gateway/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditStore 积分账户存储
//
// 扣减必须走单条条件UPDATE，余额校验由数据库完成，
// 应用层绝不做读-改-写，否则并发扣减会丢失更新。
type CreditStore struct {
	db      *gorm.DB
	cache   *middleware.RedisService
	credits *config.CreditsConfig
}

// NewCreditStore 创建积分账户存储实例
func NewCreditStore() *CreditStore {
	return &CreditStore{
		db:      database.DB,
		cache:   middleware.NewRedisService(),
		credits: &config.GetAppConfig().Credits,
	}
}

// NewCreditStoreWithDB 使用指定DB创建实例（测试用）
func NewCreditStoreWithDB(db *gorm.DB, credits *config.CreditsConfig) *CreditStore {
	return &CreditStore{
		db:      db,
		credits: credits,
	}
}

// creditColumn 积分类型到表字段的映射
func creditColumn(creditType string) (string, error) {
	switch creditType {
	case models.CreditTypeChat:
		return "chat_credits", nil
	case models.CreditTypeGenAI:
		return "genai_credits", nil
	default:
		return "", fmt.Errorf("unknown credit type: %s", creditType)
	}
}

// TierDefaults 按订阅档位返回每月额度
func (s *CreditStore) TierDefaults(tier string) (chatCredits, genaiCredits int) {
	switch tier {
	case models.TierPro:
		return s.credits.ProChatMonthly, s.credits.ProGenAIMonthly
	case models.TierPremium:
		return s.credits.PremiumChatMonthly, s.credits.PremiumGenAIMonthly
	default:
		return s.credits.FreeChatMonthly, s.credits.FreeGenAIMonthly
	}
}

// GetBalance 获取账户（优先从Redis读取）
func (s *CreditStore) GetBalance(userID string) (*models.UserAccount, error) {
	if s.cache != nil {
		if account, err := s.cache.GetAccountCache(userID); err == nil {
			return account, nil
		}
	}

	var account models.UserAccount
	if err := s.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("User account")
		}
		return nil, apperrors.NewDatabaseError("get balance", err)
	}

	if s.cache != nil {
		s.cache.SetAccountCache(&account)
	}

	return &account, nil
}

// Initialize 初始化账户（幂等，并发首次访问安全）
//
// 通过user_id主键上的ON CONFLICT DO NOTHING保证只插入一次，
// 无论几路并发到达，最终都读回同一行。
func (s *CreditStore) Initialize(userID, tier string) (*models.UserAccount, bool, error) {
	if tier == "" {
		tier = models.TierFree
	}
	chatCredits, genaiCredits := s.TierDefaults(tier)

	now := time.Now()
	account := models.UserAccount{
		UserID:       userID,
		Tier:         tier,
		ChatCredits:  chatCredits,
		GenAICredits: genaiCredits,
		LastReset:    now,
		CreateTime:   now,
		UpdateTime:   now,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account)
	if result.Error != nil {
		return nil, false, apperrors.NewDatabaseError("initialize account", result.Error)
	}

	created := result.RowsAffected == 1

	// 读回当前行（并发时可能是别人插入的）
	var current models.UserAccount
	if err := s.db.Where("user_id = ?", userID).First(&current).Error; err != nil {
		return nil, false, apperrors.NewDatabaseError("initialize account", err)
	}

	if created {
		s.appendLedger(userID, models.CreditTypeChat, chatCredits, models.TransactionKindAdd, "initial grant", "", 0, chatCredits)
		s.appendLedger(userID, models.CreditTypeGenAI, genaiCredits, models.TransactionKindAdd, "initial grant", "", 0, genaiCredits)
		logger.Info("User account initialized",
			zap.String("user_id", userID),
			zap.String("tier", tier))
	}

	if s.cache != nil {
		s.cache.SetAccountCache(&current)
	}

	return &current, created, nil
}

// TryDeduct 条件扣减积分
//
// 单条UPDATE带余额下限条件，RETURNING返回扣减后余额。
// ok=false 表示余额不足（余额原样返回），账户不存在返回NotFound。
func (s *CreditStore) TryDeduct(userID, creditType string, amount int, reason, requestID string, tokensUsed int) (bool, int, error) {
	column, err := creditColumn(creditType)
	if err != nil {
		return false, 0, apperrors.NewValidationError(err.Error())
	}
	if amount <= 0 {
		return false, 0, apperrors.NewValidationError("deduct amount must be positive")
	}

	var remaining int
	query := fmt.Sprintf(
		"UPDATE user_accounts SET %s = %s - ?, update_time = ? WHERE user_id = ? AND %s >= ? RETURNING %s",
		column, column, column, column)
	result := s.db.Raw(query, amount, time.Now(), userID, amount).Scan(&remaining)
	if result.Error != nil {
		return false, 0, apperrors.NewDatabaseError("deduct credits", result.Error)
	}

	if result.RowsAffected == 0 {
		// 区分余额不足和账户不存在
		var account models.UserAccount
		if err := s.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, 0, apperrors.NewNotFoundError("User account")
			}
			return false, 0, apperrors.NewDatabaseError("deduct credits", err)
		}
		return false, account.Balance(creditType), nil
	}

	s.appendLedger(userID, creditType, -amount, models.TransactionKindDeduct, reason, requestID, tokensUsed, remaining)

	if s.cache != nil {
		s.cache.InvalidateAccount(userID)
	}

	return true, remaining, nil
}

// AddCredits 增加积分（无条件原子递增）
func (s *CreditStore) AddCredits(userID, creditType string, amount int, reason string) (int, error) {
	column, err := creditColumn(creditType)
	if err != nil {
		return 0, apperrors.NewValidationError(err.Error())
	}
	if amount <= 0 {
		return 0, apperrors.NewValidationError("add amount must be positive")
	}

	var remaining int
	query := fmt.Sprintf(
		"UPDATE user_accounts SET %s = %s + ?, update_time = ? WHERE user_id = ? RETURNING %s",
		column, column, column)
	result := s.db.Raw(query, amount, time.Now(), userID).Scan(&remaining)
	if result.Error != nil {
		return 0, apperrors.NewDatabaseError("add credits", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.NewNotFoundError("User account")
	}

	s.appendLedger(userID, creditType, amount, models.TransactionKindAdd, reason, "", 0, remaining)

	if s.cache != nil {
		s.cache.InvalidateAccount(userID)
	}

	return remaining, nil
}

// appendLedger 记录积分流水（流水失败不回滚余额变更，只记日志）
func (s *CreditStore) appendLedger(userID, creditType string, amount int, kind, reason, requestID string, tokensUsed, balanceAfter int) {
	record := models.CreditTransaction{
		UserID:       userID,
		CreditType:   creditType,
		Amount:       amount,
		Kind:         kind,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		RequestID:    requestID,
		TokensUsed:   tokensUsed,
		CreateTime:   time.Now(),
	}

	if err := s.db.Create(&record).Error; err != nil {
		logger.Error("创建积分流水失败",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
