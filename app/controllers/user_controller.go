package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aihub/ai-gateway/internal/di"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/models"
	"github.com/aihub/ai-gateway/internal/services"
)

// UserController 用户账户控制器
type UserController struct {
	BaseController
	creditStore   *services.CreditStore
	ledgerService *services.LedgerService
	usageService  *services.UsageService
	resetService  *services.ResetService
}

func (c *UserController) Prepare() {
	err := di.Invoke(func(store *services.CreditStore, ledger *services.LedgerService, usage *services.UsageService, reset *services.ResetService) {
		c.creditStore = store
		c.ledgerService = ledger
		c.usageService = usage
		c.resetService = reset
	})
	if err != nil {
		c.creditStore = services.NewCreditStore()
		c.ledgerService = services.NewLedgerService()
		c.usageService = services.NewUsageService()
		c.resetService = services.NewResetService()
	}
}

// InitializeRequest 账户初始化请求
type InitializeRequest struct {
	Tier string `json:"tier,omitempty" validate:"omitempty,oneof=free pro premium"`
}

// AddCreditsRequest 积分充值请求
type AddCreditsRequest struct {
	CreditType string `json:"credit_type" validate:"required,oneof=chat genai"`
	Amount     int    `json:"amount" validate:"required,gt=0"`
	Reason     string `json:"reason,omitempty" validate:"max=200"`
}

// Initialize 初始化用户积分账户（幂等）
// POST /api/v1/users/initialize
func (c *UserController) Initialize() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req InitializeRequest
	if len(c.Ctx.Input.RequestBody) > 0 {
		if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
			c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
		if !c.validatePayload(&req) {
			return
		}
	}

	tier := req.Tier
	if tier == "" {
		tier = models.TierFree
	}

	account, created, err := c.creditStore.Initialize(userID, tier)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"user_id":       account.UserID,
		"tier":          account.Tier,
		"chat_credits":  account.ChatCredits,
		"genai_credits": account.GenAICredits,
		"created":       created,
	})
}

// GetCredits 查询当前余额
// GET /api/v1/users/credits
func (c *UserController) GetCredits() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	account, err := c.creditStore.GetBalance(userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	// 余额读取路径顺带做周期重置（拉取式）
	if _, err := c.resetService.MaybeReset(account); err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"user_id":       account.UserID,
		"tier":          account.Tier,
		"chat_credits":  account.ChatCredits,
		"genai_credits": account.GenAICredits,
		"last_reset":    account.LastReset,
	})
}

// AddCredits 充值积分
// POST /api/v1/users/migrate-credits/add-credits
func (c *UserController) AddCredits() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req AddCreditsRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !c.validatePayload(&req) {
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual top-up"
	}

	remaining, err := c.creditStore.AddCredits(userID, req.CreditType, req.Amount, reason)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"user_id":     userID,
		"credit_type": req.CreditType,
		"added":       req.Amount,
		"remaining":   remaining,
	})
}

// GetTransactions 分页查询积分流水
// GET /api/v1/users/transactions
func (c *UserController) GetTransactions() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.GetString("limit", "20"))
	offset, _ := strconv.Atoi(c.GetString("offset", "0"))
	if limit <= 0 || limit > 100 {
		c.JSONAppError(apperrors.NewInvalidInputError("limit", "must be between 1 and 100"))
		return
	}

	transactions, total, err := c.ledgerService.List(userID, limit, offset)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"transactions": transactions,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetUsage 查询本月用量统计
// GET /api/v1/users/usage
func (c *UserController) GetUsage() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	stats, err := c.usageService.Stats(userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(stats)
}
