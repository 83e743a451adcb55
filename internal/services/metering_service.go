package services

import (
	"context"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/kafka"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/models"
	"github.com/aihub/ai-gateway/internal/providers"
	"github.com/aihub/ai-gateway/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceStore 账户余额存取
type BalanceStore interface {
	GetBalance(userID string) (*models.UserAccount, error)
	Initialize(userID, tier string) (*models.UserAccount, bool, error)
	TryDeduct(userID, creditType string, amount int, reason, requestID string, tokensUsed int) (bool, int, error)
}

// AccessPolicy 助手访问判定
type AccessPolicy interface {
	GetAgent(agentID string) (*models.AgentResource, error)
	HasAccess(userID, agentID string) (bool, error)
}

// Resetter 周期重置
type Resetter interface {
	MaybeReset(account *models.UserAccount) (bool, error)
}

// MediaUploader 生成内容落盘
type MediaUploader interface {
	UploadMedia(ctx context.Context, userID, requestID, mediaType string, data []byte, contentType string) (string, error)
	PresignedURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}

// GenerationRecorder 生成记录持久化
type GenerationRecorder interface {
	Save(record *models.GenerationRecord) error
}

// UsageEventSink 用量事件发布
type UsageEventSink func(event *models.UsageEvent) error

// ChatCallRequest 聊天调用请求
type ChatCallRequest struct {
	UserID  string                  `json:"user_id" validate:"required"`
	AgentID string                  `json:"agent_id" validate:"required"`
	Message string                  `json:"message" validate:"required,min=1,max=4096"`
	Context []providers.ChatMessage `json:"context,omitempty" validate:"omitempty,max=50,dive"`
}

// ChatCallResponse 聊天调用响应
type ChatCallResponse struct {
	RequestID        string `json:"request_id"`
	AgentID          string `json:"agent_id"`
	Reply            string `json:"reply"`
	Model            string `json:"model,omitempty"`
	TokensUsed       int    `json:"tokens_used"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// GenerateCallRequest 媒体生成请求
type GenerateCallRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	MediaType       string `json:"media_type" validate:"required,oneof=image music album_art"`
	Prompt          string `json:"prompt" validate:"required,min=1,max=1000"`
	Style           string `json:"style,omitempty" validate:"max=100"`
	DurationSeconds int    `json:"duration_seconds,omitempty" validate:"min=0"`
}

// GenerateCallResponse 媒体生成响应
type GenerateCallResponse struct {
	RequestID        string `json:"request_id"`
	MediaType        string `json:"media_type"`
	Status           string `json:"status"`
	MediaURL         string `json:"media_url,omitempty"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
	Error            string `json:"error,omitempty"`
}

// MeteringService 计量调用编排
//
// 统一的调用序列：身份 → 访问策略 → 限流 → 余额预检 →
// 上游调用（不持锁）→ 条件扣减 → 流水 → 用量事件。
// 预检只是提前拒绝，唯一的强制点是条件扣减。
type MeteringService struct {
	store    BalanceStore
	access   AccessPolicy
	limiter  RateLimiter
	resetter Resetter
	chat     providers.ChatProvider
	media    providers.MediaProvider
	uploader MediaUploader
	records  GenerationRecorder
	events   UsageEventSink
	metrics  *MetricsService
	credits  *config.CreditsConfig

	maxDuration int

	chatBreaker  *Breaker
	mediaBreaker *Breaker
}

// MeteringDeps 编排服务依赖（测试时注入fake）
type MeteringDeps struct {
	Store    BalanceStore
	Access   AccessPolicy
	Limiter  RateLimiter
	Resetter Resetter
	Chat     providers.ChatProvider
	Media    providers.MediaProvider
	Uploader MediaUploader
	Records  GenerationRecorder
	Events   UsageEventSink
	Metrics  *MetricsService
	Credits  *config.CreditsConfig

	// MaxDurationSeconds 音乐生成时长上限，0时取默认180
	MaxDurationSeconds int
}

// NewMeteringService 创建编排服务（生产装配）
func NewMeteringService() *MeteringService {
	cfg := config.GetAppConfig()

	var uploader MediaUploader
	if store := storage.GetMediaStore(); store != nil {
		uploader = store
	}

	return NewMeteringServiceWithDeps(MeteringDeps{
		Store:    NewCreditStore(),
		Access:   NewAccessService(),
		Limiter:  NewRateLimiter(&cfg.RateLimit),
		Resetter: NewResetService(),
		Chat:     providers.NewOpenAIChatProvider(&cfg.AI),
		Media:    providers.NewStabilityClient(&cfg.Stability),
		Uploader: uploader,
		Records:  NewGenerationService(),
		Events:   kafka.PublishUsageEvent,
		Metrics:  NewMetricsService(),
		Credits:  &cfg.Credits,

		MaxDurationSeconds: cfg.Stability.MaxDurationSeconds,
	})
}

// NewMeteringServiceWithDeps 注入依赖创建编排服务
func NewMeteringServiceWithDeps(deps MeteringDeps) *MeteringService {
	if deps.MaxDurationSeconds <= 0 {
		deps.MaxDurationSeconds = 180
	}
	return &MeteringService{
		store:    deps.Store,
		access:   deps.Access,
		limiter:  deps.Limiter,
		resetter: deps.Resetter,
		chat:     deps.Chat,
		media:    deps.Media,
		uploader: deps.Uploader,
		records:  deps.Records,
		events:   deps.Events,
		metrics:  deps.Metrics,
		credits:  deps.Credits,

		maxDuration: deps.MaxDurationSeconds,

		chatBreaker:  NewBreaker("chat-provider", 5, 2, time.Minute),
		mediaBreaker: NewBreaker("media-provider", 5, 2, time.Minute),
	}
}

// GenerationCost 按媒体类型计算费用（时长不影响价格）
func (s *MeteringService) GenerationCost(mediaType string) int {
	if mediaType == models.MediaTypeMusic {
		return s.credits.MusicCost
	}
	// image与album_art同价
	return s.credits.ImageCost
}

// MeterChat 计量聊天调用（严格策略：扣减失败则丢弃输出）
func (s *MeteringService) MeterChat(ctx context.Context, userID string, req *ChatCallRequest) (*ChatCallResponse, error) {
	requestID := uuid.NewString()

	// 请求体声称的身份必须与认证身份一致
	if req.UserID != "" && req.UserID != userID {
		return nil, apperrors.NewForbiddenError("User ID mismatch")
	}

	account, err := s.resolveAccount(userID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.access.HasAccess(userID, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewForbiddenError("You do not have access to this agent")
	}

	if err := s.checkRateLimit(userID, RateScopeChat); err != nil {
		return nil, err
	}

	cost := s.credits.ChatCost
	if account.ChatCredits < cost {
		s.recordCall("chat", "insufficient_credits")
		return nil, apperrors.NewInsufficientCreditsError(models.CreditTypeChat, account.ChatCredits)
	}

	agent, err := s.access.GetAgent(req.AgentID)
	if err != nil {
		return nil, err
	}

	var result *providers.ChatResult
	err = s.chatBreaker.Do(func() error {
		var callErr error
		result, callErr = s.chat.Chat(ctx, agent.Personality, req.Message, req.Context)
		return callErr
	})
	if err != nil {
		s.recordCall("chat", "provider_error")
		logger.Error("Chat provider call failed",
			zap.String("request_id", requestID),
			zap.String("agent_id", req.AgentID),
			zap.Error(err))
		return nil, apperrors.NewProviderError("chat", err)
	}

	ok, remaining, err := s.store.TryDeduct(userID, models.CreditTypeChat, cost, "chat with agent "+req.AgentID, requestID, result.TotalTokens)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 预检之后余额被并发消耗：严格策略，不返回输出
		s.recordCall("chat", "insufficient_credits")
		logger.Warn("Chat deduct lost the race after provider call",
			zap.String("user_id", userID),
			zap.String("request_id", requestID))
		return nil, apperrors.NewInsufficientCreditsError(models.CreditTypeChat, remaining)
	}

	s.recordCall("chat", "completed")
	s.recordDeduction(models.CreditTypeChat, cost)
	s.publishEvent(&models.UsageEvent{
		EventID:     requestID,
		UserID:      userID,
		AgentID:     req.AgentID,
		Interaction: "chat",
		CreditType:  models.CreditTypeChat,
		CreditsUsed: cost,
		TokensUsed:  result.TotalTokens,
		Model:       result.Model,
		Status:      models.GenerationStatusCompleted,
	})

	return &ChatCallResponse{
		RequestID:        requestID,
		AgentID:          req.AgentID,
		Reply:            result.Reply,
		Model:            result.Model,
		TokensUsed:       result.TotalTokens,
		CreditsUsed:      cost,
		CreditsRemaining: remaining,
	}, nil
}

// MeterGeneration 计量媒体生成（宽松策略：扣减失败仍返回媒体）
func (s *MeteringService) MeterGeneration(ctx context.Context, userID string, req *GenerateCallRequest) (*GenerateCallResponse, error) {
	requestID := uuid.NewString()

	if req.UserID != "" && req.UserID != userID {
		return nil, apperrors.NewForbiddenError("User ID mismatch")
	}

	if !models.ValidMediaType(req.MediaType) {
		return nil, apperrors.NewValidationError("media_type must be one of image, music, album_art")
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 30
	}
	if duration > s.maxDuration {
		duration = s.maxDuration
	}

	account, err := s.resolveAccount(userID)
	if err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(userID, RateScopeGeneration); err != nil {
		return nil, err
	}

	cost := s.GenerationCost(req.MediaType)
	if account.GenAICredits < cost {
		s.recordCall("generation", "insufficient_credits")
		return nil, apperrors.NewInsufficientCreditsError(models.CreditTypeGenAI, account.GenAICredits)
	}

	var result *providers.MediaResult
	err = s.mediaBreaker.Do(func() error {
		var callErr error
		result, callErr = s.media.Generate(ctx, &providers.MediaRequest{
			MediaType:       req.MediaType,
			Prompt:          req.Prompt,
			Style:           req.Style,
			DurationSeconds: duration,
		})
		return callErr
	})
	if err != nil {
		// 上游失败：不扣减、不记流水，返回失败状态
		s.recordCall("generation", "provider_error")
		logger.Error("Media provider call failed",
			zap.String("request_id", requestID),
			zap.String("media_type", req.MediaType),
			zap.Error(err))

		s.saveRecord(&models.GenerationRecord{
			RequestID:    requestID,
			UserID:       userID,
			MediaType:    req.MediaType,
			Prompt:       req.Prompt,
			Status:       models.GenerationStatusFailed,
			ErrorMessage: err.Error(),
			CreateTime:   time.Now(),
		})

		return &GenerateCallResponse{
			RequestID:        requestID,
			MediaType:        req.MediaType,
			Status:           models.GenerationStatusFailed,
			CreditsUsed:      0,
			CreditsRemaining: account.GenAICredits,
			Error:            err.Error(),
		}, nil
	}

	mediaURL := s.storeMedia(ctx, userID, requestID, req.MediaType, result)

	creditsUsed := cost
	ok, remaining, err := s.store.TryDeduct(userID, models.CreditTypeGenAI, cost, "generate "+req.MediaType, requestID, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 宽松策略：媒体已经生成，照常返回，只记异常
		creditsUsed = 0
		logger.Warn("Generation deduct lost the race after provider call, media returned uncharged",
			zap.String("user_id", userID),
			zap.String("request_id", requestID))
	}

	s.saveRecord(&models.GenerationRecord{
		RequestID:   requestID,
		UserID:      userID,
		MediaType:   req.MediaType,
		Prompt:      req.Prompt,
		Status:      models.GenerationStatusCompleted,
		MediaURL:    mediaURL,
		CreditsUsed: creditsUsed,
		CreateTime:  time.Now(),
	})

	s.recordCall("generation", "completed")
	if creditsUsed > 0 {
		s.recordDeduction(models.CreditTypeGenAI, creditsUsed)
	}
	s.publishEvent(&models.UsageEvent{
		EventID:     requestID,
		UserID:      userID,
		Interaction: "generation",
		MediaType:   req.MediaType,
		CreditType:  models.CreditTypeGenAI,
		CreditsUsed: creditsUsed,
		Status:      models.GenerationStatusCompleted,
		Metadata: map[string]interface{}{
			"engine":   result.Engine,
			"duration": duration,
		},
	})

	return &GenerateCallResponse{
		RequestID:        requestID,
		MediaType:        req.MediaType,
		Status:           models.GenerationStatusCompleted,
		MediaURL:         mediaURL,
		CreditsUsed:      creditsUsed,
		CreditsRemaining: remaining,
	}, nil
}

// resolveAccount 取账户，不存在则按免费档惰性初始化，顺带做周期重置
func (s *MeteringService) resolveAccount(userID string) (*models.UserAccount, error) {
	account, err := s.store.GetBalance(userID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			account, _, err = s.store.Initialize(userID, models.TierFree)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	if s.resetter != nil {
		if _, err := s.resetter.MaybeReset(account); err != nil {
			logger.Warn("Monthly reset check failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	return account, nil
}

func (s *MeteringService) checkRateLimit(userID, scope string) error {
	result, err := s.limiter.Allow(userID, scope)
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "rate limiter failure").WithCause(err)
	}
	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.RecordRateLimited(scope)
		}
		return apperrors.NewRateLimitError(result.RetryAfter).WithDetails(map[string]interface{}{
			"retry_after": result.RetryAfter,
			"limit":       result.Limit,
			"remaining":   result.Remaining,
			"reset_at":    result.ResetAt.Unix(),
		})
	}
	return nil
}

func (s *MeteringService) storeMedia(ctx context.Context, userID, requestID, mediaType string, result *providers.MediaResult) string {
	if s.uploader == nil || len(result.Data) == 0 {
		return ""
	}

	objectKey, err := s.uploader.UploadMedia(ctx, userID, requestID, mediaType, result.Data, result.ContentType)
	if err != nil {
		logger.Error("Failed to upload generated media",
			zap.String("request_id", requestID),
			zap.Error(err))
		return ""
	}

	url, err := s.uploader.PresignedURL(ctx, objectKey, 24*time.Hour)
	if err != nil {
		logger.Error("Failed to presign media URL",
			zap.String("request_id", requestID),
			zap.Error(err))
		return ""
	}

	return url
}

func (s *MeteringService) saveRecord(record *models.GenerationRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.Save(record); err != nil {
		logger.Error("Failed to save generation record",
			zap.String("request_id", record.RequestID),
			zap.Error(err))
	}
}

func (s *MeteringService) publishEvent(event *models.UsageEvent) {
	if s.events == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := s.events(event); err != nil {
		logger.Warn("Failed to publish usage event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (s *MeteringService) recordCall(interaction, status string) {
	if s.metrics != nil {
		s.metrics.RecordAICall(interaction, status)
	}
}

func (s *MeteringService) recordDeduction(creditType string, amount int) {
	if s.metrics != nil {
		s.metrics.RecordCreditsDeducted(creditType, amount)
	}
}
