package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/ai-gateway/internal/auth"
	"github.com/aihub/ai-gateway/internal/config"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError AppError按自身HTTP码与错误码输出
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)

	if appErr.Code == apperrors.ErrCodeInternalServer || appErr.Code == apperrors.ErrCodeDatabaseError {
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.String("method", c.Ctx.Request.Method),
			zap.Error(err))
	}

	// 限流错误带标准限流响应头
	if appErr.Code == apperrors.ErrCodeTooManyRequests {
		if details, ok := appErr.Details.(map[string]interface{}); ok {
			if retryAfter, ok := details["retry_after"].(int); ok && retryAfter > 0 {
				c.Ctx.Output.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			}
			if limit, ok := details["limit"].(int); ok {
				c.Ctx.Output.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			}
			if remaining, ok := details["remaining"].(int); ok {
				c.Ctx.Output.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			}
			if resetAt, ok := details["reset_at"].(int64); ok && resetAt > 0 {
				c.Ctx.Output.Header("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt))
			}
		}
	}

	payload := map[string]interface{}{
		"success": false,
		"code":    appErr.Code,
		"error":   appErr.Message,
	}
	if appErr.Details != nil {
		payload["details"] = appErr.Details
	}

	c.JSON(appErr.HTTPCode, payload)
}

// validatePayload 校验请求结构体，失败时直接写响应
func (c *BaseController) validatePayload(payload interface{}) bool {
	if err := validate.Struct(payload); err != nil {
		c.JSONAppError(apperrors.NewValidationError(err.Error()))
		return false
	}
	return true
}

// getAuthenticatedUserID 获取认证用户ID
// 优先验证Authorization header中的JWT
func (c *BaseController) getAuthenticatedUserID() (string, bool) {
	cfg := config.GetAppConfig()

	// 1. 首先尝试从Authorization header解析JWT
	authHeader := c.Ctx.Input.Header("Authorization")
	if authHeader != "" {
		jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, 24*time.Hour)
		userID, err := jwtService.ResolveUserID(authHeader)
		if err == nil {
			return userID, true
		}
		logger.Warn("JWT validation failed",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.Error(err))
		c.JSONAppError(apperrors.NewUnauthorizedError("Invalid or expired token"))
		return "", false
	}

	// 2. 尝试从X-User-Id header获取（网关内部流量）
	if userID := c.Ctx.Input.Header("X-User-Id"); userID != "" {
		return userID, true
	}

	// 安全检查：生产环境绝对不允许匿名请求
	if cfg.Server.Env == "production" {
		c.JSONAppError(apperrors.NewUnauthorizedError("Authentication required"))
		return "", false
	}

	// 3. 开发/测试环境：允许查询参数，记录安全警告
	if userID := c.GetString("user_id"); userID != "" {
		logger.Warn("SECURITY WARNING: Using query-param user ID in non-production environment",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.String("ip", c.getClientIP()))
		return userID, true
	}

	c.JSONAppError(apperrors.NewUnauthorizedError("Authentication required"))
	return "", false
}

// getClientIP 获取客户端真实IP地址
func (c *BaseController) getClientIP() string {
	// 尝试从X-Forwarded-For头获取（代理服务器）
	xForwardedFor := c.Ctx.Input.Header("X-Forwarded-For")
	if xForwardedFor != "" {
		// X-Forwarded-For可能包含多个IP，取第一个
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	// 尝试从X-Real-IP头获取
	xRealIP := c.Ctx.Input.Header("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	// 回退到RemoteAddr
	return c.Ctx.Input.IP()
}
