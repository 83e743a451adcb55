package middleware

import (
	"net/http"
	"strings"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/beego/beego/v2/server/web/context"
)

// CORSMiddleware 按配置放行跨域请求，处理OPTIONS预检
func CORSMiddleware(ctx *context.Context) {
	origin := ctx.Input.Header("Origin")

	if origin != "" && originAllowed(origin) {
		ctx.Output.Header("Access-Control-Allow-Origin", origin)
		ctx.Output.Header("Access-Control-Allow-Credentials", "true")
		ctx.Output.Header("Vary", "Origin")
	}

	ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")
	ctx.Output.Header("Access-Control-Max-Age", "3600")

	if ctx.Input.Method() == http.MethodOptions {
		ctx.Output.SetStatus(http.StatusNoContent)
		ctx.Output.Body(nil)
	}
}

func originAllowed(origin string) bool {
	cfg := config.AppConfig
	if cfg == nil || len(cfg.Server.AllowedOrigins) == 0 {
		return false
	}
	for _, allowed := range cfg.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
