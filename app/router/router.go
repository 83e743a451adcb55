package router

import (
	"github.com/aihub/ai-gateway/app/controllers"
	"github.com/aihub/ai-gateway/app/middleware"
	"github.com/aihub/ai-gateway/internal/config"
	"github.com/beego/beego/v2/server/web"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/ready", &controllers.HealthController{}, "get:Readiness")

	if config.AppConfig.Prometheus.Enabled {
		web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	}

	// 计量调用路由
	chatController := &controllers.ChatController{}
	web.Router("/api/v1/chat-call", chatController, "post:ChatCall")
	web.Router("/api/v1/chat/agents/:agent_id", chatController, "get:GetAgent")

	userController := &controllers.UserController{}
	generateController := &controllers.GenerateController{}
	web.Router("/api/v1/gen-call", generateController, "post:GenerateCall")
	// 注意：具体路由必须在参数路由之前注册
	web.Router("/api/v1/generate/credits/balance", userController, "get:GetCredits")
	web.Router("/api/v1/generate/history", generateController, "get:ListGenerations")
	web.Router("/api/v1/generate/:request_id", generateController, "get:GetGeneration")

	// 用户账户路由
	web.Router("/api/v1/users/initialize", userController, "post:Initialize")
	web.Router("/api/v1/users/credits", userController, "get:GetCredits")
	web.Router("/api/v1/users/migrate-credits/add-credits", userController, "post:AddCredits")
	web.Router("/api/v1/users/transactions", userController, "get:GetTransactions")
	web.Router("/api/v1/users/usage", userController, "get:GetUsage")
}
