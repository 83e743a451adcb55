package main

import (
	"log"
	"strconv"

	"github.com/aihub/ai-gateway/app/bootstrap"
	"github.com/aihub/ai-gateway/app/router"
	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()
	bootstrap.SetGlobalApp(app)

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "AI Gateway"
	web.BConfig.CopyRequestBody = true

	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("🚀 Starting AI Gateway", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
