package controllers

import (
	"github.com/aihub/ai-gateway/internal/di"
	"github.com/aihub/ai-gateway/internal/services"
	"github.com/beego/beego/v2/server/web"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
	metricsService *services.MetricsService
}

// Prepare 初始化控制器
func (c *MetricsController) Prepare() {
	if err := di.Invoke(func(m *services.MetricsService) { c.metricsService = m }); err != nil {
		c.metricsService = services.NewMetricsService()
	}
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	c.metricsService.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
