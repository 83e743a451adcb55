package controllers

import (
	"context"
	"time"

	"github.com/aihub/ai-gateway/internal/database"
	"github.com/aihub/ai-gateway/internal/storage"
)

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "AI Gateway API"})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health 存活检查
func (c *HealthController) Health() {
	c.JSONSuccess(map[string]string{"status": "healthy"})
}

// Readiness 就绪检查：探测数据库与可选依赖
func (c *HealthController) Readiness() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{}
	healthy := true

	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err != nil {
			components["database"] = "error: " + err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			components["database"] = "error: " + err.Error()
			healthy = false
		} else {
			components["database"] = "healthy"
		}
	} else {
		components["database"] = "not initialized"
		healthy = false
	}

	if database.RedisClient != nil {
		if err := database.RedisClient.Ping(ctx).Err(); err != nil {
			components["redis"] = "error: " + err.Error()
		} else {
			components["redis"] = "healthy"
		}
	} else {
		components["redis"] = "disabled"
	}

	if store := storage.GetMediaStore(); store != nil {
		if err := store.HealthCheck(ctx); err != nil {
			components["storage"] = "error: " + err.Error()
		} else {
			components["storage"] = "healthy"
		}
	} else {
		components["storage"] = "disabled"
	}

	status := "ready"
	if !healthy {
		status = "degraded"
	}

	c.JSONSuccess(map[string]interface{}{
		"status":     status,
		"components": components,
	})
}
