package di

import (
	"fmt"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/database"
	"github.com/aihub/ai-gateway/internal/services"
	"go.uber.org/dig"
	"gorm.io/gorm"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册数据库
	if err := container.Provide(func() (*gorm.DB, error) {
		if database.DB == nil {
			return nil, fmt.Errorf("database not initialized")
		}
		return database.DB, nil
	}); err != nil {
		return err
	}

	// 注册限流器（按配置选择Redis或内存实现）
	if err := container.Provide(func(cfg *config.Config) services.RateLimiter {
		return services.NewRateLimiter(&cfg.RateLimit)
	}); err != nil {
		return err
	}

	// 注册服务
	if err := container.Provide(services.NewCreditStore); err != nil {
		return err
	}

	if err := container.Provide(services.NewAccessService); err != nil {
		return err
	}

	if err := container.Provide(services.NewResetService); err != nil {
		return err
	}

	if err := container.Provide(services.NewLedgerService); err != nil {
		return err
	}

	if err := container.Provide(services.NewUsageService); err != nil {
		return err
	}

	if err := container.Provide(services.NewGenerationService); err != nil {
		return err
	}

	if err := container.Provide(services.NewMetricsService); err != nil {
		return err
	}

	if err := container.Provide(services.NewMeteringService); err != nil {
		return err
	}

	return nil
}
