package bootstrap

import (
	"log"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/database"
	"github.com/aihub/ai-gateway/internal/di"
	"github.com/aihub/ai-gateway/internal/kafka"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	// Initialize database.
	if _, err := database.InitDB(); err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return database.CloseDB()
	})

	// Initialize Redis (optional). Failure shouldn't block the app.
	if _, err := database.InitRedis(); err != nil {
		logger.Warn("Failed to initialize Redis, falling back to in-memory rate limiting", zap.Error(err))
	} else {
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			return database.CloseRedis()
		})
	}

	// Initialize MinIO (optional). Without it generated media is returned unstored.
	if config.AppConfig.Storage.Enabled {
		if _, err := storage.NewMediaStore(); err != nil {
			logger.Warn("Failed to initialize MinIO, generated media will not be persisted", zap.Error(err))
		} else {
			logger.Info("MinIO media store initialized")
		}
	}

	// Initialize Kafka (optional). Failure shouldn't block the app.
	if config.AppConfig.Kafka.Enabled {
		if err := kafka.InitProducer(config.AppConfig.Kafka.Brokers, config.AppConfig.Kafka.Topic); err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				producer := kafka.GetProducer()
				if producer != nil {
					return producer.Close()
				}
				return nil
			})
		}

		// 消费侧用于对账日志，配置了消费组才启动
		if groupID := config.AppConfig.Kafka.GroupID; groupID != "" {
			if err := kafka.InitConsumer(config.AppConfig.Kafka.Brokers, groupID, config.AppConfig.Kafka.Topic, kafka.LogUsageEvent); err != nil {
				logger.Warn("Failed to initialize Kafka consumer", zap.Error(err))
			} else {
				app.cleanupTasks = append(app.cleanupTasks, func() error {
					return kafka.GetConsumer().Close()
				})
			}
		}
	}

	// 注册依赖注入容器（服务构造统一走容器）
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
