package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/database"
	"github.com/aihub/ai-gateway/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisService Redis缓存服务
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisService 创建Redis服务实例
func NewRedisService() *RedisService {
	ttl := 5 * time.Minute
	if cfg := config.AppConfig; cfg != nil && cfg.Redis.TTL > 0 {
		ttl = time.Duration(cfg.Redis.TTL) * time.Second
	}
	return &RedisService{
		client: database.RedisClient,
		ttl:    ttl,
	}
}

// GetAccountCache 获取账户缓存
func (s *RedisService) GetAccountCache(userID string) (*models.UserAccount, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	ctx := context.Background()
	key := fmt.Sprintf("credit:account:%s", userID)

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("not found in cache")
	}
	if err != nil {
		return nil, err
	}

	var account models.UserAccount
	if err := json.Unmarshal([]byte(val), &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// SetAccountCache 设置账户缓存
func (s *RedisService) SetAccountCache(account *models.UserAccount) error {
	if s.client == nil {
		return nil // Redis未配置时静默失败
	}

	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	ctx := context.Background()
	key := fmt.Sprintf("credit:account:%s", account.UserID)
	return s.client.SetEx(ctx, key, string(data), s.ttl).Err()
}

// InvalidateAccount 删除账户缓存（余额变动后调用）
func (s *RedisService) InvalidateAccount(userID string) error {
	if s.client == nil {
		return nil
	}

	ctx := context.Background()
	key := fmt.Sprintf("credit:account:%s", userID)
	return s.client.Del(ctx, key).Err()
}

// CheckRateLimit 检查限流（INCR+EXPIRE固定窗口）
func (s *RedisService) CheckRateLimit(userID string, scope string, limit int, window time.Duration) (bool, int, error) {
	if s.client == nil {
		return true, limit, nil // Redis未配置时允许通过
	}

	ctx := context.Background()
	key := fmt.Sprintf("rate:limit:%s:%s", userID, scope)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	// 设置过期时间（如果key是新创建的）
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(limit) {
		return false, remaining, nil
	}

	return true, remaining, nil
}

// RetryAfter 获取限流key剩余过期时间（秒）
func (s *RedisService) RetryAfter(userID string, scope string) int {
	if s.client == nil {
		return 0
	}

	ctx := context.Background()
	key := fmt.Sprintf("rate:limit:%s:%s", userID, scope)

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return int(ttl.Seconds())
}

// AcquireLock 获取分布式锁
func (s *RedisService) AcquireLock(lockKey string, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return true, nil // Redis未配置时允许
	}

	ctx := context.Background()
	key := fmt.Sprintf("lock:%s", lockKey)

	// 使用SET NX EX实现分布式锁
	result, err := s.client.SetNX(ctx, key, "locked", ttl).Result()
	return result, err
}

// ReleaseLock 释放分布式锁
func (s *RedisService) ReleaseLock(lockKey string) error {
	if s.client == nil {
		return nil
	}

	ctx := context.Background()
	key := fmt.Sprintf("lock:%s", lockKey)
	return s.client.Del(ctx, key).Err()
}
