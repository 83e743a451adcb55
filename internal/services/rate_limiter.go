package services

import (
	"sync"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/middleware"
)

// RateLimitResult 限流判定结果
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int // 秒，Allowed=false时有效
	ResetAt    time.Time
}

// RateLimiter 按用户和调用类型限流
type RateLimiter interface {
	Allow(userID, scope string) (*RateLimitResult, error)
}

// 限流类型
const (
	RateScopeChat       = "chat"
	RateScopeGeneration = "generation"
)

// SlidingWindowLimiter 进程内滑动窗口限流器
//
// 每个 用户+类型 维护一个按时间排序的请求时间戳切片，
// 判定时先剔除窗口外的旧记录，通过才追加新记录。
type SlidingWindowLimiter struct {
	window time.Duration
	limits map[string]int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewSlidingWindowLimiter 按配置创建内存限流器
func NewSlidingWindowLimiter(cfg *config.RateLimitConfig) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window: time.Duration(cfg.WindowSeconds) * time.Second,
		limits: map[string]int{
			RateScopeChat:       cfg.ChatPerWindow,
			RateScopeGeneration: cfg.GenPerWindow,
		},
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// NewSlidingWindowLimiterWithClock 注入时钟创建（测试用）
func NewSlidingWindowLimiterWithClock(window time.Duration, limits map[string]int, now func() time.Time) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window:  window,
		limits:  limits,
		now:     now,
		windows: make(map[string][]time.Time),
	}
}

// Allow 判定并记录一次请求
func (l *SlidingWindowLimiter) Allow(userID, scope string) (*RateLimitResult, error) {
	limit, ok := l.limits[scope]
	if !ok || limit <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	now := l.now()
	cutoff := now.Add(-l.window)
	key := userID + ":" + scope

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.windows[key]

	// 剔除窗口外的记录（切片按时间升序）
	start := 0
	for start < len(timestamps) && !timestamps[start].After(cutoff) {
		start++
	}
	timestamps = timestamps[start:]

	if len(timestamps) >= limit {
		// 最早一条过期后才有空位
		retryAfter := int(timestamps[0].Add(l.window).Sub(now).Seconds()) + 1
		l.windows[key] = timestamps
		return &RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    timestamps[0].Add(l.window),
		}, nil
	}

	timestamps = append(timestamps, now)
	l.windows[key] = timestamps

	return &RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(timestamps),
		ResetAt:   timestamps[0].Add(l.window),
	}, nil
}

var _ RateLimiter = (*SlidingWindowLimiter)(nil)

// fixedWindowBackend 共享计数后端（生产为Redis INCR+EXPIRE）
type fixedWindowBackend interface {
	CheckRateLimit(userID, scope string, limit int, window time.Duration) (bool, int, error)
	RetryAfter(userID, scope string) int
}

// RedisRateLimiter Redis固定窗口限流器（多实例部署用）
type RedisRateLimiter struct {
	cache  fixedWindowBackend
	window time.Duration
	limits map[string]int
}

// NewRedisRateLimiter 按配置创建Redis限流器
func NewRedisRateLimiter(cfg *config.RateLimitConfig) *RedisRateLimiter {
	return NewRedisRateLimiterWithBackend(cfg, middleware.NewRedisService())
}

// NewRedisRateLimiterWithBackend 注入计数后端创建（测试用）
func NewRedisRateLimiterWithBackend(cfg *config.RateLimitConfig, backend fixedWindowBackend) *RedisRateLimiter {
	return &RedisRateLimiter{
		cache:  backend,
		window: time.Duration(cfg.WindowSeconds) * time.Second,
		limits: map[string]int{
			RateScopeChat:       cfg.ChatPerWindow,
			RateScopeGeneration: cfg.GenPerWindow,
		},
	}
}

// Allow 判定并记录一次请求
func (l *RedisRateLimiter) Allow(userID, scope string) (*RateLimitResult, error) {
	limit, ok := l.limits[scope]
	if !ok || limit <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	allowed, remaining, err := l.cache.CheckRateLimit(userID, scope, limit, l.window)
	if err != nil {
		return nil, err
	}

	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
	}
	if !allowed {
		result.RetryAfter = l.cache.RetryAfter(userID, scope)
		if result.RetryAfter == 0 {
			result.RetryAfter = int(l.window.Seconds())
		}
		result.ResetAt = time.Now().Add(time.Duration(result.RetryAfter) * time.Second)
	}

	return result, nil
}

var _ RateLimiter = (*RedisRateLimiter)(nil)

// NewRateLimiter 按配置选择限流后端
func NewRateLimiter(cfg *config.RateLimitConfig) RateLimiter {
	if cfg.Backend == "redis" {
		return NewRedisRateLimiter(cfg)
	}
	return NewSlidingWindowLimiter(cfg)
}
