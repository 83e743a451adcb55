package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBreakerOpen 熔断器打开，上游调用被拒绝
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState 熔断器状态
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String 返回状态字符串
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker 上游AI服务熔断器
//
// 连续失败达到阈值后打开，冷却期过后进入半开放行探测请求，
// 探测成功即关闭。打开期间调用方直接得到ErrBreakerOpen，
// 不消耗用户积分也不等待上游超时。
type Breaker struct {
	name string

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	state           int32
	failureCount    int32
	successCount    int32
	lastFailureTime time.Time
	mu              sync.RWMutex
}

// NewBreaker 创建熔断器
func NewBreaker(name string, failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		state:            int32(BreakerClosed),
	}
}

// Do 带熔断保护执行上游调用
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}

	err := fn()
	b.record(err == nil)
	return err
}

// State 获取当前状态
func (b *Breaker) State() BreakerState {
	return BreakerState(atomic.LoadInt32(&b.state))
}

// Stats 获取统计信息
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"name":              b.name,
		"state":             b.State().String(),
		"failure_count":     atomic.LoadInt32(&b.failureCount),
		"failure_threshold": b.failureThreshold,
		"cooldown":          b.cooldown.String(),
		"last_failure_time": b.lastFailureTime,
	}
}

func (b *Breaker) allow() bool {
	switch b.State() {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		b.mu.RLock()
		cooled := time.Since(b.lastFailureTime) >= b.cooldown
		b.mu.RUnlock()

		if cooled {
			atomic.StoreInt32(&b.state, int32(BreakerHalfOpen))
			atomic.StoreInt32(&b.successCount, 0)
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) record(success bool) {
	if success {
		switch b.State() {
		case BreakerHalfOpen:
			if int(atomic.AddInt32(&b.successCount, 1)) >= b.successThreshold {
				atomic.StoreInt32(&b.state, int32(BreakerClosed))
				atomic.StoreInt32(&b.failureCount, 0)
			}
		case BreakerClosed:
			atomic.StoreInt32(&b.failureCount, 0)
		}
		return
	}

	b.mu.Lock()
	b.lastFailureTime = time.Now()
	b.mu.Unlock()

	switch b.State() {
	case BreakerHalfOpen:
		// 探测失败，重新打开
		atomic.StoreInt32(&b.state, int32(BreakerOpen))
		atomic.StoreInt32(&b.successCount, 0)
	case BreakerClosed:
		if int(atomic.AddInt32(&b.failureCount, 1)) >= b.failureThreshold {
			atomic.StoreInt32(&b.state, int32(BreakerOpen))
		}
	}
}
