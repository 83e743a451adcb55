package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewBreaker("test", 3, 1, time.Minute)
	upstreamErr := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		err := breaker.Do(func() error { return upstreamErr })
		require.ErrorIs(t, err, upstreamErr)
	}
	assert.Equal(t, BreakerOpen, breaker.State())

	// 打开期间不触发上游调用
	invoked := false
	err := breaker.Do(func() error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, invoked)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	breaker := NewBreaker("test", 3, 1, time.Minute)
	upstreamErr := errors.New("upstream down")

	_ = breaker.Do(func() error { return upstreamErr })
	_ = breaker.Do(func() error { return upstreamErr })
	require.NoError(t, breaker.Do(func() error { return nil }))

	// 成功后计数清零，再失败两次不足以打开
	_ = breaker.Do(func() error { return upstreamErr })
	_ = breaker.Do(func() error { return upstreamErr })
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	breaker := NewBreaker("test", 1, 2, 10*time.Millisecond)
	upstreamErr := errors.New("upstream down")

	_ = breaker.Do(func() error { return upstreamErr })
	require.Equal(t, BreakerOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)

	// 冷却后半开，连续成功达到阈值即关闭
	require.NoError(t, breaker.Do(func() error { return nil }))
	assert.Equal(t, BreakerHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(func() error { return nil }))
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker := NewBreaker("test", 1, 1, 10*time.Millisecond)
	upstreamErr := errors.New("upstream down")

	_ = breaker.Do(func() error { return upstreamErr })
	require.Equal(t, BreakerOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)

	_ = breaker.Do(func() error { return upstreamErr })
	assert.Equal(t, BreakerOpen, breaker.State())
}
