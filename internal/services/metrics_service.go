package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	aiCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ai_calls_total",
		Help: "Total metered AI calls by interaction type and outcome",
	}, []string{"interaction", "status"})

	creditsDeductedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_credits_deducted_total",
		Help: "Total credits deducted by credit type",
	}, []string{"credit_type"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})
)

// MetricsService 指标服务
type MetricsService struct{}

// NewMetricsService 创建指标服务
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}

// RecordAICall 记录一次AI调用结果
func (ms *MetricsService) RecordAICall(interaction, status string) {
	aiCallsTotal.WithLabelValues(interaction, status).Inc()
}

// RecordCreditsDeducted 记录积分扣减量
func (ms *MetricsService) RecordCreditsDeducted(creditType string, amount int) {
	creditsDeductedTotal.WithLabelValues(creditType).Add(float64(amount))
}

// RecordRateLimited 记录一次限流拒绝
func (ms *MetricsService) RecordRateLimited(scope string) {
	rateLimitedTotal.WithLabelValues(scope).Inc()
}
