package external

import (
	"go-dm/internal/application/ports"
	"go-dm/internal/metrics"
)

// MetricsServiceAdapter 将业务指标写入 Prometheus 收集器
type MetricsServiceAdapter struct{}

// NewMetricsServiceAdapter 创建指标适配器；注册由 metrics.Init 负责
func NewMetricsServiceAdapter() ports.MetricsService {
	return &MetricsServiceAdapter{}
}

// SendOutcome 记录一次发送
func (m *MetricsServiceAdapter) SendOutcome(outcome, reason string, latencyMS float64) {
	metrics.SendOutcomes.WithLabelValues(outcome, reason).Inc()
	metrics.SendLatency.Observe(latencyMS)
}

// PairEstablished 会话对建立
func (m *MetricsServiceAdapter) PairEstablished() {
	metrics.PairsEstablished.Inc()
}

// ViewRepair 会话行修复
func (m *MetricsServiceAdapter) ViewRepair(result string) {
	metrics.ViewRepairs.WithLabelValues(result).Inc()
}
