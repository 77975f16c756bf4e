package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SendOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_send_outcomes_total", Help: "私信发送判定结果"},
		[]string{"outcome", "reason"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dm_send_latency_ms", Help: "私信发送耗时(ms)", Buckets: prometheus.LinearBuckets(5, 5, 20)},
	)
	PairsEstablished = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dm_pair_established_total", Help: "会话对由 Pending 转为 Established 的次数"},
	)
	ViewRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_view_repairs_total", Help: "会话行修复次数"},
		[]string{"result"},
	)
	WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dm_ws_messages_total", Help: "WS上行消息数"},
		[]string{"action"},
	)
)

// Init 注册到默认 Registry，进程内只调用一次
func Init() {
	prometheus.MustRegister(SendOutcomes, SendLatency, PairsEstablished, ViewRepairs, WSMessagesTotal)
}
