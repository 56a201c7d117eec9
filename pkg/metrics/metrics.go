package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 慢查询计数
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// 慢查询耗时（秒）
	DBSlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
	)

	// 服药事件处理结果计数
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medication_events_dispatched_total",
			Help: "Total number of medication events handled by the dispatcher",
		},
		[]string{"result"}, // result: sent, no_guardians, error, skipped
	)

	// 单个监护人推送结果计数
	GuardianDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_deliveries_total",
			Help: "Total number of per-guardian delivery attempts",
		},
		[]string{"status"}, // status: success, failed, no_token
	)

	// 单个事件分发耗时（秒）
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Time spent dispatching one medication event",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	// 清理任务删除的事件数
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Total number of processed queue records deleted by the retention sweeper",
		},
	)

	// 推送熔断器状态：0 closed, 1 open, 2 half-open
	PushCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_circuit_state",
			Help: "Current state of the push transport circuit breaker",
		},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(statement string, duration time.Duration) {
	DBSlowQueryCount.WithLabelValues(statement).Inc()
	DBSlowQueryDuration.Observe(duration.Seconds())
}

// IncrementEventDispatched 记录事件处理结果
func IncrementEventDispatched(result string) {
	EventsDispatched.WithLabelValues(result).Inc()
}

// IncrementGuardianDelivery 记录单个监护人推送结果
func IncrementGuardianDelivery(status string) {
	GuardianDeliveries.WithLabelValues(status).Inc()
}

// RecordDispatchDuration 记录事件分发耗时
func RecordDispatchDuration(duration time.Duration) {
	DispatchDuration.Observe(duration.Seconds())
}

// AddRetentionDeleted 累加清理删除数
func AddRetentionDeleted(n int) {
	RetentionDeleted.Add(float64(n))
}

// SetPushCircuitState 设置熔断器状态
func SetPushCircuitState(state int) {
	PushCircuitState.Set(float64(state))
}
