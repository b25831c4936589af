// Package metrics 提供 Prometheus 指标集合，每个实例持有独立 registry
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vectorplus"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// 传输层
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GRPCRequestsTotal   *prometheus.CounterVec
	GRPCRequestDuration *prometheus.HistogramVec

	// 策略计算
	StrategyCalls    *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	VolatilityPauses prometheus.Counter
	RiskScore        prometheus.Histogram

	// 期权
	OptionsCreated   *prometheus.CounterVec
	OptionsExercised prometheus.Counter
	ExerciseRejected *prometheus.CounterVec

	// 存储与消息
	CacheOps        *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
}

// New 创建并注册指标
func New(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "http_requests_total", Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	m.GRPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "grpc_requests_total", Help: "Total gRPC requests",
	}, []string{"method", "code"})
	m.GRPCRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "grpc_request_duration_seconds", Help: "gRPC request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	m.StrategyCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "strategy_calls_total", Help: "Amount getter invocations by strategy, side and result",
	}, []string{"strategy", "side", "result"})
	m.StrategyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "strategy_duration_seconds", Help: "Amount getter latency",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"strategy"})
	m.VolatilityPauses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "volatility_pauses_total", Help: "Calls short-circuited by the emergency threshold",
	})
	m.RiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "volatility_risk_score", Help: "Observed volatility risk scores",
		Buckets: prometheus.LinearBuckets(100, 100, 10),
	})

	m.OptionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "options_created_total", Help: "Options created by type",
	}, []string{"type"})
	m.OptionsExercised = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "options_exercised_total", Help: "Options exercised",
	})
	m.ExerciseRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "options_exercise_rejected_total", Help: "Rejected exercise attempts by error code",
	}, []string{"code"})

	m.CacheOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "cache_ops_total", Help: "Cache operations by result",
	}, []string{"op", "result"})
	m.DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "db_query_duration_seconds", Help: "Database query duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	m.EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: serviceName,
		Name: "events_published_total", Help: "Domain events published by topic and result",
	}, []string{"topic", "result"})

	for _, c := range []prometheus.Collector{
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.GRPCRequestsTotal, m.GRPCRequestDuration,
		m.StrategyCalls, m.StrategyDuration, m.VolatilityPauses, m.RiskScore,
		m.OptionsCreated, m.OptionsExercised, m.ExerciseRejected,
		m.CacheOps, m.DBQueryDuration, m.EventsPublished,
	} {
		reg.MustRegister(c)
	}
	return m
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStrategy 记录一次取数调用
func (m *Metrics) ObserveStrategy(strategy, side string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StrategyCalls.WithLabelValues(strategy, side, result).Inc()
	m.StrategyDuration.WithLabelValues(strategy).Observe(seconds)
}
