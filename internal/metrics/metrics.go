// Package metrics 进程内 Prometheus 指标，经 /metrics 暴露
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "custom_pricing"

// 报价/渲染结果标签
const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

var (
	registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency; websocket sessions are excluded.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	storefrontRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storefront",
		Name:      "pricing_total",
		Help:      "Render and quote calls by whether a rule changed the price.",
	}, []string{"endpoint", "outcome"})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "storefront",
		Name:      "active_sessions",
		Help:      "Open live pricing websocket sessions.",
	})

	warningChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rules",
		Name:      "warning_checks_total",
		Help:      "new_price warning checks by result.",
	}, []string{"result"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		storefrontRequests,
		activeSessions,
		warningChecks,
	)
}

// Handler 暴露本进程注册的全部指标
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// ObserveHTTP route 为空时记为 unmatched，避免路径参数撑爆标签
func ObserveHTTP(method, route string, status int, elapsed time.Duration, streaming bool) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	if !streaming {
		httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	}
}

// RecordStorefront endpoint 取 render / quote
func RecordStorefront(endpoint string, applied bool, err error) {
	outcome := OutcomeUnchanged
	switch {
	case err != nil:
		outcome = OutcomeError
	case applied:
		outcome = OutcomeApplied
	}
	storefrontRequests.WithLabelValues(endpoint, outcome).Inc()
}

// SessionOpened 返回的函数在会话结束时调用
func SessionOpened() (closed func()) {
	activeSessions.Inc()
	return activeSessions.Dec
}

// RecordWarningCheck 按是否产生预警计数
func RecordWarningCheck(warnings int, err error) {
	switch {
	case err != nil:
		warningChecks.WithLabelValues("error").Inc()
	case warnings > 0:
		warningChecks.WithLabelValues("warned").Inc()
	default:
		warningChecks.WithLabelValues("clean").Inc()
	}
}
