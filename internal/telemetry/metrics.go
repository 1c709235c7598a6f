package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/langchou/stationos/internal/models"
)

const namespace = "stationos"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics Prometheus 指标集合
type Metrics struct {
	signalsIngested  *prometheus.CounterVec
	evaluations      *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryAttempts prometheus.Histogram
	logFailures      *prometheus.CounterVec
	inboxReceived    *prometheus.CounterVec
	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New 创建指标并注册到 reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signalsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_ingested_total",
			Help:      "Signals accepted per type",
		}, []string{"type"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Station evaluations by resulting status",
		}, []string{"status"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decisions created by action, source and mode",
		}, []string{"action", "source", "mode"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound notification outcomes",
		}, []string{"action", "delivery_mode", "outcome"}),
		deliveryAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_attempts",
			Help:      "Attempts needed per outbound notification",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		logFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_failures_total",
			Help:      "Failure entries appended to the decision log",
		}, []string{"type"}),
		inboxReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_received_total",
			Help:      "Inbound tickets and reroute notifications by forward outcome",
		}, []string{"kind", "forward_status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.signalsIngested,
			m.evaluations,
			m.decisions,
			m.deliveries,
			m.deliveryAttempts,
			m.logFailures,
			m.inboxReceived,
			m.requestTotal,
			m.requestDuration,
		)
	}
	return m
}

// SignalIngested 记录一条入库信号
func (m *Metrics) SignalIngested(typ models.SignalType) {
	m.signalsIngested.WithLabelValues(string(typ)).Inc()
}

// Evaluated 记录一次站点评估
func (m *Metrics) Evaluated(status models.StationStatus) {
	m.evaluations.WithLabelValues(string(status)).Inc()
}

// DecisionCreated 记录新决策，若已执行同时记录下发结果
func (m *Metrics) DecisionCreated(d *models.Decision) {
	m.decisions.WithLabelValues(string(d.Action), d.Source, string(d.Mode)).Inc()
	m.Delivered(d)
}

// Delivered 记录下发结果，未下发的决策忽略
func (m *Metrics) Delivered(d *models.Decision) {
	r := d.ExecutionResult
	if r == nil {
		return
	}
	outcome := "success"
	if !r.Success {
		outcome = "failure"
	}
	m.deliveries.WithLabelValues(string(d.Action), string(r.DeliveryMode), outcome).Inc()
	if r.Attempts > 0 {
		m.deliveryAttempts.Observe(float64(r.Attempts))
	}
}

// LogFailure 记录决策日志中的失败条目
func (m *Metrics) LogFailure(typ models.LogEntryType) {
	m.logFailures.WithLabelValues(string(typ)).Inc()
}

// InboxReceived 记录一条收到的工单或改道通知
func (m *Metrics) InboxReceived(kind string, status models.ForwardStatus) {
	m.inboxReceived.WithLabelValues(kind, string(status)).Inc()
}

// Middleware gin 请求指标中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
