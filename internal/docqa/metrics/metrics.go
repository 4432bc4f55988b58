// Package metrics 提供文档问答服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/docqa/pkg/infra/middleware/observability"
)

var _ observability.Recorder = (*Metrics)(nil)

// Model types used as the model_type label.
const (
	ModelQA        = "qa"
	ModelNER       = "ner"
	ModelEmbedding = "embedding"
)

// Metrics 服务指标集合，所有方法对 nil 接收者安全。
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	inference         *prometheus.HistogramVec
	activeSessions    prometheus.Gauge
	cachedItems       prometheus.Gauge
	documentsUploaded *prometheus.CounterVec
	nerTasks          *prometheus.CounterVec

	collectors []prometheus.Collector
}

// New creates the metrics on a fresh registry together with the Go and
// process collectors.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}
	m.initMetrics()

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "endpoint"},
	)

	m.inference = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_inference_seconds",
			Help:    "Model inference time in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"model_type"},
	)

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of active sessions",
	})

	m.cachedItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cached_items_total",
		Help: "Number of cached items",
	})

	m.documentsUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_uploaded_total",
			Help: "Uploaded documents by outcome",
		},
		[]string{"status"},
	)

	m.nerTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ner_tasks_total",
			Help: "Background entity recognition tasks by outcome",
		},
		[]string{"status"},
	)

	m.collectors = []prometheus.Collector{
		m.requests,
		m.requestLatency,
		m.inference,
		m.activeSessions,
		m.cachedItems,
		m.documentsUploaded,
		m.nerTasks,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus text exposition of the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// ObserveRequest 记录一次 HTTP 请求。
func (m *Metrics) ObserveRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, endpoint, status).Inc()
	m.requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveInference 记录一次模型推理耗时。
func (m *Metrics) ObserveInference(modelType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.inference.WithLabelValues(modelType).Observe(duration.Seconds())
}

// InferenceObserver returns a callback recording inference time for modelType.
func (m *Metrics) InferenceObserver(modelType string) func(time.Duration) {
	return func(d time.Duration) { m.ObserveInference(modelType, d) }
}

// SetActiveSessions 更新活跃会话数。
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// SetCachedItems 更新缓存条目数。
func (m *Metrics) SetCachedItems(n int) {
	if m == nil {
		return
	}
	m.cachedItems.Set(float64(n))
}

// IncDocumentsUploaded 记录一个上传文件的结果（success 或 error）。
func (m *Metrics) IncDocumentsUploaded(status string) {
	if m == nil {
		return
	}
	m.documentsUploaded.WithLabelValues(status).Inc()
}

// IncNERTasks 记录一次后台实体识别的结果（completed 或 failed）。
func (m *Metrics) IncNERTasks(status string) {
	if m == nil {
		return
	}
	m.nerTasks.WithLabelValues(status).Inc()
}
