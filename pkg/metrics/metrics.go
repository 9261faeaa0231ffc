package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标管理器
type Metrics struct {
	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 转写任务指标
	transcriptionJobsTotal *prometheus.CounterVec
	transcriptionDuration  prometheus.Histogram

	// 音频上传指标
	audioUploadsTotal prometheus.Counter
	audioUploadBytes  prometheus.Histogram

	// 队列指标
	queuePublishTotal *prometheus.CounterVec

	// 飞书指标
	larkWebhookEventsTotal *prometheus.CounterVec
	larkAPICallsTotal      *prometheus.CounterVec

	// AI调用指标
	aiRequestsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		httpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),

		transcriptionJobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcription_jobs_total",
				Help: "Transcription jobs by final outcome",
			},
			[]string{"outcome"},
		),

		transcriptionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transcription_duration_seconds",
				Help:    "Wall time from job pickup to terminal state",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		audioUploadsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "audio_uploads_total",
				Help: "Accepted audio uploads",
			},
		),

		audioUploadBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audio_upload_size_bytes",
				Help:    "Size of accepted audio uploads",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		queuePublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_publish_total",
				Help: "Queue publish attempts by outcome",
			},
			[]string{"queue", "outcome"},
		),

		larkWebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lark_webhook_events_total",
				Help: "Lark webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),

		larkAPICallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lark_api_calls_total",
				Help: "Outbound Lark API calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		aiRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "Outbound AI requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	return m
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}

// RecordTranscriptionJob 记录转写任务结果（outcome: completed/failed）
func (m *Metrics) RecordTranscriptionJob(outcome string, duration time.Duration) {
	m.transcriptionJobsTotal.WithLabelValues(outcome).Inc()
	m.transcriptionDuration.Observe(duration.Seconds())
}

// RecordAudioUpload 记录音频上传
func (m *Metrics) RecordAudioUpload(sizeBytes int64) {
	m.audioUploadsTotal.Inc()
	m.audioUploadBytes.Observe(float64(sizeBytes))
}

// RecordQueuePublish 记录队列投递结果
func (m *Metrics) RecordQueuePublish(queue, outcome string) {
	m.queuePublishTotal.WithLabelValues(queue, outcome).Inc()
}

// RecordLarkWebhookEvent 记录飞书回调事件
func (m *Metrics) RecordLarkWebhookEvent(eventType, outcome string) {
	m.larkWebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordLarkAPICall 记录飞书开放平台调用
func (m *Metrics) RecordLarkAPICall(endpoint, outcome string) {
	m.larkAPICallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordAIRequest 记录AI调用
func (m *Metrics) RecordAIRequest(operation, outcome string) {
	m.aiRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default 全局指标实例
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}
