// Package metrics метрики Prometheus сервиса синхронизации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	HTTPActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_job_runs_total",
		Help: "Запуски задач синхронизации по результату",
	}, []string{"job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Длительность задачи синхронизации для одной конфигурации",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"job"})

	JobLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_job_last_success_timestamp_seconds",
		Help: "Время последнего успешного запуска задачи",
	}, []string{"job", "marketplace"})

	FeedOffers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_offers",
		Help: "Количество предложений в последнем сгенерированном фиде",
	}, []string{"marketplace"})

	FeedSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_skipped_products_total",
		Help: "Товары, не попавшие в фид, по причине",
	}, []string{"marketplace", "reason"})

	PriceQueueProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_queue_processed_total",
		Help: "Обработанные записи очереди цен",
	}, []string{"marketplace", "result"})

	MarketAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_api_requests_total",
		Help: "Запросы к API маркетплейса по коду ответа",
	}, []string{"method", "status"})

	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})
)
