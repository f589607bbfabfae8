// metrics.go — Prometheus-метрики сервисного слоя.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rs_uploads_total",
		Help: "Число загрузок файлов по бэкендам и результатам.",
	}, []string{"backend", "status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rs_upload_bytes_total",
		Help: "Суммарный объём загруженных байт.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rs_downloads_total",
		Help: "Число скачиваний файлов по результатам.",
	}, []string{"status"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rs_download_bytes_total",
		Help: "Суммарный объём отданных байт.",
	})

	replicationTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rs_replication_tasks_total",
		Help: "Число задач репликации по результатам (done/fail/retry).",
	}, []string{"result"})

	replicationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rs_replication_duration_seconds",
		Help:    "Длительность задач репликации.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	replicationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rs_replication_queue_depth",
		Help: "Текущая глубина очереди репликации.",
	})

	cascadeDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rs_cascade_deletes_total",
		Help: "Число удалённых объектов каскадами по уровням (bucket/file/part).",
	}, []string{"level"})
)
