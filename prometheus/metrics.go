package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tire-service/pkg/config"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Lifecycle operation metrics
	LifecycleOperationsCounter prometheus.CounterVec
	LifecycleRejectionsCounter prometheus.CounterVec

	// Stock metrics
	SkuStockGauge prometheus.GaugeVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Lifecycle operation metrics
	LifecycleOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_lifecycle_operations_total",
			Help: "Total number of completed tire lifecycle operations",
		},
		[]string{"operation"},
	)

	LifecycleRejectionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_lifecycle_rejections_total",
			Help: "Total number of rejected tire lifecycle operations",
		},
		[]string{"operation", "reason"},
	)

	// SKU stock gauge
	SkuStockGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_sku_stock",
			Help: "Current available stock per SKU",
		},
		[]string{"sku_code"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordLifecycleOperation increments the counter for completed operations
func RecordLifecycleOperation(operation string) {
	LifecycleOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordLifecycleRejection increments the counter for rejected operations
func RecordLifecycleRejection(operation, reason string) {
	LifecycleRejectionsCounter.WithLabelValues(operation, reason).Inc()
}

// UpdateSkuStock updates the stock gauge for a SKU
func UpdateSkuStock(skuCode string, count float64) {
	SkuStockGauge.WithLabelValues(skuCode).Set(count)
}
