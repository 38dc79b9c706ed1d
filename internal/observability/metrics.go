package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "g2ctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "g2ctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	bleWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "g2ctl",
			Subsystem: "ble",
			Name:      "writes_total",
			Help:      "BLE frames written, by endpoint and service address.",
		},
		[]string{"endpoint", "service", "success"},
	)
	bleWriteBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "g2ctl",
			Subsystem: "ble",
			Name:      "write_bytes_total",
			Help:      "Total bytes written over BLE, by endpoint.",
		},
		[]string{"endpoint"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "g2ctl",
			Subsystem: "device",
			Name:      "handshakes_total",
			Help:      "Authentication handshake runs.",
		},
		[]string{"endpoint", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bleWrites, bleWriteBytes, handshakes)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBLEWrite(endpoint, service string, bytes int, success bool) {
	RegisterMetrics()
	bleWrites.WithLabelValues(endpoint, service, strconv.FormatBool(success)).Inc()
	if success {
		bleWriteBytes.WithLabelValues(endpoint).Add(float64(bytes))
	}
}

func RecordHandshake(endpoint string, success bool) {
	RegisterMetrics()
	handshakes.WithLabelValues(endpoint, strconv.FormatBool(success)).Inc()
}
