package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sagarc03/filegate"
)

// GatewayMetrics implements filegate.OperationObserver.
type GatewayMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var _ filegate.OperationObserver = (*GatewayMetrics)(nil)

// NewGatewayMetrics registers gateway operation metrics on reg.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "bytes_total",
		Help:      "Total bytes moved by gateway operations.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "ops_total",
		Help:      "Total number of gateway operations by result.",
	}, []string{"op", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "op_duration_seconds",
		Help:      "Histogram of gateway operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	reg.MustRegister(bytes, ops, latency)

	return &GatewayMetrics{bytes: bytes, ops: ops, latency: latency}
}

// Observe records one completed operation. dur must be the total time spent
// in the operation, including streaming for downloads.
func (m *GatewayMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result(err)).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}

// result buckets errors into a small, fixed label set.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, filegate.ErrNotFound):
		return "not_found"
	case errors.Is(err, filegate.ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, filegate.ErrInvalidInput), errors.Is(err, filegate.ErrSizeLimitExceeded):
		return "rejected"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, filegate.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
