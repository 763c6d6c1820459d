package discord

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счетчики запросов клиента.
type Metrics struct {
	requests    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics создает метрики и регистрирует их в reg. При reg == nil метрики
// считаются, но не публикуются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discord_requests_total",
			Help: "Discord REST requests by operation and status code",
		}, []string{"operation", "status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discord_rate_limited_total",
			Help: "Discord 429 responses by operation",
		}, []string{"operation", "global"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "discord_request_duration_seconds",
			Help:    "Discord REST request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.rateLimited, m.duration)
	}
	return m
}

func (m *Metrics) observe(op string, status int, d time.Duration) {
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) rateLimit(op string, global bool) {
	m.rateLimited.WithLabelValues(op, strconv.FormatBool(global)).Inc()
}
