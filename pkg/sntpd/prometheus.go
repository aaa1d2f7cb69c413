package sntpd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics holds the server's Prometheus collectors. Each server gets
// its own registry so several instances can coexist in one process.
type promMetrics struct {
	registry *prometheus.Registry

	received   prometheus.Counter
	replied    prometheus.Counter
	dropped    *prometheus.CounterVec
	queueDepth prometheus.Gauge
	handleTime prometheus.Histogram
}

func newPromMetrics() *promMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &promMetrics{
		registry: reg,
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "sntpd_requests_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		replied: factory.NewCounter(prometheus.CounterOpts{
			Name: "sntpd_replies_sent_total",
			Help: "Total number of SNTP replies sent",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sntpd_requests_dropped_total",
			Help: "Total number of requests dropped without a reply",
		}, []string{"reason"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sntpd_request_queue_depth",
			Help: "Number of requests waiting for a worker",
		}),
		handleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sntpd_handle_duration_seconds",
			Help:    "Time from dequeue to reply sent",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
	}
}

func (p *promMetrics) recordReceived() {
	p.received.Inc()
}

func (p *promMetrics) recordReplied(seconds float64) {
	p.replied.Inc()
	p.handleTime.Observe(seconds)
}

func (p *promMetrics) recordDropped(reason string) {
	p.dropped.WithLabelValues(reason).Inc()
}

func (p *promMetrics) setQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}
