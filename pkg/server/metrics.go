package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatory_server_requests_total",
			Help: "Total client requests, by outcome",
		},
		[]string{"outcome"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signatory_server_request_duration_seconds",
			Help:    "Wall time from connection handling start to response written",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signatory_server_active_connections",
			Help: "Client connections currently open",
		},
	)
)
