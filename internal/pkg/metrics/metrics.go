package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RepaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent2repay_repays_total",
		Help: "The total number of repay executions",
	}, []string{"status", "asset"})

	RepayRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent2repay_repay_rejects_total",
		Help: "Total repay rejections by reason",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rent2repay_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AuthorizationsConfigured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent2repay_authorizations_configured_total",
		Help: "Cap configurations and revocations per asset",
	}, []string{"asset", "action"})

	EngineVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rent2repay_engine_version",
		Help: "Current engine logic version",
	})
)
