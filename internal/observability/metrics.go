package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "broadcasts_total",
		Help: "Ride requests broadcast to candidate drivers",
	})
	BroadcastFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "broadcast_fallbacks_total",
		Help: "Broadcasts that fell back to all connected drivers",
	})
	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch", Name: "accept_conflicts_total",
		Help: "Accept attempts that lost the first-acceptance race",
	})
	RidesReapedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reaper", Name: "rides_reaped_total",
		Help: "Orphaned rides retired by the reaper",
	}, []string{"sweep"})
	ReaperFallbackDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper", Name: "fallback_deletes_total",
		Help: "Orphan cleanups that needed the sequential fallback path",
	})
	ReaperFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper", Name: "cleanup_failures_total",
		Help: "Orphan cleanups abandoned until the next sweep",
	})
	ConfirmationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "confirm", Name: "tokens_active",
		Help: "Confirmation tokens currently held in the cache",
	})
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ws", Name: "connected_clients",
		Help: "WebSocket clients currently registered with the hub",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "api", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
