package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "position_updates_total", Help: "Total position updates processed"})
	RouteRequestsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "route_requests_total", Help: "Total route provider requests issued"})
	RouteCacheHitsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "route_cache_hits_total", Help: "Total route lookups served from cache"})
	RouteFailuresTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "route_failures_total", Help: "Total failed route provider requests"})
	GeofenceEventsTotal  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rendezvous", Name: "geofence_events_total", Help: "Geofence events by key and kind"},
		[]string{"key", "kind"},
	)
	TripsStartedTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "trips_started_total", Help: "Total trips started"})
	TripsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "trips_completed_total", Help: "Total trips completed"})
	TripPointsTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rendezvous", Name: "trip_points_total", Help: "Total trip points stored after dedup"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rendezvous", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rendezvous",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
