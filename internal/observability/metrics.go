package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_orders_total",
			Help: "Total booking attempts by outcome",
		},
		[]string{"status"},
	)

	SeatConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_seat_conflicts_total",
			Help: "Total bookings rejected on the seat uniqueness constraint",
		},
	)

	BookingTxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_booking_tx_retries_total",
			Help: "Total booking transactions re-run after a serialization abort",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "station_db_tx_seconds",
			Help:    "Duration of booking transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	AvailabilityCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_availability_cache_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_rate_limit_exceeded_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)
