package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medibook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medibook",
			Name:      "reservation_ops_total",
			Help:      "Reservation engine operations by op and result.",
		},
		[]string{"op", "result"},
	)

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medibook",
			Name:      "slots_generated_total",
			Help:      "Slots produced by the generator.",
		},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medibook",
			Name:      "holds_expired_total",
			Help:      "Pending bookings expired by the sweeper.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medibook",
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationOps, slotsGenerated, holdsExpired, notifications)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncReservation records one engine operation outcome.
func IncReservation(op, result string) {
	reservationOps.WithLabelValues(op, result).Inc()
}

// AddSlotsGenerated records slots produced by a generation run.
func AddSlotsGenerated(n int) {
	slotsGenerated.Add(float64(n))
}

// IncHoldsExpired records one expired hold.
func IncHoldsExpired() {
	holdsExpired.Inc()
}

// IncNotification records one dispatch attempt outcome.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
