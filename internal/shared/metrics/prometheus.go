package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	appointmentsBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total number of appointments booked",
		},
		[]string{"specialization"},
	)

	appointmentsStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_status_changed_total",
			Help: "Total number of appointment status changes",
		},
		[]string{"from_status", "to_status"},
	)

	slotQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_queries_total",
			Help: "Total number of availability slot queries",
		},
		[]string{"specialization"},
	)

	bookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Total number of bookings rejected because the slot was taken",
		},
	)

	callDurationMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "call_duration_minutes",
			Help:    "Completed video call duration in minutes",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90},
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"channel", "status"},
	)

	chatbotRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_requests_total",
			Help: "Total number of chatbot requests",
		},
		[]string{"status"},
	)

	chatbotRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_request_duration_seconds",
			Help:    "Chatbot upstream request duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries created",
		},
	)

	rosterSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_sync_runs_total",
			Help: "Total number of HIS roster sync runs",
		},
		[]string{"source", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordAppointmentBooked records a successful booking
func RecordAppointmentBooked(specialization string) {
	appointmentsBooked.WithLabelValues(specialization).Inc()
}

// RecordStatusChange records an appointment status transition
func RecordStatusChange(fromStatus, toStatus string) {
	appointmentsStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordSlotQuery records an availability query
func RecordSlotQuery(specialization string) {
	slotQueriesTotal.WithLabelValues(specialization).Inc()
}

// RecordBookingConflict records a booking rejected by a slot conflict
func RecordBookingConflict() {
	bookingConflictsTotal.Inc()
}

// RecordCallDuration records the duration of a completed call
func RecordCallDuration(minutes int) {
	callDurationMinutes.Observe(float64(minutes))
}

// RecordNotification records a notification delivery attempt
func RecordNotification(channel, status string) {
	notificationsSent.WithLabelValues(channel, status).Inc()
}

// RecordChatbotRequest records a chatbot upstream call
func RecordChatbotRequest(status string, duration time.Duration) {
	chatbotRequestsTotal.WithLabelValues(status).Inc()
	chatbotRequestDuration.Observe(duration.Seconds())
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordRosterSync records an HIS roster sync run
func RecordRosterSync(source, status string) {
	rosterSyncRuns.WithLabelValues(source, status).Inc()
}
