package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	invitationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitations_total",
			Help: "Invitation lifecycle events by outcome.",
		},
		[]string{"outcome"},
	)

	authorizationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Authorization gate decisions by policy and result.",
		},
		[]string{"policy", "result"},
	)

	auditAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Activity log appends that failed and were dropped.",
	})

	notificationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Outbound emails that could not be delivered.",
	})

	initOnce sync.Once
)

// Init registers every collector in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			invitationsTotal, authorizationDecisions, auditAppendFailures, notificationsFailed,
		)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InvitationEvent counts an invitation outcome (created, accepted, expired, rejected_*).
func InvitationEvent(outcome string) {
	invitationsTotal.WithLabelValues(outcome).Inc()
}

// AuthorizationDecision counts a gate decision.
func AuthorizationDecision(policy string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	authorizationDecisions.WithLabelValues(policy, result).Inc()
}

// AuditAppendFailed counts a dropped activity log entry.
func AuditAppendFailed() { auditAppendFailures.Inc() }

// NotificationFailed counts an undelivered email.
func NotificationFailed() { notificationsFailed.Inc() }

// CanonicalPath returns the route template matched by the router so that
// metric labels stay bounded. Unrouted requests collapse into one label.
func CanonicalPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Instrument measures request rate, latency and in-flight count. It must run
// as router middleware so the matched route is known.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
