package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planora_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_enrollments_total",
		Help: "Enrollment attempts by outcome (enrolled, waitlisted, catch_up)",
	}, []string{"outcome"})

	cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_cancellations_total",
		Help: "Enrollment cancellations, labelled by whether a waitlisted client was promoted",
	}, []string{"promoted"})

	rosterConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_roster_version_conflicts_total",
		Help: "Session roster writes that lost an optimistic version check",
	})

	catchUpDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_catch_up_decisions_total",
		Help: "Catch-up approval decisions by level and decision",
	}, []string{"level", "decision"})

	emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_emails_total",
		Help: "Outbound emails by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func ObserveEnrollment(outcome string) {
	enrollments.WithLabelValues(outcome).Inc()
}

func ObserveCancellation(promoted bool) {
	label := "false"
	if promoted {
		label = "true"
	}
	cancellations.WithLabelValues(label).Inc()
}

func ObserveRosterConflict() {
	rosterConflicts.Inc()
}

// ObserveCatchUpDecision level is "client" or "session".
func ObserveCatchUpDecision(level, decision string) {
	catchUpDecisions.WithLabelValues(level, decision).Inc()
}

func ObserveEmail(result string) {
	emailsSent.WithLabelValues(result).Inc()
}
