// Package metrics holds the service's Prometheus collectors. They register
// with the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sessions opened, by outcome: started/limited/failed.
	SessionStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_session_starts_total",
			Help: "Assessment session start attempts",
		},
		[]string{"outcome"},
	)

	// Sessions currently open on this instance.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assessment_sessions_active",
			Help: "Open assessment sessions",
		},
	)

	// Submissions by pass/fail.
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_submissions_total",
			Help: "Scored assessment submissions",
		},
		[]string{"passed"},
	)

	// Score ratio of every submission.
	ScoreRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_score_ratio",
			Help:    "Score divided by question count per submission",
			Buckets: []float64{0.1, 0.25, 0.4, 0.55, 0.7, 0.85, 1},
		},
	)

	// Assist consumption, by kind: hint/fifty_fifty.
	AssistsUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_assists_used_total",
			Help: "Hints and 50/50s that consumed budget",
		},
		[]string{"kind"},
	)

	// Attempt requests, by event: created/approved/rejected.
	AttemptRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempt_requests_total",
			Help: "Attempt request workflow events",
		},
		[]string{"event"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_persistence_failures_total",
			Help: "Failed writes to the attempt store",
		},
		[]string{"op"},
	)
)
