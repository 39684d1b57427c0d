// Package observability registers service-wide Prometheus collectors.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "session",
		Name:      "tracking_sessions_started_total",
		Help:      "Number of tracking sessions started.",
	})
	sessionsAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "session",
		Name:      "tracking_sessions_aborted_total",
		Help:      "Tracking sessions that ended without a territory claim.",
	}, []string{"reason"})
	territoriesClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "territory",
		Name:      "claims_total",
		Help:      "Number of territories claimed.",
	})
	territoryArea = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "territory",
		Name:      "claimed_area_sq_meters_total",
		Help:      "Cumulative claimed area in square meters.",
	})
	momentsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "moment",
		Name:      "recorded_total",
		Help:      "Number of completed-run moments recorded.",
	})
	xpAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runrealm",
		Subsystem: "moment",
		Name:      "xp_awarded_total",
		Help:      "Cumulative XP awarded for completed runs.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionsStarted,
		sessionsAborted,
		territoriesClaimed,
		territoryArea,
		momentsRecorded,
		xpAwarded,
	)
}

// RecordSessionStarted increments the started-sessions counter.
func RecordSessionStarted() {
	sessionsStarted.Inc()
}

// RecordSessionAborted counts a session that ended without a claim.
func RecordSessionAborted(reason string) {
	sessionsAborted.WithLabelValues(reason).Inc()
}

// RecordTerritoryClaimed counts a claim and its area.
func RecordTerritoryClaimed(areaSqM float64) {
	territoriesClaimed.Inc()
	territoryArea.Add(areaSqM)
}

// RecordMomentRecorded counts a moment and the XP it granted.
func RecordMomentRecorded(xp int64) {
	momentsRecorded.Inc()
	xpAwarded.Add(float64(xp))
}
