// Package metrics exposes the game's Prometheus counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_rounds_total",
			Help: "Total playRound calls by result (win, loss, or the error kind)",
		},
		[]string{"result"},
	)

	roundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "game_round_duration_ms",
			Help:    "playRound duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	sessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_sessions_created_total",
			Help: "Sessions created by package type",
		},
		[]string{"package"},
	)

	sessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_session_transitions_total",
			Help: "Sessions leaving the active state by terminal status",
		},
		[]string{"status"},
	)

	prizeCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prize_codes_issued_total",
			Help: "Prize codes minted",
		},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prize_redemptions_total",
			Help: "Redemption attempts by result",
		},
		[]string{"result"},
	)

	casConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cas_conflicts_total",
			Help: "Conditional updates that lost to a concurrent writer",
		},
		[]string{"op"},
	)
)

// RecordRound records one playRound call. result is "win", "loss" or an error code.
func RecordRound(result string, started time.Time) {
	roundsTotal.WithLabelValues(result).Inc()
	roundDuration.Observe(float64(time.Since(started).Milliseconds()))
}

// SessionCreated counts a new session.
func SessionCreated(packageType string) {
	sessionsCreated.WithLabelValues(packageType).Inc()
}

// SessionTransition counts a session reaching a terminal status.
func SessionTransition(status string) {
	sessionTransitions.WithLabelValues(status).Inc()
}

// PrizeIssued counts a minted prize code.
func PrizeIssued() {
	prizeCodesIssued.Inc()
}

// RecordRedemption counts a redemption attempt. result is "success" or an error code.
func RecordRedemption(result string) {
	redemptions.WithLabelValues(result).Inc()
}

// CASConflict counts a lost conditional update.
func CASConflict(op string) {
	casConflicts.WithLabelValues(op).Inc()
}
