package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	flowSignup       = "signup"
	flowLogin        = "login"
	flowAdminLogin   = "admin_login"
	flowAuthenticate = "authenticate"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accounts",
			Name:      "auth_attempts_total",
			Help:      "Total number of authentication attempts by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	passwordHashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "accounts",
			Name:      "password_hash_duration_seconds",
			Help:      "Duration of bcrypt password hashing",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

func observeAuthAttempt(flow string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	authAttemptsTotal.WithLabelValues(flow, outcome).Inc()
}

func observeHashDuration(d time.Duration) {
	passwordHashDuration.Observe(d.Seconds())
}
