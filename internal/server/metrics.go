package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identra",
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identra",
		Name:      "tokens_issued_total",
		Help:      "Token responses by grant type.",
	}, []string{"grant_type"})

	replaysDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "identra",
		Name:      "replays_detected_total",
		Help:      "Refresh token reuse events.",
	})
)
