package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "The total number of login attempts by outcome",
	}, []string{"status"})

	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "The total number of completed registrations",
	})

	TokenRedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_redemptions_total",
		Help: "The total number of successful single-use token redemptions by kind",
	}, []string{"kind"})
)
