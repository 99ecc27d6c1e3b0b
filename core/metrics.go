package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myflix_login_attempts_total",
			Help: "Login attempts by result (success, no_such_user, bad_password, invalid_request, error).",
		},
		[]string{"result"},
	)

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myflix_token_verifications_total",
			Help: "Bearer token verifications by result (success, token_invalid, token_expired, user_not_found, error).",
		},
		[]string{"result"},
	)
)

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if reason := FailureReason(err); reason != "" {
		return reason
	}
	return "error"
}
