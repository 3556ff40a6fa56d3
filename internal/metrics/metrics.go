package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "logins_total", Help: "Login attempts by result",
	}, []string{"result"})
	OTPIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "portal", Name: "otp_issued_total", Help: "One-time codes issued",
	})
	OTPVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "otp_verifications_total", Help: "One-time code checks by result",
	}, []string{"result"})
	PasswordResets = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "portal", Name: "password_resets_total", Help: "Completed password resets",
	})
	OTPSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "portal", Name: "otp_swept_total", Help: "Expired one-time codes removed by the sweeper",
	})
	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "upstream_errors_total", Help: "Store and notifier failures",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(Logins, OTPIssued, OTPVerifications, PasswordResets, OTPSwept, UpstreamErrors)
}

func Handler() http.Handler { return promhttp.Handler() }
