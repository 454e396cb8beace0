package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		stkPushesTotal,
		callbacksTotal,
		applicationsTotal,
	)
}

var (
	stkPushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_stk_pushes_total",
			Help: "STK push attempts by outcome (acknowledged/auth_failed/gateway_failed/rejected).",
		},
		[]string{"outcome"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "Gateway callbacks by result (completed/failed/orphaned/malformed).",
		},
		[]string{"result"},
	)

	applicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_applications_total",
			Help: "Loan application submissions by outcome (accepted/rejected).",
		},
		[]string{"outcome"},
	)
)

func IncSTKPush(outcome string) {
	stkPushesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncCallback(result string) {
	callbacksTotal.WithLabelValues(norm(result)).Inc()
}

func IncApplication(outcome string) {
	applicationsTotal.WithLabelValues(norm(outcome)).Inc()
}
