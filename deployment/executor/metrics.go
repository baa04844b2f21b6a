package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultConfirmed = "confirmed"
	resultRejected  = "rejected"
	resultTimedOut  = "timed_out"
	resultError     = "error"
)

var (
	promTxTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tleaf_deploy_tx_total",
			Help: "Deployment transactions by message kind and result",
		},
		[]string{"kind", "result"},
	)
	promTxConfirmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tleaf_deploy_tx_confirm_seconds",
			Help:    "Time from broadcast to confirmation",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"kind"},
	)
)
