package txm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "relayer_txm_submitted_total", Help: "Transactions accepted by the node"},
		[]string{"chainID"},
	)
	promSubmissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "relayer_txm_submission_errors_total", Help: "Failed submissions by error class"},
		[]string{"chainID", "class"},
	)
	promDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "relayer_txm_dropped_total", Help: "Transactions recorded as dropped"},
		[]string{"chainID"},
	)
	promResubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "relayer_txm_resubmissions_total", Help: "Stuck transaction resubmissions"},
		[]string{"chainID"},
	)
)
