package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var promRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relayer_engine_requests_total",
	Help: "Transaction requests handled by the engine, by outcome",
}, []string{"chainID", "outcome"})
