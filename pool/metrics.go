package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promRelayers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "relayer_pool_relayers", Help: "Relayers derived for the chain"},
		[]string{"chainID"},
	)
	promIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "relayer_pool_idle", Help: "Relayers in the idle queue"},
		[]string{"chainID"},
	)
	promProcessing = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "relayer_pool_processing", Help: "Relayers allocated to a transaction"},
		[]string{"chainID"},
	)
	promFunding = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "relayer_pool_funding_transactions_total", Help: "Funding transactions submitted from the owner account"},
		[]string{"chainID"},
	)
)
