package monitor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	relayer "github.com/bcnmy/bundler-sub000"
)

var promRelayerBalance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{Name: "relayer_balance", Help: "Relayer account balances"},
	[]string{"account", "chainID", "denomination"},
)

func (m *balanceMonitor) setGauge(account common.Address, wei *big.Int) {
	promRelayerBalance.WithLabelValues(account.Hex(), m.chainID, "ETH").Set(relayer.WeiToEther(wei))
}
