package monitor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBalanceMonitorUpdateProm(t *testing.T) {
	b := &balanceMonitor{
		chainID: "testChainID",
	}

	testAddr := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	testCases := []struct {
		name     string
		wei      *big.Int
		expected float64
	}{
		{"Zero balance", big.NewInt(0), 0},
		{"1 ETH", big.NewInt(1e18), 1},
		{"1.5 ETH", big.NewInt(1_500_000_000_000_000_000), 1.5},
		{"Large balance", new(big.Int).Mul(big.NewInt(1e18), big.NewInt(1_000_000)), 1_000_000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			promRelayerBalance.Reset()
			b.setGauge(testAddr, tc.wei)

			actual := testutil.ToFloat64(promRelayerBalance.WithLabelValues(testAddr.Hex(), b.chainID, "ETH"))
			assert.Equal(t, tc.expected, actual, "Unexpected metric value")
		})
	}
}
