package gasprice

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"
)

func TestBump(t *testing.T) {
	testCases := []struct {
		name     string
		past     int64
		percent  int
		expected int64
	}{
		{"fifty percent", 100, 50, 150},
		{"floor applies below ten percent", 100, 5, 110},
		{"zero percent still bumps", 1000, 0, 1100},
		{"rounds up", 7, 50, 11},
		{"zero", 0, 50, 1},
		{"one wei", 1, 50, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Bump(big.NewInt(tc.past), tc.percent).Int64())
		})
	}

	require.Nil(t, Bump(nil, 50))
}

func TestBump_Monotonic(t *testing.T) {
	for _, percent := range []int{0, 1, 10, 50, 100} {
		fee := big.NewInt(3)
		for i := 0; i < 50; i++ {
			next := Bump(fee, percent)
			// next * 10 >= fee * 11
			lhs := new(big.Int).Mul(next, big.NewInt(10))
			rhs := new(big.Int).Mul(fee, big.NewInt(11))
			require.True(t, lhs.Cmp(rhs) >= 0, "percent %d step %d: %s -> %s", percent, i, fee, next)
			fee = next
		}
	}
}

func TestBumpGasPrice_KeepsShape(t *testing.T) {
	legacy := BumpGasPrice(GasPrice{GasPrice: big.NewInt(10)}, 50)
	assert.False(t, legacy.IsEIP1559())
	assert.Equal(t, int64(15), legacy.GasPrice.Int64())

	dynamic := BumpGasPrice(GasPrice{MaxFeePerGas: big.NewInt(100), MaxPriorityFeePerGas: big.NewInt(2)}, 50)
	assert.True(t, dynamic.IsEIP1559())
	assert.Nil(t, dynamic.GasPrice)
	assert.Equal(t, int64(150), dynamic.MaxFeePerGas.Int64())
	assert.Equal(t, int64(3), dynamic.MaxPriorityFeePerGas.Int64())
}

type fakeFees struct {
	price, tip, baseFee *big.Int
	err                 error
}

func (f *fakeFees) SuggestGasPrice(context.Context) (*big.Int, error)  { return f.price, f.err }
func (f *fakeFees) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tip, f.err }
func (f *fakeFees) LatestBaseFee(context.Context) (*big.Int, error)    { return f.baseFee, f.err }

func TestOracle(t *testing.T) {
	ctx := tests.Context(t)
	fees := &fakeFees{price: big.NewInt(30), tip: big.NewInt(1), baseFee: big.NewInt(20)}

	legacy := NewOracle(logger.Test(t), fees, Config{})
	gp, err := legacy.GetGasPrice(ctx)
	require.NoError(t, err)
	assert.False(t, gp.IsEIP1559())
	assert.Equal(t, int64(30), gp.GasPrice.Int64())

	dynamic := NewOracle(logger.Test(t), fees, Config{EIP1559: true, MinPriorityFee: big.NewInt(5)})
	gp, err = dynamic.GetGasPrice(ctx)
	require.NoError(t, err)
	assert.True(t, gp.IsEIP1559())
	assert.Equal(t, int64(5), gp.MaxPriorityFeePerGas.Int64())
	assert.Equal(t, int64(45), gp.MaxFeePerGas.Int64())

	fees.err = errors.New("rpc down")
	_, err = dynamic.GetGasPrice(ctx)
	require.ErrorContains(t, err, "rpc down")
}
