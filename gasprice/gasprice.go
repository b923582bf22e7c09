package gasprice

import (
	"context"
	"fmt"
	"math/big"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// GasPrice is either legacy shaped (GasPrice) or EIP-1559 shaped
// (MaxFeePerGas and MaxPriorityFeePerGas).
type GasPrice struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (g GasPrice) IsEIP1559() bool {
	return g.MaxFeePerGas != nil && g.MaxPriorityFeePerGas != nil
}

func (g GasPrice) String() string {
	if g.IsEIP1559() {
		return fmt.Sprintf("maxFeePerGas=%s maxPriorityFeePerGas=%s", g.MaxFeePerGas, g.MaxPriorityFeePerGas)
	}
	return fmt.Sprintf("gasPrice=%s", g.GasPrice)
}

type Service interface {
	GetGasPrice(ctx context.Context) (GasPrice, error)
	GetBumpedUpGasPrice(past GasPrice, percent int) GasPrice
}

// Bump raises past by percent, never by less than 10%. Values are rounded up
// so the result is always at least 1.1x past.
func Bump(past *big.Int, percent int) *big.Int {
	if past == nil {
		return nil
	}
	bumped := mulDivCeil(past, int64(100+percent), 100)
	floor := mulDivCeil(past, 11, 10)
	if bumped.Cmp(floor) < 0 {
		bumped = floor
	}
	if bumped.Cmp(past) <= 0 {
		bumped = new(big.Int).Add(past, big.NewInt(1))
	}
	return bumped
}

func BumpGasPrice(past GasPrice, percent int) GasPrice {
	return GasPrice{
		GasPrice:             Bump(past.GasPrice, percent),
		MaxFeePerGas:         Bump(past.MaxFeePerGas, percent),
		MaxPriorityFeePerGas: Bump(past.MaxPriorityFeePerGas, percent),
	}
}

func mulDivCeil(x *big.Int, num, den int64) *big.Int {
	n := new(big.Int).Mul(x, big.NewInt(num))
	d := big.NewInt(den)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

type FeeReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	LatestBaseFee(ctx context.Context) (*big.Int, error)
}

type Config struct {
	EIP1559 bool
	// BaseFeeMultiplier scales the latest base fee into MaxFeePerGas headroom.
	BaseFeeMultiplier int64
	MinPriorityFee    *big.Int
}

var _ Service = (*Oracle)(nil)

// Oracle quotes fees straight from the node.
type Oracle struct {
	lggr   logger.Logger
	reader FeeReader
	cfg    Config
}

func NewOracle(lggr logger.Logger, reader FeeReader, cfg Config) *Oracle {
	if cfg.BaseFeeMultiplier <= 0 {
		cfg.BaseFeeMultiplier = 2
	}
	return &Oracle{lggr: logger.Named(lggr, "GasPriceOracle"), reader: reader, cfg: cfg}
}

func (o *Oracle) GetGasPrice(ctx context.Context) (GasPrice, error) {
	if !o.cfg.EIP1559 {
		price, err := o.reader.SuggestGasPrice(ctx)
		if err != nil {
			return GasPrice{}, fmt.Errorf("failed to get gas price: %w", err)
		}
		return GasPrice{GasPrice: price}, nil
	}

	tip, err := o.reader.SuggestGasTipCap(ctx)
	if err != nil {
		return GasPrice{}, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	if o.cfg.MinPriorityFee != nil && tip.Cmp(o.cfg.MinPriorityFee) < 0 {
		tip = new(big.Int).Set(o.cfg.MinPriorityFee)
	}
	baseFee, err := o.reader.LatestBaseFee(ctx)
	if err != nil {
		return GasPrice{}, fmt.Errorf("failed to get base fee: %w", err)
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(o.cfg.BaseFeeMultiplier))
	maxFee.Add(maxFee, tip)
	o.lggr.Debugw("Quoted fees", "baseFee", baseFee, "maxFeePerGas", maxFee, "maxPriorityFeePerGas", tip)
	return GasPrice{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

func (o *Oracle) GetBumpedUpGasPrice(past GasPrice, percent int) GasPrice {
	return BumpGasPrice(past, percent)
}
