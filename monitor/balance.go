package monitor

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
	"github.com/smartcontractkit/chainlink-common/pkg/types/core"
	"github.com/smartcontractkit/chainlink-common/pkg/utils"
)

type Config interface {
	BalancePollPeriod() time.Duration
}

type BalanceClient interface {
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
}

// NewBalanceMonitor exports the ether balance of every relayer in ks and of
// the owner accounts to prometheus, every BalancePollPeriod.
func NewBalanceMonitor(chainID string, cfg Config, lggr logger.Logger, ks core.Keystore, dial func() (BalanceClient, error), owners ...common.Address) services.Service {
	return newBalanceMonitor(chainID, cfg, lggr, ks, dial, owners...)
}

func newBalanceMonitor(chainID string, cfg Config, lggr logger.Logger, ks core.Keystore, dial func() (BalanceClient, error), owners ...common.Address) *balanceMonitor {
	m := &balanceMonitor{
		lggr:    logger.Named(lggr, "BalanceMonitor"),
		chainID: chainID,
		period:  cfg.BalancePollPeriod,
		ks:      ks,
		owners:  owners,
		dial:    dial,
		stop:    make(services.StopChan),
	}
	m.record = m.setGauge
	return m
}

type balanceMonitor struct {
	services.StateMachine
	lggr    logger.Logger
	chainID string
	period  func() time.Duration
	ks      core.Keystore
	owners  []common.Address
	dial    func() (BalanceClient, error)
	// record receives every balance read, tests replace it.
	record func(account common.Address, wei *big.Int)

	// client is only touched by the poll goroutine.
	client BalanceClient

	stop services.StopChan
	wg   sync.WaitGroup
}

func (m *balanceMonitor) Name() string {
	return m.lggr.Name()
}

func (m *balanceMonitor) Start(context.Context) error {
	return m.StartOnce("RelayerBalanceMonitor", func() error {
		m.wg.Add(1)
		go m.poll()
		return nil
	})
}

func (m *balanceMonitor) Close() error {
	return m.StopOnce("RelayerBalanceMonitor", func() error {
		close(m.stop)
		m.wg.Wait()
		return nil
	})
}

func (m *balanceMonitor) HealthReport() map[string]error {
	return map[string]error{m.Name(): m.Healthy()}
}

func (m *balanceMonitor) poll() {
	defer m.wg.Done()
	ctx, cancel := m.stop.NewCtx()
	defer cancel()

	timer := time.NewTimer(utils.WithJitter(m.period()))
	defer timer.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-timer.C:
			m.updateBalances(ctx)
			timer.Reset(utils.WithJitter(m.period()))
		}
	}
}

// accounts lists the owners followed by the relayers of the keystore, which
// reports them as hex addresses.
func (m *balanceMonitor) accounts(ctx context.Context) ([]common.Address, error) {
	relayers, err := m.ks.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]common.Address, 0, len(m.owners)+len(relayers))
	accounts = append(accounts, m.owners...)
	for _, hex := range relayers {
		if !common.IsHexAddress(hex) {
			m.lggr.Errorw("Skipping malformed keystore account", "account", hex)
			continue
		}
		accounts = append(accounts, common.HexToAddress(hex))
	}
	return accounts, nil
}

func (m *balanceMonitor) updateBalances(ctx context.Context) {
	accounts, err := m.accounts(ctx)
	if err != nil {
		m.lggr.Errorw("Failed to list relayer accounts", "err", err)
		return
	}
	if len(accounts) == 0 {
		return
	}
	if m.client == nil {
		if m.client, err = m.dial(); err != nil {
			m.lggr.Errorw("Failed to connect balance client", "err", err)
			return
		}
	}

	read := 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		wei, err := m.client.GetBalance(ctx, account)
		if err != nil {
			m.lggr.Warnw("Balance unavailable", "account", account, "err", err)
			continue
		}
		read++
		m.record(account, wei)
	}
	if read == 0 {
		// the node may be gone, dial again on the next poll
		m.client = nil
	}
}
