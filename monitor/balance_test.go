package monitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"
)

func TestBalanceMonitor(t *testing.T) {
	const chainID = "31337"
	ks := keystore{
		common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
	}
	owner := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	bals := map[common.Address]*big.Int{
		owner: big.NewInt(0),
		ks[0]: big.NewInt(1),
		ks[1]: big.NewInt(1_000_000_000_000_000_000),
	}
	exp := []update{
		{owner.Hex(), "0"},
		{ks[0].Hex(), "1"},
		{ks[1].Hex(), "1000000000000000000"},
	}

	client := &balanceClient{balances: bals}
	cfg := &config{balancePollPeriod: time.Second}

	b := newBalanceMonitor(chainID, cfg, logger.Test(t), ks, func() (BalanceClient, error) { return client, nil }, owner)
	m := &recordingMonitor{exp: len(exp), done: make(chan struct{})}
	b.record = m.update

	require.NoError(t, b.Start(tests.Context(t)))
	t.Cleanup(func() {
		assert.NoError(t, b.Close())
	})
	select {
	case <-time.After(tests.WaitTimeout(t)):
		t.Fatal("timed out waiting for balance monitor")
	case <-m.done:
	}

	assert.EqualValues(t, exp, m.Got())
}

func TestBalanceMonitor_ResetsReaderWhenAllFail(t *testing.T) {
	ks := keystore{common.HexToAddress("0x1")}
	calls := 0
	b := newBalanceMonitor("1", &config{balancePollPeriod: time.Hour}, logger.Test(t), ks, func() (BalanceClient, error) {
		calls++
		return &balanceClient{}, nil
	})

	b.updateBalances(tests.Context(t))
	assert.Nil(t, b.client)
	b.updateBalances(tests.Context(t))
	assert.Equal(t, 2, calls)
}

type config struct {
	balancePollPeriod time.Duration
}

func (c *config) BalancePollPeriod() time.Duration {
	return c.balancePollPeriod
}

type keystore []common.Address

func (k keystore) Accounts(ctx context.Context) (ks []string, err error) {
	for _, acc := range k {
		ks = append(ks, acc.Hex())
	}
	return
}

func (k keystore) Sign(ctx context.Context, id string, hash []byte) ([]byte, error) {
	// No Op
	return nil, nil
}

type balanceClient struct {
	balances map[common.Address]*big.Int
}

func (c *balanceClient) GetBalance(_ context.Context, address common.Address) (*big.Int, error) {
	if b, ok := c.balances[address]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("address not found")
}

type update struct{ acc, bal string }

type recordingMonitor struct {
	mu   sync.Mutex
	got  []update
	exp  int
	done chan struct{}
}

func (m *recordingMonitor) update(acc common.Address, wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.got) == m.exp {
		return
	}
	m.got = append(m.got, update{acc.Hex(), wei.String()})
	if len(m.got) == m.exp {
		close(m.done)
	}
}

func (m *recordingMonitor) Got() []update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]update(nil), m.got...)
}
