package pool

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md(addr string, balance int64, nonce uint64, pending int) Metadata {
	return Metadata{Address: common.HexToAddress(addr), Balance: big.NewInt(balance), Nonce: nonce, PendingCount: pending}
}

func TestRelayerQueue_FIFO(t *testing.T) {
	q := NewRelayerQueue(nil)
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(md("0x1", 10, 0, 0))
	q.Push(md("0x2", 20, 0, 0))
	assert.Equal(t, 2, q.Size())

	head, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x1"), head.Address)
	assert.Equal(t, 1, q.Size())
}

func TestRelayerQueue_Set(t *testing.T) {
	q := NewRelayerQueue(nil)
	q.Push(md("0x1", 10, 0, 0))

	assert.True(t, q.Set(md("0x1", 99, 4, 2)))
	got, ok := q.Get(common.HexToAddress("0x1"))
	require.True(t, ok)
	assert.Equal(t, big.NewInt(99), got.Balance)
	assert.Equal(t, uint64(4), got.Nonce)
	assert.Equal(t, 2, got.PendingCount)

	assert.False(t, q.Set(md("0x2", 1, 0, 0)))
	assert.Equal(t, 1, q.Size())
}

func TestRelayerQueue_CopiesBalances(t *testing.T) {
	q := NewRelayerQueue(nil)
	m := md("0x1", 10, 0, 0)
	q.Push(m)
	m.Balance.SetInt64(0)

	got, _ := q.Get(common.HexToAddress("0x1"))
	assert.Equal(t, big.NewInt(10), got.Balance)
	got.Balance.SetInt64(5)
	assert.Equal(t, big.NewInt(10), q.List()[0].Balance)
}

func TestRelayerQueue_Strategies(t *testing.T) {
	items := []Metadata{md("0x1", 5, 9, 2), md("0x2", 50, 1, 0), md("0x3", 20, 4, 1)}
	for _, tc := range []struct {
		name     string
		strategy SortStrategy
		head     string
	}{
		{"balance", ByBalance, "0x2"},
		{"nonce", ByNonce, "0x2"},
		{"pending", ByPendingCount, "0x2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := NewRelayerQueue(tc.strategy)
			for _, m := range items {
				q.Push(m)
			}
			head, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, common.HexToAddress(tc.head), head.Address)
		})
	}

	q := NewRelayerQueue(ByBalance)
	for _, m := range items {
		q.Push(m)
	}
	q.Set(md("0x1", 500, 9, 2))
	assert.Equal(t, common.HexToAddress("0x1"), q.List()[0].Address)
}

func TestRelayerQueue_ConcurrentPopPush(t *testing.T) {
	q := NewRelayerQueue(nil)
	for i := 1; i <= 10; i++ {
		q.Push(md(common.BigToAddress(big.NewInt(int64(i))).Hex(), 1, 0, 0))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if m, ok := q.Pop(); ok {
					q.Push(m)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, q.Size())
	seen := map[common.Address]bool{}
	for _, m := range q.List() {
		assert.False(t, seen[m.Address])
		seen[m.Address] = true
	}
}
