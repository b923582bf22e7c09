package txm

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayer "github.com/bcnmy/bundler-sub000"
)

func TestTxStore(t *testing.T) {
	s := NewTxStore()
	s.AddSubmitted(SubmittedTx{TransactionID: "a", Raw: &relayer.RawTransaction{Nonce: 5}})
	s.AddSubmitted(SubmittedTx{TransactionID: "b", Raw: &relayer.RawTransaction{Nonce: 2}})
	s.AddSubmitted(SubmittedTx{TransactionID: "c", Raw: &relayer.RawTransaction{Nonce: 9}})
	assert.Equal(t, 3, s.InflightCount())
	assert.Empty(t, s.GetStuck())

	require.NoError(t, s.MarkStuck("a"))
	require.NoError(t, s.MarkStuck("b"))
	require.Error(t, s.MarkStuck("missing"))

	stuck := s.GetStuck()
	require.Len(t, stuck, 2)
	assert.Equal(t, "b", stuck[0].TransactionID)
	assert.Equal(t, "a", stuck[1].TransactionID)

	// replacing an entry clears the stuck flag
	s.AddSubmitted(SubmittedTx{TransactionID: "a", Raw: &relayer.RawTransaction{Nonce: 5}, Resubmissions: 1})
	assert.Len(t, s.GetStuck(), 1)

	require.NoError(t, s.Remove("a"))
	require.Error(t, s.Remove("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, s.InflightCount())
}

func TestAccountStore(t *testing.T) {
	as := NewAccountStore()
	a, b := common.HexToAddress("0xa"), common.HexToAddress("0xb")
	as.GetTxStore(a).AddSubmitted(SubmittedTx{TransactionID: "1", Raw: &relayer.RawTransaction{}})
	as.GetTxStore(b).AddSubmitted(SubmittedTx{TransactionID: "2", Raw: &relayer.RawTransaction{}})
	require.NoError(t, as.GetTxStore(b).MarkStuck("2"))

	assert.Equal(t, 2, as.GetTotalInflightCount())
	assert.True(t, as.DoesTransactionExist("1"))
	assert.False(t, as.DoesTransactionExist("3"))

	stuck := as.GetAllStuck()
	require.Len(t, stuck, 1)
	assert.Equal(t, "2", stuck[b][0].TransactionID)
}

func TestAccountLocks(t *testing.T) {
	locks := NewAccountLocks()
	a := common.HexToAddress("0xa")
	assert.Same(t, locks.Get(a), locks.Get(a))
	assert.NotSame(t, locks.Get(a), locks.Get(common.HexToAddress("0xb")))

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := locks.Get(a)
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
