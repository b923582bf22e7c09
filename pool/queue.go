package pool

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"
)

// Metadata is what the pool knows about one relayer.
type Metadata struct {
	Address      common.Address
	Balance      *big.Int
	Nonce        uint64
	PendingCount int
}

func (m Metadata) clone() Metadata {
	if m.Balance != nil {
		m.Balance = new(big.Int).Set(m.Balance)
	}
	return m
}

// SortStrategy orders the idle queue. The head is popped first.
type SortStrategy func(a, b Metadata) int

// ByBalance puts the best funded relayer first.
func ByBalance(a, b Metadata) int {
	return balanceOf(b).Cmp(balanceOf(a))
}

func ByNonce(a, b Metadata) int {
	switch {
	case a.Nonce < b.Nonce:
		return -1
	case a.Nonce > b.Nonce:
		return 1
	}
	return 0
}

func ByPendingCount(a, b Metadata) int {
	return a.PendingCount - b.PendingCount
}

func balanceOf(m Metadata) *big.Int {
	if m.Balance == nil {
		return new(big.Int)
	}
	return m.Balance
}

// RelayerQueue is the idle collection of relayers. Pop and Push are each
// serialized by their own mutex; the slice is guarded separately so that any
// interleaving of the two stays consistent.
type RelayerQueue struct {
	popMu  sync.Mutex
	pushMu sync.Mutex

	lock     sync.RWMutex
	items    []Metadata
	strategy SortStrategy
}

// NewRelayerQueue returns a FIFO queue, or one kept ordered by strategy when
// it is not nil.
func NewRelayerQueue(strategy SortStrategy) *RelayerQueue {
	return &RelayerQueue{strategy: strategy}
}

func (q *RelayerQueue) Size() int {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return len(q.items)
}

func (q *RelayerQueue) List() []Metadata {
	q.lock.RLock()
	defer q.lock.RUnlock()
	list := make([]Metadata, len(q.items))
	for i, m := range q.items {
		list[i] = m.clone()
	}
	return list
}

func (q *RelayerQueue) Get(address common.Address) (Metadata, bool) {
	q.lock.RLock()
	defer q.lock.RUnlock()
	if i := q.indexOf(address); i >= 0 {
		return q.items[i].clone(), true
	}
	return Metadata{}, false
}

// Pop removes the head of the queue. It returns false when no relayer is
// idle, which callers treat as backpressure.
func (q *RelayerQueue) Pop() (Metadata, bool) {
	q.popMu.Lock()
	defer q.popMu.Unlock()

	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) == 0 {
		return Metadata{}, false
	}
	head := q.items[0]
	q.items = slices.Delete(q.items, 0, 1)
	return head, true
}

func (q *RelayerQueue) Push(m Metadata) {
	q.pushMu.Lock()
	defer q.pushMu.Unlock()

	q.lock.Lock()
	defer q.lock.Unlock()
	q.items = append(q.items, m.clone())
	q.sort()
}

// Set replaces the entry with the same address. It reports whether one was
// found.
func (q *RelayerQueue) Set(m Metadata) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	i := q.indexOf(m.Address)
	if i < 0 {
		return false
	}
	q.items[i] = m.clone()
	q.sort()
	return true
}

func (q *RelayerQueue) indexOf(address common.Address) int {
	return slices.IndexFunc(q.items, func(m Metadata) bool { return m.Address == address })
}

func (q *RelayerQueue) sort() {
	if q.strategy != nil {
		slices.SortStableFunc(q.items, q.strategy)
	}
}
