package txm

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/network"
)

type SubmittedTx struct {
	TransactionID string
	Hash          common.Hash
	Raw           *relayer.RawTransaction
	Signer        network.Signer
	SubmittedAt   time.Time
	Resubmissions int
	// Stuck is set once waiting for the receipt failed.
	Stuck bool
}

// TxStore tracks submitted & unconfirmed txs of one relayer, keyed by transaction id
type TxStore struct {
	lock sync.RWMutex

	submitted map[string]*SubmittedTx
}

func NewTxStore() *TxStore {
	return &TxStore{
		submitted: map[string]*SubmittedTx{},
	}
}

// AddSubmitted inserts tx, replacing an earlier attempt with the same id.
func (s *TxStore) AddSubmitted(tx SubmittedTx) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.submitted[tx.TransactionID] = &tx
}

func (s *TxStore) MarkStuck(transactionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tx, exists := s.submitted[transactionID]
	if !exists {
		return fmt.Errorf("no such submitted transaction: %s", transactionID)
	}
	tx.Stuck = true
	return nil
}

// CountResubmission records a resubmission that did not replace tx.
func (s *TxStore) CountResubmission(transactionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tx, exists := s.submitted[transactionID]
	if !exists {
		return fmt.Errorf("no such submitted transaction: %s", transactionID)
	}
	tx.Resubmissions++
	return nil
}

func (s *TxStore) Remove(transactionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exists := s.submitted[transactionID]; !exists {
		return fmt.Errorf("no such submitted transaction: %s", transactionID)
	}
	delete(s.submitted, transactionID)
	return nil
}

func (s *TxStore) Get(transactionID string) (SubmittedTx, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	tx, ok := s.submitted[transactionID]
	if !ok {
		return SubmittedTx{}, false
	}
	return *tx, true
}

// GetStuck returns stuck transactions ordered by nonce.
func (s *TxStore) GetStuck() []SubmittedTx {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var stuck []SubmittedTx
	for _, tx := range maps.Values(s.submitted) {
		if tx.Stuck {
			stuck = append(stuck, *tx)
		}
	}
	slices.SortFunc(stuck, func(a, b SubmittedTx) int {
		switch {
		case a.Raw.Nonce < b.Raw.Nonce:
			return -1
		case a.Raw.Nonce > b.Raw.Nonce:
			return 1
		}
		return 0
	})
	return stuck
}

func (s *TxStore) InflightCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.submitted)
}

type AccountStore struct {
	store map[common.Address]*TxStore // map relayer address to txstore
	lock  sync.RWMutex
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		store: map[common.Address]*TxStore{},
	}
}

func (c *AccountStore) GetTxStore(fromAddress common.Address) *TxStore {
	c.lock.Lock()
	defer c.lock.Unlock()
	store, ok := c.store[fromAddress]
	if !ok {
		store = NewTxStore()
		c.store[fromAddress] = store
	}
	return store
}

func (c *AccountStore) GetTotalInflightCount() int {
	// use read lock for methods that read underlying data
	c.lock.RLock()
	defer c.lock.RUnlock()

	count := 0
	for _, store := range c.store {
		count += store.InflightCount()
	}

	return count
}

func (c *AccountStore) GetAllStuck() map[common.Address][]SubmittedTx {
	c.lock.RLock()
	defer c.lock.RUnlock()

	allStuck := map[common.Address][]SubmittedTx{}
	for fromAddress, store := range c.store {
		if stuck := store.GetStuck(); len(stuck) > 0 {
			allStuck[fromAddress] = stuck
		}
	}
	return allStuck
}

func (c *AccountStore) DoesTransactionExist(transactionID string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for _, store := range c.store {
		if _, ok := store.Get(transactionID); ok {
			return true
		}
	}
	return false
}

// AccountLocks hands out one mutex per relayer address. Mutexes are created
// lazily and kept for the lifetime of the process.
type AccountLocks struct {
	lock  sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: map[common.Address]*sync.Mutex{}}
}

func (l *AccountLocks) Get(address common.Address) *sync.Mutex {
	l.lock.Lock()
	defer l.lock.Unlock()
	m, ok := l.locks[address]
	if !ok {
		m = &sync.Mutex{}
		l.locks[address] = m
	}
	return m
}
