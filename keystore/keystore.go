package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/types/core"
)

var _ core.Keystore = (*Keystore)(nil)

// Keystore holds every account the node can sign with, keyed by address.
type Keystore struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
}

func New() *Keystore {
	return &Keystore{accounts: map[common.Address]*Account{}}
}

func (k *Keystore) Add(account *Account) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.accounts[account.Address()] = account
}

func (k *Keystore) Get(address common.Address) (*Account, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	a, ok := k.accounts[address]
	return a, ok
}

func (k *Keystore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.accounts)
}

// Accounts returns the hex addresses of all accounts
func (k *Keystore) Accounts(ctx context.Context) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	accounts := make([]string, 0, len(k.accounts))
	for addr := range k.accounts {
		accounts = append(accounts, addr.Hex())
	}
	return accounts, nil
}

func (k *Keystore) Sign(ctx context.Context, account string, data []byte) ([]byte, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account %q", account)
	}
	a, ok := k.Get(common.HexToAddress(account))
	if !ok {
		return nil, fmt.Errorf("no such key: %s", account)
	}

	// used to check if the account exists.
	if data == nil {
		return nil, nil
	}

	return a.SignHash(data)
}
