package nonce

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

type Manager interface {
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	IncrementNonce(address common.Address)
	GetAndSetNonceFromNetwork(ctx context.Context, address common.Address, force bool) (uint64, error)
	MarkUsed(address common.Address, nonce uint64)
}

type Reader interface {
	GetNonce(ctx context.Context, address common.Address, pending bool) (uint64, error)
}

const DefaultCacheSize = 4096

var _ Manager = (*CachedManager)(nil)

// CachedManager keeps the next nonce per address in an LRU and falls back to
// the pending nonce reported by the network on a miss.
type CachedManager struct {
	lggr   logger.Logger
	reader Reader

	mu     sync.Mutex
	nonces *lru.Cache[common.Address, uint64]
	used   *lru.Cache[common.Address, uint64]
}

func NewCachedManager(lggr logger.Logger, reader Reader, size int) (*CachedManager, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	nonces, err := lru.New[common.Address, uint64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce cache: %w", err)
	}
	used, err := lru.New[common.Address, uint64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create used nonce cache: %w", err)
	}
	return &CachedManager{
		lggr:   logger.Named(lggr, "NonceManager"),
		reader: reader,
		nonces: nonces,
		used:   used,
	}, nil
}

func (m *CachedManager) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	m.mu.Lock()
	nonce, ok := m.nonces.Get(address)
	m.mu.Unlock()
	if ok {
		return m.afterUsed(address, nonce), nil
	}
	return m.GetAndSetNonceFromNetwork(ctx, address, false)
}

func (m *CachedManager) IncrementNonce(address common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if nonce, ok := m.nonces.Get(address); ok {
		m.nonces.Add(address, nonce+1)
	}
}

// GetAndSetNonceFromNetwork returns the cached nonce unless force is set or the
// address is not cached, in which case the pending nonce is fetched and stored.
func (m *CachedManager) GetAndSetNonceFromNetwork(ctx context.Context, address common.Address, force bool) (uint64, error) {
	if !force {
		m.mu.Lock()
		nonce, ok := m.nonces.Get(address)
		m.mu.Unlock()
		if ok {
			return m.afterUsed(address, nonce), nil
		}
	}

	nonce, err := m.reader.GetNonce(ctx, address, true)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch nonce from network: %w", err)
	}

	m.mu.Lock()
	previous, hadPrevious := m.nonces.Get(address)
	m.nonces.Add(address, nonce)
	m.mu.Unlock()

	if hadPrevious && previous != nonce {
		m.lggr.Debugw("Nonce reconciled with network", "address", address, "cached", previous, "network", nonce, "force", force)
	}
	return nonce, nil
}

func (m *CachedManager) MarkUsed(address common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.used.Get(address); ok && last >= nonce {
		return
	}
	m.used.Add(address, nonce)
}

// afterUsed never hands out a nonce at or below one already marked used, which
// covers a lagging pending nonce from a load balanced rpc.
func (m *CachedManager) afterUsed(address common.Address, nonce uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.used.Get(address); ok && nonce <= last {
		return last + 1
	}
	return nonce
}
