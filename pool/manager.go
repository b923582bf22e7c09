package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/cache"
	"github.com/bcnmy/bundler-sub000/keystore"
	"github.com/bcnmy/bundler-sub000/network"
	"github.com/bcnmy/bundler-sub000/txm"
)

var _ services.Service = (*Manager)(nil)

var ErrNoRelayerAvailable = errors.New("no relayer available")

const (
	DEFAULT_FUNDING_GAS_LIMIT = 21_000
	DEFAULT_FUNDING_LOCK_TTL  = 10 * time.Second
	fundingTransactionPrefix  = "fund-"
)

type Config struct {
	ChainID                       uint64
	MinRelayerCount               int
	MaxRelayerCount               int
	InactiveRelayerCountThreshold int
	NewRelayerInstanceCount       int
	// FundingBalanceThreshold is the balance under which a relayer is funded.
	FundingBalanceThreshold *big.Int
	FundingRelayerAmount    *big.Int
	FundingGasLimit         uint64
	FundingLockTTL          time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxRelayerCount < c.MinRelayerCount {
		c.MaxRelayerCount = c.MinRelayerCount
	}
	if c.NewRelayerInstanceCount <= 0 {
		c.NewRelayerInstanceCount = 1
	}
	if c.FundingBalanceThreshold == nil {
		c.FundingBalanceThreshold = new(big.Int)
	}
	if c.FundingRelayerAmount == nil {
		c.FundingRelayerAmount = new(big.Int)
	}
	if c.FundingGasLimit == 0 {
		c.FundingGasLimit = DEFAULT_FUNDING_GAS_LIMIT
	}
	if c.FundingLockTTL <= 0 {
		c.FundingLockTTL = DEFAULT_FUNDING_LOCK_TTL
	}
}

type Network interface {
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetNonce(ctx context.Context, address common.Address, pending bool) (uint64, error)
}

type Deriver interface {
	Derive(index uint32) (*keystore.Account, error)
}

//go:generate mockery --quiet --name Funder --output ../mocks/ --case=underscore
type Funder interface {
	RelayTransaction(ctx context.Context, req relayer.TransactionRequest, signer network.Signer) (*txm.Result, error)
}

type Locker interface {
	Acquire(ctx context.Context, resources []string, ttl time.Duration) (*cache.Lock, error)
	Unlock(ctx context.Context, lock *cache.Lock) error
}

type Deps struct {
	Network  Network
	Deriver  Deriver
	Keystore *keystore.Keystore
	// Owner is the master account relayers are funded from.
	Owner    *keystore.Account
	Funder   Funder
	Locker   Locker
	Strategy SortStrategy
}

// Manager is the relayer registry of one chain. Relayers are either idle, in
// the queue, or processing, in the processing map, never both. pendingCount
// only changes under mu, together with the move between the two.
type Manager struct {
	services.StateMachine
	lggr       logger.Logger
	cfg        Config
	deps       Deps
	chainLabel string

	idle       *RelayerQueue
	mu         sync.Mutex
	processing map[string]Metadata

	createMu  sync.Mutex
	nextIndex uint32
	scaling   atomic.Bool

	// relayers with an unconfirmed funding transaction, and the funding
	// transaction ids that settle them
	fundingInFlight mapset.Set[string]
	fundingMu       sync.Mutex
	fundingTxs      map[string]common.Address

	stop services.StopChan
	wg   sync.WaitGroup
	// goMu guards running and wg.Add without the StateMachine lock, which
	// Close holds while waiting on wg.
	goMu    sync.RWMutex
	running bool
}

func NewManager(lggr logger.Logger, cfg Config, deps Deps) *Manager {
	cfg.setDefaults()
	return &Manager{
		lggr:            logger.Named(lggr, "RelayerManager"),
		cfg:             cfg,
		deps:            deps,
		chainLabel:      strconv.FormatUint(cfg.ChainID, 10),
		idle:            NewRelayerQueue(deps.Strategy),
		processing:      map[string]Metadata{},
		fundingInFlight: mapset.NewSet[string](),
		fundingTxs:      map[string]common.Address{},
		stop:            make(services.StopChan),
	}
}

func (m *Manager) Name() string {
	return m.lggr.Name()
}

func (m *Manager) HealthReport() map[string]error {
	return map[string]error{m.Name(): m.Healthy()}
}

// Start derives and funds the initial MinRelayerCount relayers.
func (m *Manager) Start(ctx context.Context) error {
	return m.StartOnce("RelayerManager", func() error {
		m.goMu.Lock()
		m.running = true
		m.goMu.Unlock()

		addrs, err := m.CreateRelayers(ctx, m.cfg.MinRelayerCount)
		if err != nil {
			return err
		}
		if len(addrs) == 0 && m.cfg.MinRelayerCount > 0 {
			return fmt.Errorf("failed to create any of %d relayers", m.cfg.MinRelayerCount)
		}
		m.lggr.Infow("Relayers created", "count", len(addrs), "owner", m.deps.Owner.Address())
		if err := m.FundRelayers(ctx, addrs); err != nil {
			m.lggr.Errorw("Failed to fund initial relayers", "err", err)
		}
		return nil
	})
}

func (m *Manager) Close() error {
	return m.StopOnce("RelayerManager", func() error {
		m.goMu.Lock()
		m.running = false
		m.goMu.Unlock()
		close(m.stop)
		m.wg.Wait()
		return nil
	})
}

// GetActiveRelayer allocates an idle relayer. It returns false when none is
// idle.
func (m *Manager) GetActiveRelayer() (*keystore.Account, bool) {
	m.mu.Lock()
	md, ok := m.idle.Pop()
	if ok {
		md.PendingCount++
		m.processing[relayer.AddressKey(md.Address)] = md
	}
	idle, processing := m.idle.Size(), len(m.processing)
	m.mu.Unlock()
	m.updateProm(idle, processing)

	if !ok {
		return nil, false
	}
	account, found := m.deps.Keystore.Get(md.Address)
	if !found {
		m.lggr.Errorw("Allocated relayer missing from keystore", "relayer", md.Address)
		return nil, false
	}
	return account, true
}

// CreateRelayers derives n more relayers, continuing the derivation path
// after the last index handed out. A relayer whose balance or nonce cannot be
// read is skipped and its index is not reused.
func (m *Manager) CreateRelayers(ctx context.Context, n int) ([]common.Address, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	if room := m.cfg.MaxRelayerCount - m.deps.Keystore.Len(); n > room {
		n = room
	}
	if n <= 0 {
		return nil, nil
	}
	start := m.nextIndex
	m.nextIndex += uint32(n)

	var created []common.Address
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		index := start + uint32(i)
		account, err := m.deps.Deriver.Derive(index)
		if err != nil {
			m.lggr.Errorw("Failed to derive relayer", "index", index, "err", err)
			continue
		}
		addr := account.Address()
		balance, err := m.deps.Network.GetBalance(ctx, addr)
		if err != nil {
			m.lggr.Errorw("Failed to get relayer balance", "relayer", addr, "index", index, "err", err)
			continue
		}
		nonce, err := m.deps.Network.GetNonce(ctx, addr, true)
		if err != nil {
			m.lggr.Errorw("Failed to get relayer nonce", "relayer", addr, "index", index, "err", err)
			continue
		}

		m.deps.Keystore.Add(account)
		m.mu.Lock()
		m.idle.Push(Metadata{Address: addr, Balance: balance, Nonce: nonce})
		m.mu.Unlock()
		created = append(created, addr)
		m.lggr.Debugw("Relayer created", "relayer", addr, "index", index, "balance", balance, "nonce", nonce)
	}
	promRelayers.WithLabelValues(m.chainLabel).Set(float64(m.deps.Keystore.Len()))
	return created, nil
}

// FundRelayers tops up each relayer whose last known balance is below the
// threshold. Funding transactions are serialized across processes by a lock
// on the owner account.
func (m *Manager) FundRelayers(ctx context.Context, addresses []common.Address) error {
	var errs []error
	for _, addr := range addresses {
		if err := m.fundRelayer(ctx, addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) fundRelayer(ctx context.Context, addr common.Address) error {
	lggr := logger.With(m.lggr, "relayer", addr)
	if !m.HasBalanceBelowThreshold(addr) {
		lggr.Debugw("Relayer balance above threshold, not funding")
		return nil
	}
	key := relayer.AddressKey(addr)
	if !m.fundingInFlight.Add(key) {
		lggr.Debugw("Relayer funding already in flight")
		return nil
	}
	submitted := false
	defer func() {
		if !submitted {
			m.fundingInFlight.Remove(key)
		}
	}()

	lock, err := m.deps.Locker.Acquire(ctx, []string{cache.FundingLockKey(m.deps.Owner.Address(), m.cfg.ChainID)}, m.cfg.FundingLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire funding lock for %s: %w", addr, err)
	}
	defer func() {
		if err := m.deps.Locker.Unlock(context.WithoutCancel(ctx), lock); err != nil {
			lggr.Warnw("Failed to release funding lock", "err", err)
		}
	}()

	transactionID := fundingTransactionPrefix + uuid.NewString()
	m.fundingMu.Lock()
	m.fundingTxs[transactionID] = addr
	m.fundingMu.Unlock()

	res, err := m.deps.Funder.RelayTransaction(ctx, relayer.TransactionRequest{
		TransactionID: transactionID,
		From:          m.deps.Owner.Address(),
		To:            addr,
		Value:         new(big.Int).Set(m.cfg.FundingRelayerAmount),
		GasLimit:      m.cfg.FundingGasLimit,
		ChainID:       m.cfg.ChainID,
	}, m.deps.Owner)
	if err != nil {
		m.fundingMu.Lock()
		delete(m.fundingTxs, transactionID)
		m.fundingMu.Unlock()
		return fmt.Errorf("failed to fund relayer %s: %w", addr, err)
	}
	submitted = true
	promFunding.WithLabelValues(m.chainLabel).Inc()
	lggr.Infow("Funding transaction submitted", "transactionID", transactionID, "txHash", res.Hash, "amount", m.cfg.FundingRelayerAmount)
	return nil
}

// AddActiveRelayer returns a relayer from processing to the idle queue and
// scales the pool up when too few relayers are idle.
func (m *Manager) AddActiveRelayer(ctx context.Context, address common.Address) {
	key := relayer.AddressKey(address)
	m.mu.Lock()
	md, ok := m.processing[key]
	if ok {
		delete(m.processing, key)
		m.idle.Push(md)
	}
	idle, processing := m.idle.Size(), len(m.processing)
	m.mu.Unlock()
	m.updateProm(idle, processing)

	if !ok {
		m.lggr.Warnw("Relayer is not processing", "relayer", address)
		return
	}
	if idle < m.cfg.MinRelayerCount-m.cfg.InactiveRelayerCountThreshold {
		m.scaleUp()
	}
}

func (m *Manager) scaleUp() {
	if !m.scaling.CompareAndSwap(false, true) {
		return
	}
	m.goMu.RLock()
	defer m.goMu.RUnlock()
	if !m.running {
		m.scaling.Store(false)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.scaling.Store(false)
		ctx, cancel := m.stop.NewCtx()
		defer cancel()

		addrs, err := m.CreateRelayers(ctx, m.cfg.NewRelayerInstanceCount)
		if err != nil {
			m.lggr.Errorw("Failed to scale up relayers", "err", err)
		}
		if len(addrs) == 0 {
			return
		}
		m.lggr.Infow("Scaled up relayers", "created", len(addrs), "total", m.deps.Keystore.Len())
		if err := m.FundRelayers(ctx, addrs); err != nil {
			m.lggr.Errorw("Failed to fund new relayers", "err", err)
		}
	}()
}

// OnTransactionMined is the hook for the transaction service. Funding
// transactions settle the funded relayer, everything else is handed to
// PostTransactionMined.
func (m *Manager) OnTransactionMined(ctx context.Context, address common.Address, transactionID string) {
	m.fundingMu.Lock()
	funded, isFunding := m.fundingTxs[transactionID]
	delete(m.fundingTxs, transactionID)
	m.fundingMu.Unlock()

	if isFunding {
		m.fundingInFlight.Remove(relayer.AddressKey(funded))
		if err := m.refreshBalance(ctx, funded); err != nil {
			m.lggr.Warnw("Failed to refresh funded relayer balance", "relayer", funded, "err", err)
		}
		return
	}
	if address == m.deps.Owner.Address() {
		return
	}
	m.PostTransactionMined(ctx, address)
}

// PostTransactionMined releases one pending transaction of the relayer,
// refreshes its balance and funds it when the balance dropped below the
// threshold.
func (m *Manager) PostTransactionMined(ctx context.Context, address common.Address) {
	balance, err := m.deps.Network.GetBalance(ctx, address)
	known := m.update(address, func(md *Metadata) {
		if md.PendingCount > 0 {
			md.PendingCount--
		}
		if err == nil {
			md.Balance = balance
		}
	})
	if !known {
		m.lggr.Warnw("Mined transaction from unknown relayer", "relayer", address)
		return
	}
	if err != nil {
		m.lggr.Errorw("Failed to refresh relayer balance", "relayer", address, "err", err)
		return
	}
	if m.HasBalanceBelowThreshold(address) {
		if err := m.FundRelayers(ctx, []common.Address{address}); err != nil {
			m.lggr.Errorw("Failed to fund relayer", "relayer", address, "err", err)
		}
	}
}

// HasBalanceBelowThreshold reports whether the last known balance of the
// relayer is below the funding threshold. Unknown relayers report false.
func (m *Manager) HasBalanceBelowThreshold(address common.Address) bool {
	md, ok := m.lookup(address)
	if !ok {
		return false
	}
	return balanceOf(md).Cmp(m.cfg.FundingBalanceThreshold) < 0
}

// FundAndAddRelayerToActiveQueue funds a relayer that ran out of funds mid
// flight and returns it to the idle queue.
func (m *Manager) FundAndAddRelayerToActiveQueue(ctx context.Context, address common.Address) error {
	err := m.FundRelayer(ctx, address)
	m.AddActiveRelayer(ctx, address)
	return err
}

// FundRelayer refreshes the balance of the relayer and funds it when it is
// below the threshold. The relayer stays where it is.
func (m *Manager) FundRelayer(ctx context.Context, address common.Address) error {
	if err := m.refreshBalance(ctx, address); err != nil {
		m.lggr.Warnw("Failed to refresh relayer balance", "relayer", address, "err", err)
	}
	return m.FundRelayers(ctx, []common.Address{address})
}

// Relayers lists every relayer, idle and processing.
func (m *Manager) Relayers() []Metadata {
	idle, processing := m.Snapshot()
	return append(idle, processing...)
}

// Snapshot returns consistent copies of the idle queue and processing map.
func (m *Manager) Snapshot() (idle []Metadata, processing []Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idle = m.idle.List()
	for _, md := range m.processing {
		processing = append(processing, md.clone())
	}
	return idle, processing
}

func (m *Manager) refreshBalance(ctx context.Context, address common.Address) error {
	balance, err := m.deps.Network.GetBalance(ctx, address)
	if err != nil {
		return err
	}
	m.update(address, func(md *Metadata) { md.Balance = balance })
	return nil
}

func (m *Manager) lookup(address common.Address) (Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if md, ok := m.processing[relayer.AddressKey(address)]; ok {
		return md.clone(), true
	}
	return m.idle.Get(address)
}

// update applies fn to the relayer wherever it currently is.
func (m *Manager) update(address common.Address, fn func(md *Metadata)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := relayer.AddressKey(address)
	if md, ok := m.processing[key]; ok {
		fn(&md)
		m.processing[key] = md
		return true
	}
	md, ok := m.idle.Get(address)
	if !ok {
		return false
	}
	fn(&md)
	return m.idle.Set(md)
}

func (m *Manager) updateProm(idle, processing int) {
	promIdle.WithLabelValues(m.chainLabel).Set(float64(idle))
	promProcessing.WithLabelValues(m.chainLabel).Set(float64(processing))
}
