package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/smartcontractkit/chainlink-common/pkg/chains"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
	"github.com/smartcontractkit/chainlink-common/pkg/types"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/cache"
	"github.com/bcnmy/bundler-sub000/config"
	"github.com/bcnmy/bundler-sub000/gasprice"
	"github.com/bcnmy/bundler-sub000/keystore"
	"github.com/bcnmy/bundler-sub000/listener"
	"github.com/bcnmy/bundler-sub000/monitor"
	"github.com/bcnmy/bundler-sub000/network"
	"github.com/bcnmy/bundler-sub000/nonce"
	"github.com/bcnmy/bundler-sub000/notify"
	"github.com/bcnmy/bundler-sub000/pool"
	"github.com/bcnmy/bundler-sub000/queue"
	"github.com/bcnmy/bundler-sub000/store"
	"github.com/bcnmy/bundler-sub000/txm"
)

// Opts carries the collaborators shared between chains, and the secrets.
type Opts struct {
	Config *config.TOMLConfig
	// Mnemonic seeds the relayer accounts.
	Mnemonic string
	// Owner funds the relayers.
	Owner    *keystore.Account
	Cache    cache.Cache
	Store    *store.DB
	Queue    queue.Queue
	Notifier notify.Publisher
	// Client overrides dialing a configured node.
	Client network.Client
}

// Chain wires the relayer pool, transaction service and listener of one
// chain and feeds them from its queue.
type Chain struct {
	services.StateMachine

	id    uint64
	cfg   *config.TOMLConfig
	lggr  logger.Logger
	owner *keystore.Account

	network *network.EthNetwork
	queue   queue.Queue
	txm     *txm.Txm
	pool    *pool.Manager
	monitor services.Service
	engine  *Engine

	stop services.StopChan
	wg   sync.WaitGroup
}

func NewChain(ctx context.Context, lggr logger.Logger, opts Opts) (*Chain, error) {
	cfg := opts.Config
	id, err := relayer.ParseChainID(*cfg.ChainID)
	if err != nil {
		return nil, err
	}
	lggr = logger.With(lggr, "chainID", id)

	netCfg := network.Config{
		ChainID:             id,
		ReceiptTimeout:      cfg.ReceiptTimeout(),
		ReceiptPollInterval: cfg.ReceiptPollInterval(),
	}
	var nw *network.EthNetwork
	if opts.Client != nil {
		nw = network.NewEthNetwork(lggr, opts.Client, netCfg)
	} else {
		node, err := cfg.ListNodes().SelectRandom()
		if err != nil {
			return nil, fmt.Errorf("failed to get node config: %w", err)
		}
		nw, err = network.Dial(ctx, lggr, node.URL.URL().String(), netCfg)
		if err != nil {
			return nil, err
		}
	}

	deriver, err := keystore.NewDeriver(opts.Mnemonic, *cfg.Relayers.NodePathIndex)
	if err != nil {
		return nil, err
	}
	nonces, err := nonce.NewCachedManager(lggr, nw, nonce.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	rules, err := txm.RulesWithOverrides(cfg.ErrorTaxonomy)
	if err != nil {
		return nil, fmt.Errorf("invalid error taxonomy: %w", err)
	}
	lstnr, err := listener.New(lggr, listener.Config{
		ChainID:                id,
		EntryPoints:            cfg.EntryPointAddresses(),
		FrontRunLookbackBlocks: *cfg.FrontRunLookbackBlocks,
	}, nw, opts.Store)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		id:      id,
		cfg:     cfg,
		lggr:    logger.Named(lggr, "Chain"),
		owner:   opts.Owner,
		network: nw,
		queue:   opts.Queue,
		stop:    make(services.StopChan),
	}

	c.txm = txm.New(lggr, txm.Config{
		ChainID:              id,
		MaxResubmissions:     *cfg.MaxResubmissions,
		MaxFailedSubmissions: *cfg.MaxFailedSubmissions,
		BumpPercent:          *cfg.BumpPercent,
		ResubmitPollPeriod:   cfg.ResubmitPollPeriod(),
		ResendLimit:          *cfg.ResendLimit,
		Rules:                rules,
	}, txm.Deps{
		Network:  nw,
		Nonces:   nonces,
		GasPrice: gasprice.NewOracle(lggr, nw, gasprice.Config{EIP1559: *cfg.EIP1559}),
		Cache:    opts.Cache,
		States:   opts.Store,
		Listener: lstnr,
		Notifier: opts.Notifier,
		OnMined: func(ctx context.Context, addr common.Address, transactionID string) {
			c.pool.OnTransactionMined(ctx, addr, transactionID)
		},
		OnNeedsFunding: func(ctx context.Context, addr common.Address) {
			if err := c.pool.FundRelayer(ctx, addr); err != nil {
				c.lggr.Errorw("Failed to fund relayer of stuck transaction", "relayer", addr, "err", err)
			}
		},
	})

	ks := keystore.New()
	c.pool = pool.NewManager(lggr, pool.Config{
		ChainID:                       id,
		MinRelayerCount:               *cfg.Relayers.MinCount,
		MaxRelayerCount:               *cfg.Relayers.MaxCount,
		InactiveRelayerCountThreshold: *cfg.Relayers.InactiveThreshold,
		NewRelayerInstanceCount:       *cfg.Relayers.NewInstanceCount,
		FundingBalanceThreshold:       cfg.Relayers.FundingBalanceThreshold.Int(),
		FundingRelayerAmount:          cfg.Relayers.FundingAmount.Int(),
		FundingLockTTL:                cfg.Relayers.FundingLockTTL.Duration(),
	}, pool.Deps{
		Network:  nw,
		Deriver:  deriver,
		Keystore: ks,
		Owner:    opts.Owner,
		Funder:   c.txm,
		Locker:   opts.Cache,
		Strategy: pool.ByBalance,
	})

	c.monitor = monitor.NewBalanceMonitor(strconv.FormatUint(id, 10), cfg, lggr, ks, func() (monitor.BalanceClient, error) {
		return nw, nil
	}, opts.Owner.Address())

	c.engine = NewEngine(lggr, EngineConfig{
		ChainID:            id,
		RequeueDelay:       cfg.RequeueDelay(),
		MaxRequeueAttempts: *cfg.MaxRequeueAttempts,
		Concurrency:        *cfg.Relayers.MaxCount,
	}, c.pool, c.txm, opts.Queue, opts.Store, opts.Notifier)

	return c, nil
}

func (c *Chain) ID() uint64 {
	return c.id
}

func (c *Chain) Pool() *pool.Manager {
	return c.pool
}

func (c *Chain) Txm() *txm.Txm {
	return c.txm
}

// Service interface
func (c *Chain) Name() string {
	return c.lggr.Name()
}

func (c *Chain) Start(ctx context.Context) error {
	return c.StartOnce("Chain", func() error {
		c.lggr.Debug("Starting")
		var ms services.MultiStart
		if err := ms.Start(ctx, c.txm, c.pool, c.monitor); err != nil {
			return err
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			ctx, cancel := c.stop.NewCtx()
			defer cancel()
			if err := c.engine.Run(ctx); err != nil {
				c.lggr.Errorw("Engine stopped", "err", err)
			}
		}()
		return nil
	})
}

func (c *Chain) Close() error {
	return c.StopOnce("Chain", func() error {
		c.lggr.Debug("Stopping")
		close(c.stop)
		c.wg.Wait()
		return services.CloseAll(c.monitor, c.pool, c.txm)
	})
}

func (c *Chain) Ready() error {
	return errors.Join(
		c.StateMachine.Ready(),
		c.txm.Ready(),
		c.pool.Ready(),
	)
}

func (c *Chain) HealthReport() map[string]error {
	report := map[string]error{c.Name(): c.Healthy()}
	services.CopyHealth(report, c.txm.HealthReport())
	services.CopyHealth(report, c.pool.HealthReport())
	services.CopyHealth(report, c.monitor.HealthReport())
	return report
}

// Submit publishes a request to the chain's queue. A request without a chain
// id is assigned to this chain.
func (c *Chain) Submit(ctx context.Context, req relayer.TransactionRequest) error {
	if req.ChainID == 0 {
		req.ChainID = c.id
	}
	if req.ChainID != c.id {
		return fmt.Errorf("request %s targets chain %d, not %d", req.TransactionID, req.ChainID, c.id)
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}
	return c.queue.Publish(ctx, req, 0)
}

// Transact sends amount from the owner account straight through the
// transaction service, bypassing the queue.
func (c *Chain) Transact(ctx context.Context, from, to string, amount *big.Int, balanceCheck bool) error {
	if !common.IsHexAddress(from) || common.HexToAddress(from) != c.owner.Address() {
		return fmt.Errorf("can only transact from the owner account %s", c.owner.Address())
	}
	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid recipient %q", to)
	}
	if balanceCheck {
		balance, err := c.network.GetBalance(ctx, c.owner.Address())
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return fmt.Errorf("balance %s of %s is below %s", balance, from, amount)
		}
	}
	_, err := c.txm.RelayTransaction(ctx, relayer.TransactionRequest{
		TransactionID: "transact-" + uuid.NewString(),
		From:          c.owner.Address(),
		To:            common.HexToAddress(to),
		Value:         amount,
		GasLimit:      pool.DEFAULT_FUNDING_GAS_LIMIT,
		ChainID:       c.id,
	}, c.owner)
	return err
}

// ChainService interface
func (c *Chain) GetChainStatus(ctx context.Context) (types.ChainStatus, error) {
	toml, err := c.cfg.TOMLString()
	if err != nil {
		return types.ChainStatus{}, err
	}
	return types.ChainStatus{
		ID:      strconv.FormatUint(c.id, 10),
		Enabled: c.cfg.IsEnabled(),
		Config:  toml,
	}, nil
}

func (c *Chain) ListNodeStatuses(ctx context.Context, pageSize int32, pageToken string) (stats []types.NodeStatus, nextPageToken string, total int, err error) {
	return chains.ListNodeStatuses(int(pageSize), pageToken, c.listNodeStatuses)
}

func (c *Chain) listNodeStatuses(start, end int) ([]types.NodeStatus, int, error) {
	stats := make([]types.NodeStatus, 0)
	total := len(c.cfg.Nodes)
	if start >= total {
		return stats, total, chains.ErrOutOfRange
	}
	if end > total {
		end = total
	}
	for _, node := range c.cfg.Nodes[start:end] {
		stat, err := nodeStatus(node, strconv.FormatUint(c.id, 10))
		if err != nil {
			return stats, total, err
		}
		stats = append(stats, stat)
	}
	return stats, total, nil
}

func nodeStatus(n *config.NodeConfig, id string) (types.NodeStatus, error) {
	var s types.NodeStatus
	s.ChainID = id
	s.Name = *n.Name
	b, err := toml.Marshal(n)
	if err != nil {
		return types.NodeStatus{}, err
	}
	s.Config = string(b)
	return s, nil
}
