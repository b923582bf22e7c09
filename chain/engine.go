package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/keystore"
	"github.com/bcnmy/bundler-sub000/network"
	"github.com/bcnmy/bundler-sub000/notify"
	"github.com/bcnmy/bundler-sub000/pool"
	"github.com/bcnmy/bundler-sub000/queue"
	"github.com/bcnmy/bundler-sub000/store"
	"github.com/bcnmy/bundler-sub000/txm"
)

const (
	DEFAULT_MAX_REQUEUE_ATTEMPTS = 20
	DEFAULT_CONCURRENCY          = 16
	DEFAULT_REQUEUE_DELAY        = time.Second
)

// Pool is the part of the relayer manager the engine allocates from.
//
//go:generate mockery --quiet --name Pool --output ../mocks/ --case=underscore
type Pool interface {
	GetActiveRelayer() (*keystore.Account, bool)
	AddActiveRelayer(ctx context.Context, address common.Address)
	PostTransactionMined(ctx context.Context, address common.Address)
	FundAndAddRelayerToActiveQueue(ctx context.Context, address common.Address) error
}

//go:generate mockery --quiet --name TransactionService --output ../mocks/ --case=underscore
type TransactionService interface {
	RelayTransaction(ctx context.Context, req relayer.TransactionRequest, signer network.Signer) (*txm.Result, error)
	DoesTransactionExist(transactionID string) bool
}

type EngineConfig struct {
	ChainID uint64
	// RequeueDelay is waited before a request is republished.
	RequeueDelay       time.Duration
	MaxRequeueAttempts int
	// Concurrency bounds the requests handled at once. There is no point in
	// exceeding the relayer count.
	Concurrency int
}

// Engine consumes transaction requests of one chain, allocates a relayer for
// each and hands them to the transaction service.
type Engine struct {
	lggr       logger.Logger
	cfg        EngineConfig
	pool       Pool
	txs        TransactionService
	queue      queue.Queue
	states     txm.StateRecorder
	notifier   notify.Publisher
	chainLabel string

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewEngine(lggr logger.Logger, cfg EngineConfig, pool Pool, txs TransactionService, q queue.Queue, states txm.StateRecorder, notifier notify.Publisher) *Engine {
	if cfg.MaxRequeueAttempts <= 0 {
		cfg.MaxRequeueAttempts = DEFAULT_MAX_REQUEUE_ATTEMPTS
	}
	if cfg.RequeueDelay <= 0 {
		cfg.RequeueDelay = DEFAULT_REQUEUE_DELAY
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DEFAULT_CONCURRENCY
	}
	return &Engine{
		lggr:       logger.Named(lggr, "Engine"),
		cfg:        cfg,
		pool:       pool,
		txs:        txs,
		queue:      q,
		states:     states,
		notifier:   notifier,
		chainLabel: strconv.FormatUint(cfg.ChainID, 10),
		sem:        make(chan struct{}, cfg.Concurrency),
	}
}

// Run consumes the queue until ctx is done and waits for the requests in
// progress.
func (e *Engine) Run(ctx context.Context) error {
	err := e.queue.Consume(ctx, e.dispatch)
	e.wg.Wait()
	return err
}

func (e *Engine) dispatch(ctx context.Context, msg queue.Message) error {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-e.sem }()
		if err := e.Handle(ctx, msg); err != nil {
			e.lggr.Errorw("Failed to handle request", "transactionID", msg.Request.TransactionID, "messageID", msg.ID, "err", err)
		}
	}()
	return nil
}

// Handle relays one request. A request that finds no idle relayer, or whose
// relayer ran out of funds, is republished with its attempt incremented. The
// message is acknowledged once it was handled or republished.
func (e *Engine) Handle(ctx context.Context, msg queue.Message) error {
	req := msg.Request
	lggr := logger.With(e.lggr, "transactionID", req.TransactionID, "attempt", msg.Attempt)

	if e.txs.DoesTransactionExist(req.TransactionID) {
		lggr.Warnw("Transaction already in flight, skipping request")
		promRequests.WithLabelValues(e.chainLabel, "duplicate").Inc()
		return e.queue.Ack(ctx, msg)
	}

	account, ok := e.pool.GetActiveRelayer()
	if !ok {
		lggr.Debugw("No relayer available")
		return e.requeue(ctx, lggr, msg, pool.ErrNoRelayerAvailable.Error())
	}
	from := account.Address()
	lggr = logger.With(lggr, "relayer", from)

	res, err := e.txs.RelayTransaction(ctx, req, account)
	switch {
	case err == nil:
		lggr.Infow("Transaction submitted", "txHash", res.Hash, "attempts", res.Attempts)
		e.pool.AddActiveRelayer(ctx, from)
		promRequests.WithLabelValues(e.chainLabel, "submitted").Inc()
	case errors.Is(err, txm.ErrRelayerNeedsFunding):
		lggr.Warnw("Relayer needs funding", "err", err)
		if ferr := e.pool.FundAndAddRelayerToActiveQueue(ctx, from); ferr != nil {
			lggr.Errorw("Failed to fund relayer", "err", ferr)
		}
		// nothing was submitted, release the pending slot
		e.pool.PostTransactionMined(ctx, from)
		promRequests.WithLabelValues(e.chainLabel, "needs_funding").Inc()
		return e.requeue(ctx, lggr, msg, "relayer needs funding")
	default:
		lggr.Errorw("Failed to relay transaction", "err", err)
		e.pool.AddActiveRelayer(ctx, from)
		e.pool.PostTransactionMined(ctx, from)
		promRequests.WithLabelValues(e.chainLabel, "failed").Inc()
	}
	return e.queue.Ack(ctx, msg)
}

func (e *Engine) requeue(ctx context.Context, lggr logger.Logger, msg queue.Message, reason string) error {
	next := msg.Attempt + 1
	if next >= e.cfg.MaxRequeueAttempts {
		lggr.Errorw("Giving up on request", "reason", reason)
		e.abandon(ctx, msg.Request, reason)
		promRequests.WithLabelValues(e.chainLabel, "abandoned").Inc()
		return e.queue.Ack(ctx, msg)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(utils.WithJitter(e.cfg.RequeueDelay)):
	}
	if err := e.queue.Publish(ctx, msg.Request, next); err != nil {
		return fmt.Errorf("failed to requeue %s: %w", msg.Request.TransactionID, err)
	}
	promRequests.WithLabelValues(e.chainLabel, "requeued").Inc()
	return e.queue.Ack(ctx, msg)
}

func (e *Engine) abandon(ctx context.Context, req relayer.TransactionRequest, reason string) {
	msg := fmt.Sprintf("abandoned after %d attempts: %s", e.cfg.MaxRequeueAttempts, reason)
	if err := e.states.UpdateState(ctx, e.cfg.ChainID, store.StateUpdate{
		TransactionID: req.TransactionID,
		State:         relayer.StateDropped,
		Message:       msg,
	}); err != nil {
		e.lggr.Errorw("Failed to record abandoned request", "transactionID", req.TransactionID, "err", err)
	}
	e.notifier.Publish(notify.NewEvent(notify.LevelError, e.cfg.ChainID, req.TransactionID, "%s", msg))
}
