package txm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/cache"
	"github.com/bcnmy/bundler-sub000/gasprice"
	"github.com/bcnmy/bundler-sub000/listener"
	"github.com/bcnmy/bundler-sub000/network"
	"github.com/bcnmy/bundler-sub000/nonce"
	"github.com/bcnmy/bundler-sub000/notify"
	"github.com/bcnmy/bundler-sub000/store"
)

var _ services.Service = (*Txm)(nil)

var (
	// ErrRelayerNeedsFunding is returned when the node rejects a submission
	// for lack of funds. The caller is expected to fund the relayer and
	// requeue the request.
	ErrRelayerNeedsFunding  = errors.New("relayer needs funding")
	ErrMaxFailedSubmissions = errors.New("max failed submissions reached")
	ErrUnrecognized         = errors.New("unrecognized submission error")
	ErrRetryInProgress      = errors.New("retry already in progress")
)

type Sender interface {
	SendTransaction(ctx context.Context, raw *relayer.RawTransaction, signer network.Signer) (common.Hash, error)
}

type StateRecorder interface {
	UpdateState(ctx context.Context, chainID uint64, u store.StateUpdate) error
}

type Listener interface {
	Notify(ctx context.Context, p listener.Params) bool
}

type Deps struct {
	Network  Sender
	Nonces   nonce.Manager
	GasPrice gasprice.Service
	Cache    cache.Cache
	States   StateRecorder
	Listener Listener
	Notifier notify.Publisher
	// OnMined is called once a watched transaction has left the in-flight set,
	// whatever its outcome.
	OnMined func(ctx context.Context, relayer common.Address, transactionID string)
	// OnNeedsFunding is called when a resubmission was rejected for lack of
	// funds. The transaction stays stuck until the next resend.
	OnNeedsFunding func(ctx context.Context, relayer common.Address)
}

// Result describes a relay or retry call. Events are published to the
// notifier when the call returns and are kept here for the caller.
type Result struct {
	TransactionID string
	Hash          common.Hash
	Raw           *relayer.RawTransaction
	Attempts      int
	// AlreadyKnown is set when the node already had the transaction.
	AlreadyKnown bool
	Events       []notify.Event
}

type Txm struct {
	services.StateMachine
	lggr         logger.Logger
	cfg          Config
	deps         Deps
	classifier   *Classifier
	locks        *AccountLocks
	accountStore *AccountStore
	retrying     mapset.Set[string]
	chainLabel   string

	stop services.StopChan
	wg   sync.WaitGroup
	// goMu guards running and wg.Add. Goroutines tracked by wg may spawn
	// more of them, so this must not be the StateMachine lock Close holds.
	goMu    sync.RWMutex
	running bool
}

func New(lggr logger.Logger, cfg Config, deps Deps) *Txm {
	cfg.setDefaults()
	return &Txm{
		lggr:         logger.Named(lggr, "TransactionService"),
		cfg:          cfg,
		deps:         deps,
		classifier:   NewClassifier(cfg.Rules),
		locks:        NewAccountLocks(),
		accountStore: NewAccountStore(),
		retrying:     mapset.NewSet[string](),
		chainLabel:   strconv.FormatUint(cfg.ChainID, 10),
		stop:         make(services.StopChan),
	}
}

func (t *Txm) Name() string {
	return t.lggr.Name()
}

func (t *Txm) HealthReport() map[string]error {
	return map[string]error{t.Name(): t.Healthy()}
}

func (t *Txm) Start(ctx context.Context) error {
	return t.StartOnce("TransactionService", func() error {
		t.goMu.Lock()
		t.running = true
		t.goMu.Unlock()
		t.wg.Add(1)
		go t.resendLoop()
		return nil
	})
}

func (t *Txm) Close() error {
	return t.StopOnce("TransactionService", func() error {
		t.goMu.Lock()
		t.running = false
		t.goMu.Unlock()
		close(t.stop)
		t.wg.Wait()
		return nil
	})
}

func (t *Txm) InflightCount() int {
	return t.accountStore.GetTotalInflightCount()
}

func (t *Txm) DoesTransactionExist(transactionID string) bool {
	return t.accountStore.DoesTransactionExist(transactionID)
}

// RelayTransaction builds, signs and submits req from signer's account. On
// success the receipt is awaited in the background and OnMined fires once the
// outcome is known. The per-address lock is held only until the nonce is
// reserved.
func (t *Txm) RelayTransaction(ctx context.Context, req relayer.TransactionRequest, signer network.Signer) (*Result, error) {
	from := signer.Address()
	lggr := logger.With(t.lggr, "transactionID", req.TransactionID, "relayer", from)
	res := &Result{TransactionID: req.TransactionID}
	defer t.publish(res)

	t.checkResubmissions(ctx, lggr, req.TransactionID, res, false)

	lock := t.locks.Get(from)
	lock.Lock()

	raw, err := t.buildTransaction(ctx, req, from)
	if err == nil {
		err = t.executeTransactionWithRetry(ctx, lggr, req.TransactionID, raw, signer, res)
	}
	if err != nil {
		lock.Unlock()
		t.onFailure(ctx, lggr, req.TransactionID, from, err, res)
		return res, err
	}

	t.recordSubmitted(ctx, lggr, req.TransactionID, from, res)
	t.deps.Nonces.IncrementNonce(from)
	t.accountStore.GetTxStore(from).AddSubmitted(SubmittedTx{
		TransactionID: req.TransactionID,
		Hash:          res.Hash,
		Raw:           res.Raw,
		Signer:        signer,
		SubmittedAt:   time.Now(),
	})
	lock.Unlock()

	lggr.Infow("Transaction submitted", "txHash", res.Hash, "nonce", res.Raw.Nonce, "attempts", res.Attempts, "alreadyKnown", res.AlreadyKnown)
	t.watch(listener.Params{
		TransactionHash: res.Hash,
		TransactionID:   req.TransactionID,
		RelayerAddress:  from,
		RawTransaction:  res.Raw,
	})
	return res, nil
}

// RetryTransaction resubmits a stuck transaction with fees bumped over raw.
// The listener is told about previousHash so that it can reconcile if the
// replaced transaction lands instead.
func (t *Txm) RetryTransaction(ctx context.Context, transactionID string, raw *relayer.RawTransaction, signer network.Signer, previousHash common.Hash) (*Result, error) {
	from := signer.Address()
	lggr := logger.With(t.lggr, "transactionID", transactionID, "relayer", from, "previousTxHash", previousHash)
	res := &Result{TransactionID: transactionID}

	if !t.retrying.Add(transactionID) {
		return res, ErrRetryInProgress
	}
	defer t.retrying.Remove(transactionID)
	defer t.publish(res)

	t.checkResubmissions(ctx, lggr, transactionID, res, true)
	promResubmissions.WithLabelValues(t.chainLabel).Inc()

	lock := t.locks.Get(from)
	lock.Lock()

	next := raw.Copy()
	t.bumpFees(next)
	if err := t.executeTransactionWithRetry(ctx, lggr, transactionID, next, signer, res); err != nil {
		lock.Unlock()
		t.onFailure(ctx, lggr, transactionID, from, err, res)
		return res, err
	}

	t.recordSubmitted(ctx, lggr, transactionID, from, res)
	if res.Raw.Nonce != raw.Nonce {
		t.deps.Nonces.IncrementNonce(from)
	}
	txStore := t.accountStore.GetTxStore(from)
	resubmissions := 1
	if prev, ok := txStore.Get(transactionID); ok {
		resubmissions = prev.Resubmissions + 1
	}
	txStore.AddSubmitted(SubmittedTx{
		TransactionID: transactionID,
		Hash:          res.Hash,
		Raw:           res.Raw,
		Signer:        signer,
		SubmittedAt:   time.Now(),
		Resubmissions: resubmissions,
	})
	lock.Unlock()

	lggr.Infow("Transaction resubmitted", "txHash", res.Hash, "nonce", res.Raw.Nonce, "resubmissions", resubmissions, "fees", feesOf(res.Raw))
	t.watch(listener.Params{
		TransactionHash:         res.Hash,
		TransactionID:           transactionID,
		RelayerAddress:          from,
		RawTransaction:          res.Raw,
		PreviousTransactionHash: previousHash,
	})
	return res, nil
}

func (t *Txm) buildTransaction(ctx context.Context, req relayer.TransactionRequest, from common.Address) (*relayer.RawTransaction, error) {
	if req.ChainID != 0 && req.ChainID != t.cfg.ChainID {
		return nil, fmt.Errorf("transaction %s targets chain %d, service runs on chain %d", req.TransactionID, req.ChainID, t.cfg.ChainID)
	}
	n, err := t.deps.Nonces.GetNonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	fees, err := t.deps.GasPrice.GetGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	value := new(big.Int)
	if req.Value != nil {
		value.Set(req.Value)
	}
	raw := &relayer.RawTransaction{
		From:     from,
		To:       req.To,
		Value:    value,
		Data:     append([]byte(nil), req.Data...),
		GasLimit: req.GasLimit,
		Nonce:    n,
		ChainID:  new(big.Int).SetUint64(t.cfg.ChainID),
	}
	applyFees(raw, fees)
	return raw, nil
}

// executeTransactionWithRetry submits raw until it is accepted, recovering
// from each classified error with an adjusted copy. It gives up after
// MaxFailedSubmissions failed sends.
func (t *Txm) executeTransactionWithRetry(ctx context.Context, lggr logger.Logger, transactionID string, raw *relayer.RawTransaction, signer network.Signer, res *Result) error {
	from := signer.Address()
	failedKey := cache.FailedSubmissionCountKey(t.cfg.ChainID, transactionID)
	if err := t.deps.Cache.Delete(ctx, failedKey); err != nil {
		lggr.Warnw("Failed to reset failed submission count", "err", err)
	}
	defer func() {
		if err := t.deps.Cache.Delete(context.WithoutCancel(ctx), failedKey); err != nil {
			lggr.Warnw("Failed to clear failed submission count", "err", err)
		}
	}()

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		res.Raw = raw
		hash, err := t.deps.Network.SendTransaction(ctx, raw, signer)
		if err == nil {
			t.deps.Nonces.MarkUsed(from, raw.Nonce)
			res.Hash = hash
			promSubmitted.WithLabelValues(t.chainLabel).Inc()
			return nil
		}

		nerr := network.Normalize(err)
		class := t.classifier.Classify(nerr)
		promSubmissionErrors.WithLabelValues(t.chainLabel, class.String()).Inc()
		lggr.Warnw("Transaction submission failed", "attempt", attempt, "class", class, "nonce", raw.Nonce, "fees", feesOf(raw), "err", nerr)

		switch class {
		case ClassAlreadyKnown:
			t.deps.Nonces.MarkUsed(from, raw.Nonce)
			res.Hash = hash
			res.AlreadyKnown = true
			return nil
		case ClassInsufficientFunds:
			return fmt.Errorf("%w: %w", ErrRelayerNeedsFunding, nerr)
		case ClassUnrecognized:
			return fmt.Errorf("%w: %w", ErrUnrecognized, nerr)
		}

		failed, cerr := t.deps.Cache.Increment(ctx, failedKey, 1)
		if cerr != nil {
			lggr.Warnw("Failed to increment failed submission count", "err", cerr)
			failed = int64(attempt)
		}
		if failed >= t.cfg.MaxFailedSubmissions || int64(attempt) >= t.cfg.MaxFailedSubmissions {
			return fmt.Errorf("%w: %d attempts, last error: %w", ErrMaxFailedSubmissions, attempt, nerr)
		}

		next, err := t.recover(ctx, class, nerr, raw)
		if err != nil {
			return err
		}
		raw = next
	}
}

// recover returns the candidate for the next attempt. raw is never modified.
func (t *Txm) recover(ctx context.Context, class Class, nerr *network.Error, raw *relayer.RawTransaction) (*relayer.RawTransaction, error) {
	next := raw.Copy()
	switch class {
	case ClassNonceTooLow:
		n, err := t.deps.Nonces.GetAndSetNonceFromNetwork(ctx, raw.From, true)
		if err != nil {
			return nil, fmt.Errorf("failed to refetch nonce: %w", err)
		}
		next.Nonce = n
	case ClassUnderpriced:
		t.bumpFees(next)
	case ClassPriorityFeeAboveMaxFee:
		t.bumpFees(next)
		if raw.MaxPriorityFeePerGas != nil {
			next.MaxPriorityFeePerGas = new(big.Int).Set(raw.MaxPriorityFeePerGas)
		}
	case ClassIntrinsicGasTooLow:
		next.GasLimit *= 2
	case ClassNetwork:
		if nerr.RetryAfter > 0 {
			select {
			case <-time.After(nerr.RetryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return next, nil
}

func (t *Txm) bumpFees(raw *relayer.RawTransaction) {
	bumped := t.deps.GasPrice.GetBumpedUpGasPrice(feesOf(raw), t.cfg.BumpPercent)
	applyFees(raw, bumped)
}

func (t *Txm) checkResubmissions(ctx context.Context, lggr logger.Logger, transactionID string, res *Result, increment bool) {
	key := cache.ResubmissionCountKey(t.cfg.ChainID, transactionID)
	var count int64
	var err error
	if increment {
		count, err = t.deps.Cache.Increment(ctx, key, 1)
	} else {
		count, err = cache.Counter(ctx, t.deps.Cache, key)
	}
	if err != nil {
		lggr.Warnw("Failed to read resubmission count", "err", err)
		return
	}
	if count > t.cfg.MaxResubmissions {
		lggr.Warnw("Max resubmissions exceeded", "count", count, "max", t.cfg.MaxResubmissions)
		res.Events = append(res.Events, notify.NewEvent(notify.LevelWarn, t.cfg.ChainID, transactionID,
			"max resubmissions exceeded (%d > %d)", count, t.cfg.MaxResubmissions))
	}
}

func (t *Txm) recordSubmitted(ctx context.Context, lggr logger.Logger, transactionID string, from common.Address, res *Result) {
	err := t.deps.States.UpdateState(ctx, t.cfg.ChainID, store.StateUpdate{
		TransactionID:   transactionID,
		TransactionHash: res.Hash,
		RelayerAddress:  from,
		State:           relayer.StateSubmitted,
	})
	if err != nil {
		lggr.Errorw("Failed to record submitted transaction", "err", err, "txHash", res.Hash)
	}
}

func (t *Txm) onFailure(ctx context.Context, lggr logger.Logger, transactionID string, from common.Address, cause error, res *Result) {
	if errors.Is(cause, ErrRelayerNeedsFunding) {
		lggr.Warnw("Relayer needs funding", "err", cause)
		res.Events = append(res.Events, notify.NewEvent(notify.LevelWarn, t.cfg.ChainID, transactionID,
			"relayer %s needs funding", from.Hex()))
		return
	}
	lggr.Errorw("Transaction dropped", "err", cause)
	t.dropped(ctx, transactionID, from, cause, res)
}

func (t *Txm) dropped(ctx context.Context, transactionID string, from common.Address, cause error, res *Result) {
	err := t.deps.States.UpdateState(ctx, t.cfg.ChainID, store.StateUpdate{
		TransactionID:  transactionID,
		RelayerAddress: from,
		State:          relayer.StateDropped,
		Message:        cause.Error(),
	})
	if err != nil {
		t.lggr.Errorw("Failed to record dropped transaction", "transactionID", transactionID, "err", err)
	}
	res.Events = append(res.Events, notify.NewEvent(notify.LevelError, t.cfg.ChainID, transactionID,
		"transaction dropped from relayer %s: %v", from.Hex(), cause))
	promDropped.WithLabelValues(t.chainLabel).Inc()
}

func (t *Txm) publish(res *Result) {
	if len(res.Events) == 0 || t.deps.Notifier == nil {
		return
	}
	t.deps.Notifier.Publish(res.Events...)
}

// watch waits for the receipt outside of the account lock.
func (t *Txm) watch(p listener.Params) {
	if !t.spawn(func(ctx context.Context) { t.awaitReceipt(ctx, p) }) {
		t.lggr.Warnw("Service not running, not watching transaction", "transactionID", p.TransactionID, "txHash", p.TransactionHash)
	}
}

// spawn runs fn on a goroutine tracked by wg while the service runs. It may
// be called from goroutines already tracked by wg.
func (t *Txm) spawn(fn func(ctx context.Context)) bool {
	t.goMu.RLock()
	defer t.goMu.RUnlock()
	if !t.running {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := t.stop.NewCtx()
		defer cancel()
		fn(ctx)
	}()
	return true
}

func (t *Txm) awaitReceipt(ctx context.Context, p listener.Params) {
	txStore := t.accountStore.GetTxStore(p.RelayerAddress)
	if !t.deps.Listener.Notify(ctx, p) {
		if ctx.Err() != nil {
			return
		}
		if err := txStore.MarkStuck(p.TransactionID); err != nil {
			t.lggr.Errorw("Failed to mark transaction stuck", "transactionID", p.TransactionID, "err", err)
			return
		}
		t.lggr.Warnw("Transaction stuck, queued for resubmission", "transactionID", p.TransactionID, "txHash", p.TransactionHash)
		return
	}
	t.finish(ctx, p.RelayerAddress, p.TransactionID)
}

// finish forgets a transaction whose outcome is final and hands the relayer
// back.
func (t *Txm) finish(ctx context.Context, from common.Address, transactionID string) {
	if err := t.accountStore.GetTxStore(from).Remove(transactionID); err != nil {
		t.lggr.Debugw("Transaction already removed", "transactionID", transactionID, "err", err)
	}
	if err := t.deps.Cache.Delete(ctx, cache.ResubmissionCountKey(t.cfg.ChainID, transactionID)); err != nil {
		t.lggr.Warnw("Failed to clear resubmission count", "transactionID", transactionID, "err", err)
	}
	if t.deps.OnMined != nil {
		t.deps.OnMined(ctx, from, transactionID)
	}
}

func feesOf(raw *relayer.RawTransaction) gasprice.GasPrice {
	return gasprice.GasPrice{
		GasPrice:             raw.GasPrice,
		MaxFeePerGas:         raw.MaxFeePerGas,
		MaxPriorityFeePerGas: raw.MaxPriorityFeePerGas,
	}
}

func applyFees(raw *relayer.RawTransaction, fees gasprice.GasPrice) {
	if fees.IsEIP1559() {
		raw.GasPrice = nil
		raw.MaxFeePerGas = new(big.Int).Set(fees.MaxFeePerGas)
		raw.MaxPriorityFeePerGas = new(big.Int).Set(fees.MaxPriorityFeePerGas)
		return
	}
	raw.MaxFeePerGas, raw.MaxPriorityFeePerGas = nil, nil
	if fees.GasPrice != nil {
		raw.GasPrice = new(big.Int).Set(fees.GasPrice)
	}
}
