package txm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/cache"
	"github.com/bcnmy/bundler-sub000/gasprice"
	"github.com/bcnmy/bundler-sub000/keystore"
	"github.com/bcnmy/bundler-sub000/listener"
	"github.com/bcnmy/bundler-sub000/network"
	"github.com/bcnmy/bundler-sub000/nonce"
	"github.com/bcnmy/bundler-sub000/notify"
	"github.com/bcnmy/bundler-sub000/store"
)

const testChainID = 31337

// scriptedNetwork fails sends with errs in order, then accepts.
type scriptedNetwork struct {
	mu   sync.Mutex
	errs []error
	sent []*relayer.RawTransaction
}

func (n *scriptedNetwork) SendTransaction(_ context.Context, raw *relayer.RawTransaction, _ network.Signer) (common.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, raw.Copy())
	hash := common.BigToHash(big.NewInt(int64(len(n.sent))))
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		return hash, err
	}
	return hash, nil
}

func (n *scriptedNetwork) Sent() []*relayer.RawTransaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*relayer.RawTransaction(nil), n.sent...)
}

type nonceReader struct {
	mu     sync.Mutex
	values []uint64
	calls  int
}

func (r *nonceReader) GetNonce(context.Context, common.Address, bool) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	v := r.values[0]
	if len(r.values) > 1 {
		r.values = r.values[1:]
	}
	return v, nil
}

func (r *nonceReader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fixedGasPrice struct {
	price gasprice.GasPrice
}

func (f fixedGasPrice) GetGasPrice(context.Context) (gasprice.GasPrice, error) {
	return f.price, nil
}

func (f fixedGasPrice) GetBumpedUpGasPrice(past gasprice.GasPrice, percent int) gasprice.GasPrice {
	return gasprice.BumpGasPrice(past, percent)
}

type stateLog struct {
	mu      sync.Mutex
	updates []store.StateUpdate
}

func (s *stateLog) UpdateState(_ context.Context, _ uint64, u store.StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return nil
}

func (s *stateLog) States() []relayer.TransactionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var states []relayer.TransactionState
	for _, u := range s.updates {
		states = append(states, u.State)
	}
	return states
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (e *eventLog) Publish(events ...notify.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, events...)
}

func (e *eventLog) Events() []notify.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]notify.Event(nil), e.events...)
}

// fakeListener answers Notify with the next value of results, true once they
// run out.
type fakeListener struct {
	mu      sync.Mutex
	results []bool
	params  chan listener.Params
}

func newFakeListener(results ...bool) *fakeListener {
	return &fakeListener{results: results, params: make(chan listener.Params, 16)}
}

func (l *fakeListener) Notify(_ context.Context, p listener.Params) bool {
	l.mu.Lock()
	ok := true
	if len(l.results) > 0 {
		ok = l.results[0]
		l.results = l.results[1:]
	}
	l.mu.Unlock()
	l.params <- p
	return ok
}

type harness struct {
	txm      *Txm
	network  *scriptedNetwork
	reader   *nonceReader
	states   *stateLog
	events   *eventLog
	cache    *cache.Memory
	listener *fakeListener
	mined    chan common.Address
	signer   *keystore.Account
}

func newHarness(t *testing.T, cfg Config, price gasprice.GasPrice, errs ...error) *harness {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	h := &harness{
		network:  &scriptedNetwork{errs: errs},
		reader:   &nonceReader{values: []uint64{3}},
		states:   &stateLog{},
		events:   &eventLog{},
		cache:    cache.NewMemory(100 * time.Millisecond),
		listener: newFakeListener(),
		mined:    make(chan common.Address, 16),
		signer:   keystore.NewAccount(key),
	}
	nonces, err := nonce.NewCachedManager(logger.Test(t), h.reader, nonce.DefaultCacheSize)
	require.NoError(t, err)

	cfg.ChainID = testChainID
	h.txm = New(logger.Test(t), cfg, Deps{
		Network:  h.network,
		Nonces:   nonces,
		GasPrice: fixedGasPrice{price: price},
		Cache:    h.cache,
		States:   h.states,
		Listener: h.listener,
		Notifier: h.events,
		OnMined: func(_ context.Context, addr common.Address, _ string) {
			h.mined <- addr
		},
	})
	return h
}

func legacyPrice(wei int64) gasprice.GasPrice {
	return gasprice.GasPrice{GasPrice: big.NewInt(wei)}
}

func request(id string) relayer.TransactionRequest {
	return relayer.TransactionRequest{
		TransactionID: id,
		To:            common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"),
		Value:         big.NewInt(0),
		Data:          []byte{0xde, 0xad},
		GasLimit:      100_000,
		ChainID:       testChainID,
	}
}

func TestRelayTransaction_Success(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	require.NoError(t, h.txm.Start(tests.Context(t)))
	t.Cleanup(func() { require.NoError(t, h.txm.Close()) })

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, uint64(3), res.Raw.Nonce)
	assert.Equal(t, h.signer.Address(), res.Raw.From)
	assert.Equal(t, big.NewInt(testChainID), res.Raw.ChainID)
	assert.Empty(t, res.Events)

	p := <-h.listener.params
	assert.Equal(t, res.Hash, p.TransactionHash)
	assert.Equal(t, "tx-1", p.TransactionID)
	assert.Equal(t, common.Hash{}, p.PreviousTransactionHash)

	select {
	case addr := <-h.mined:
		assert.Equal(t, h.signer.Address(), addr)
	case <-time.After(tests.WaitTimeout(t)):
		t.Fatal("relayer was not handed back")
	}
	assert.Equal(t, []relayer.TransactionState{relayer.StateSubmitted}, h.states.States())
	assert.False(t, h.txm.DoesTransactionExist("tx-1"))
}

func TestRelayTransaction_ChainMismatch(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	req := request("tx-1")
	req.ChainID = 1
	_, err := h.txm.RelayTransaction(tests.Context(t), req, h.signer)
	require.ErrorContains(t, err, "targets chain 1")
	assert.Empty(t, h.network.Sent())
	assert.Equal(t, []relayer.TransactionState{relayer.StateDropped}, h.states.States())
}

func TestRelayTransaction_ConcurrentNoncesAreUnique(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	ctx := tests.Context(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.txm.RelayTransaction(ctx, request(fmt.Sprintf("tx-%d", i)), h.signer)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, raw := range h.network.Sent() {
		assert.False(t, seen[raw.Nonce], "nonce %d sent twice", raw.Nonce)
		seen[raw.Nonce] = true
	}
	require.Len(t, seen, n)
	for i := uint64(3); i < 3+n; i++ {
		assert.True(t, seen[i], "missing nonce %d", i)
	}
	assert.Equal(t, 1, h.reader.Calls())
	assert.Equal(t, n, h.txm.InflightCount())
}

func TestExecuteTransactionWithRetry_NonceTooLow(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("Nonce too low: next nonce 7, tx nonce 3"))
	h.reader.values = []uint64{3, 7}

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)

	assert.Equal(t, 2, h.reader.Calls(), "one initial fetch and exactly one refetch")
	sent := h.network.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(3), sent[0].Nonce)
	assert.Equal(t, uint64(7), sent[1].Nonce)
	assert.Equal(t, uint64(7), res.Raw.Nonce)

	// the next relay continues after the refetched nonce
	res, err = h.txm.RelayTransaction(tests.Context(t), request("tx-2"), h.signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), res.Raw.Nonce)
}

func TestExecuteTransactionWithRetry_AlreadyKnown(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("already known"))

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)
	assert.True(t, res.AlreadyKnown)
	assert.Len(t, h.network.Sent(), 1)
	assert.Equal(t, common.BigToHash(big.NewInt(1)), res.Hash)
	assert.Equal(t, []relayer.TransactionState{relayer.StateSubmitted}, h.states.States())
}

func TestExecuteTransactionWithRetry_Underpriced(t *testing.T) {
	h := newHarness(t, Config{BumpPercent: 5}, legacyPrice(1_000),
		errors.New("replacement transaction underpriced"),
		errors.New("transaction underpriced"),
		errors.New("max fee per gas less than block base fee"),
	)

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)

	sent := h.network.Sent()
	require.Len(t, sent, 4)
	for i := 1; i < len(sent); i++ {
		prev, cur := sent[i-1].GasPrice, sent[i].GasPrice
		floor := new(big.Int).Div(new(big.Int).Mul(prev, big.NewInt(11)), big.NewInt(10))
		assert.True(t, cur.Cmp(floor) >= 0, "attempt %d: %s is below 1.1x %s", i, cur, prev)
		assert.Equal(t, sent[0].Nonce, sent[i].Nonce)
	}
	assert.Equal(t, sent[3].GasPrice, res.Raw.GasPrice)
}

func TestExecuteTransactionWithRetry_PriorityFeeRestored(t *testing.T) {
	price := gasprice.GasPrice{MaxFeePerGas: big.NewInt(100), MaxPriorityFeePerGas: big.NewInt(20)}
	h := newHarness(t, Config{}, price, errors.New("max priority fee per gas higher than max fee per gas"))

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)

	sent := h.network.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, big.NewInt(150), sent[1].MaxFeePerGas)
	assert.Equal(t, big.NewInt(20), sent[1].MaxPriorityFeePerGas)
	assert.Nil(t, res.Raw.GasPrice)
}

func TestExecuteTransactionWithRetry_IntrinsicGasTooLow(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("intrinsic gas too low"))

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), res.Raw.GasLimit)
	assert.Equal(t, uint64(100_000), h.network.Sent()[0].GasLimit)
}

func TestExecuteTransactionWithRetry_NetworkErrorRetriesUnchanged(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("dial tcp: connection refused"))

	_, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)
	sent := h.network.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0], sent[1])
}

func TestExecuteTransactionWithRetry_Bounded(t *testing.T) {
	errs := make([]error, 50)
	for i := range errs {
		errs[i] = errors.New("connection reset by peer")
	}
	h := newHarness(t, Config{}, legacyPrice(1_000), errs...)

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.ErrorIs(t, err, ErrMaxFailedSubmissions)
	assert.Len(t, h.network.Sent(), MAX_FAILED_SUBMISSIONS)
	assert.Equal(t, MAX_FAILED_SUBMISSIONS, res.Attempts)
	assert.Equal(t, []relayer.TransactionState{relayer.StateDropped}, h.states.States())
	failed, err := cache.Counter(tests.Context(t), h.cache, cache.FailedSubmissionCountKey(testChainID, "tx-1"))
	require.NoError(t, err)
	assert.Zero(t, failed, "failed submission count is cleared once the loop exits")

	// the nonce was never consumed
	h.network.errs = nil
	res, err = h.txm.RelayTransaction(tests.Context(t), request("tx-2"), h.signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Raw.Nonce)
}

func TestExecuteTransactionWithRetry_ClearsFailedCount(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("dial tcp: connection refused"), errors.New("already known"))
	ctx := tests.Context(t)

	_, err := h.txm.RelayTransaction(ctx, request("tx-1"), h.signer)
	require.NoError(t, err)
	_, err = h.cache.Get(ctx, cache.FailedSubmissionCountKey(testChainID, "tx-1"))
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestExecuteTransactionWithRetry_InsufficientFunds(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("insufficient funds for gas * price + value"))

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.ErrorIs(t, err, ErrRelayerNeedsFunding)
	assert.Len(t, h.network.Sent(), 1)
	assert.Empty(t, h.states.States())
	require.Len(t, res.Events, 1)
	assert.Equal(t, notify.LevelWarn, res.Events[0].Level)
}

func TestExecuteTransactionWithRetry_Unrecognized(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000), errors.New("execution reverted: AA21 didn't pay prefund"))

	res, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.ErrorIs(t, err, ErrUnrecognized)
	assert.Len(t, h.network.Sent(), 1)
	assert.Equal(t, []relayer.TransactionState{relayer.StateDropped}, h.states.States())

	events := h.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.LevelError, events[0].Level)
	assert.Equal(t, "tx-1", events[0].TransactionID)
	assert.Equal(t, res.Events, events)
}

func TestRelayTransaction_MaxResubmissionsNotifies(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	ctx := tests.Context(t)
	require.NoError(t, h.cache.Set(ctx, cache.ResubmissionCountKey(testChainID, "tx-1"), "6", 0))

	res, err := h.txm.RelayTransaction(ctx, request("tx-1"), h.signer)
	require.NoError(t, err, "exceeding resubmissions does not block the relay")
	require.Len(t, res.Events, 1)
	assert.Equal(t, notify.LevelWarn, res.Events[0].Level)
	assert.Contains(t, res.Events[0].Message, "max resubmissions exceeded")
	assert.Len(t, h.events.Events(), 1)
}

func TestRetryTransaction(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	ctx := tests.Context(t)

	first, err := h.txm.RelayTransaction(ctx, request("tx-1"), h.signer)
	require.NoError(t, err)

	res, err := h.txm.RetryTransaction(ctx, "tx-1", first.Raw, h.signer, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, first.Raw.Nonce, res.Raw.Nonce)
	assert.Equal(t, big.NewInt(1_500), res.Raw.GasPrice)
	assert.Equal(t, big.NewInt(1_000), first.Raw.GasPrice, "original raw transaction untouched")

	count, err := cache.Counter(ctx, h.cache, cache.ResubmissionCountKey(testChainID, "tx-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sub, ok := h.txm.accountStore.GetTxStore(h.signer.Address()).Get("tx-1")
	require.True(t, ok)
	assert.Equal(t, 1, sub.Resubmissions)
	assert.Equal(t, res.Hash, sub.Hash)

	// a later relay is not affected by the replacement
	next, err := h.txm.RelayTransaction(ctx, request("tx-2"), h.signer)
	require.NoError(t, err)
	assert.Equal(t, first.Raw.Nonce+1, next.Raw.Nonce)
}

func TestRetryTransaction_InProgress(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	h.txm.retrying.Add("tx-1")

	raw := &relayer.RawTransaction{From: h.signer.Address(), GasPrice: big.NewInt(1), ChainID: big.NewInt(testChainID)}
	_, err := h.txm.RetryTransaction(tests.Context(t), "tx-1", raw, h.signer, common.Hash{})
	require.ErrorIs(t, err, ErrRetryInProgress)
	assert.Empty(t, h.network.Sent())
}

func TestResender_ReplacesStuckTransaction(t *testing.T) {
	h := newHarness(t, Config{ResubmitPollPeriod: 50 * time.Millisecond}, legacyPrice(1_000))
	h.listener.results = []bool{false}
	require.NoError(t, h.txm.Start(tests.Context(t)))
	t.Cleanup(func() { require.NoError(t, h.txm.Close()) })

	first, err := h.txm.RelayTransaction(tests.Context(t), request("tx-1"), h.signer)
	require.NoError(t, err)

	p := <-h.listener.params
	assert.Equal(t, first.Hash, p.TransactionHash)

	var replacement listener.Params
	select {
	case replacement = <-h.listener.params:
	case <-time.After(tests.WaitTimeout(t)):
		t.Fatal("stuck transaction was not resubmitted")
	}
	assert.Equal(t, first.Hash, replacement.PreviousTransactionHash)
	assert.NotEqual(t, first.Hash, replacement.TransactionHash)
	assert.Equal(t, first.Raw.Nonce, replacement.RawTransaction.Nonce)

	select {
	case <-h.mined:
	case <-time.After(tests.WaitTimeout(t)):
		t.Fatal("relayer was not handed back")
	}
	assert.Equal(t, []relayer.TransactionState{relayer.StateSubmitted, relayer.StateSubmitted}, h.states.States())
}

func TestResender_GivesUp(t *testing.T) {
	h := newHarness(t, Config{ResendLimit: 1}, legacyPrice(1_000))
	ctx := tests.Context(t)
	from := h.signer.Address()

	h.txm.accountStore.GetTxStore(from).AddSubmitted(SubmittedTx{
		TransactionID: "tx-1",
		Raw:           &relayer.RawTransaction{From: from, Nonce: 1, GasPrice: big.NewInt(1), ChainID: big.NewInt(testChainID)},
		Signer:        h.signer,
		Resubmissions: 1,
		Stuck:         true,
	})
	h.txm.resendStuck(ctx)

	assert.Empty(t, h.network.Sent())
	assert.False(t, h.txm.DoesTransactionExist("tx-1"))
	assert.Equal(t, []relayer.TransactionState{relayer.StateDropped}, h.states.States())
	assert.Equal(t, from, <-h.mined)
	require.Len(t, h.events.Events(), 1)
}

func TestResender_NeedsFundingKeepsTransaction(t *testing.T) {
	h := newHarness(t, Config{ResendLimit: 2}, legacyPrice(1_000), errors.New("insufficient funds for gas * price + value"))
	ctx := tests.Context(t)
	from := h.signer.Address()

	var funded []common.Address
	h.txm.deps.OnNeedsFunding = func(_ context.Context, addr common.Address) {
		funded = append(funded, addr)
	}
	h.txm.accountStore.GetTxStore(from).AddSubmitted(SubmittedTx{
		TransactionID: "tx-1",
		Hash:          common.HexToHash("0x0a"),
		Raw:           &relayer.RawTransaction{From: from, Nonce: 1, GasPrice: big.NewInt(1_000), ChainID: big.NewInt(testChainID)},
		Signer:        h.signer,
		Resubmissions: 1,
		Stuck:         true,
	})

	h.txm.resendStuck(ctx)
	assert.Len(t, h.network.Sent(), 1)
	assert.Equal(t, []common.Address{from}, funded)
	assert.Empty(t, h.states.States())
	tx, ok := h.txm.accountStore.GetTxStore(from).Get("tx-1")
	require.True(t, ok, "still tracked until funded or given up")
	assert.True(t, tx.Stuck)
	assert.Equal(t, 2, tx.Resubmissions)

	// the next pass gives up and records the outcome
	h.txm.resendStuck(ctx)
	assert.Len(t, h.network.Sent(), 1)
	assert.False(t, h.txm.DoesTransactionExist("tx-1"))
	assert.Equal(t, []relayer.TransactionState{relayer.StateDropped}, h.states.States())
	assert.Equal(t, from, <-h.mined)
}

func TestClose_TrackedGoroutineCannotBlockStop(t *testing.T) {
	h := newHarness(t, Config{}, legacyPrice(1_000))
	require.NoError(t, h.txm.Start(tests.Context(t)))

	started, release := make(chan struct{}), make(chan struct{})
	var spawned bool
	require.True(t, h.txm.spawn(func(context.Context) {
		close(started)
		<-release
		// a funding transaction submitted while closing
		spawned = h.txm.spawn(func(context.Context) {})
	}))
	<-started

	done := make(chan error, 1)
	go func() { done <- h.txm.Close() }()
	require.Eventually(t, func() bool {
		h.txm.goMu.RLock()
		defer h.txm.goMu.RUnlock()
		return !h.txm.running
	}, tests.WaitTimeout(t), 10*time.Millisecond)
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(tests.WaitTimeout(t)):
		t.Fatal("Close did not return")
	}
	assert.False(t, spawned)
}
