package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/store"
)

const DEFAULT_FRONT_RUN_LOOKBACK_BLOCKS = 100

const (
	outcomeConfirmed = "confirmed"
	outcomeFailed    = "failed"
	outcomeFrontRun  = "front_run"
	outcomeTimeout   = "timeout"
)

var promOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{Name: "relayer_listener_outcomes_total", Help: "Mined transaction outcomes observed by the listener"},
	[]string{"chainID", "outcome"},
)

// Params identifies a submitted transaction to watch.
type Params struct {
	TransactionHash common.Hash
	TransactionID   string
	RelayerAddress  common.Address
	RawTransaction  *relayer.RawTransaction
	// PreviousTransactionHash is the hash the resubmission replaced, if any.
	PreviousTransactionHash common.Hash
}

type Network interface {
	WaitForTransaction(ctx context.Context, hash common.Hash, transactionID string) (*types.Receipt, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

type Persistence interface {
	UpdateState(ctx context.Context, chainID uint64, u store.StateUpdate) error
	GetUserOperationsByTransactionID(ctx context.Context, chainID uint64, transactionID string) ([]store.UserOperationRecord, error)
	UpdateUserOperation(ctx context.Context, op *store.UserOperationRecord) error
}

type Config struct {
	ChainID uint64
	// EntryPoints restricts which contracts' UserOperationEvents are trusted.
	// Empty accepts any emitter.
	EntryPoints            []common.Address
	FrontRunLookbackBlocks uint64
}

type Listener struct {
	lggr    logger.Logger
	cfg     Config
	network Network
	db      Persistence
	parser  *eventParser
	chainID string
}

func New(lggr logger.Logger, cfg Config, network Network, db Persistence) (*Listener, error) {
	parser, err := newEventParser()
	if err != nil {
		return nil, err
	}
	if cfg.FrontRunLookbackBlocks == 0 {
		cfg.FrontRunLookbackBlocks = DEFAULT_FRONT_RUN_LOOKBACK_BLOCKS
	}
	return &Listener{
		lggr:    logger.Named(lggr, "TransactionListener"),
		cfg:     cfg,
		network: network,
		db:      db,
		parser:  parser,
		chainID: strconv.FormatUint(cfg.ChainID, 10),
	}, nil
}

// Notify waits for the receipt of p.TransactionHash and records the outcome.
// It returns false when no receipt could be obtained, meaning the transaction
// is still pending and may need a resubmission.
func (l *Listener) Notify(ctx context.Context, p Params) bool {
	lggr := logger.With(l.lggr, "transactionID", p.TransactionID, "txHash", p.TransactionHash, "relayer", p.RelayerAddress)

	receipt, err := l.network.WaitForTransaction(ctx, p.TransactionHash, p.TransactionID)
	if err != nil && p.PreviousTransactionHash != (common.Hash{}) {
		prev, perr := l.network.GetTransactionReceipt(ctx, p.PreviousTransactionHash)
		if perr == nil && prev != nil {
			lggr.Infow("Replaced transaction was mined", "previousTxHash", p.PreviousTransactionHash)
			receipt, err = prev, nil
		}
	}
	if err != nil {
		lggr.Warnw("No receipt for transaction", "err", err)
		promOutcomes.WithLabelValues(l.chainID, outcomeTimeout).Inc()
		return false
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		err = l.onSuccess(ctx, p, receipt)
	} else {
		err = l.onFailure(ctx, p, receipt)
	}
	if err != nil {
		lggr.Errorw("Failed to record transaction outcome", "err", err, "status", receipt.Status)
	}
	return true
}

func (l *Listener) onSuccess(ctx context.Context, p Params, receipt *types.Receipt) error {
	ops, err := l.db.GetUserOperationsByTransactionID(ctx, l.cfg.ChainID, p.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to load user operations: %w", err)
	}

	events := make(map[common.Hash]*UserOperationEvent)
	for _, log := range receipt.Logs {
		if log == nil || !l.trusted(log.Address) {
			continue
		}
		ev, ok, perr := l.parser.parse(*log)
		if perr != nil {
			l.lggr.Warnw("Skipping malformed UserOperationEvent", "err", perr, "txHash", receipt.TxHash)
			continue
		}
		if ok {
			events[ev.UserOpHash] = ev
		}
	}

	encoded := encodeReceipt(receipt)
	for i := range ops {
		op := &ops[i]
		op.TransactionHash = receipt.TxHash.Hex()
		op.BlockNumber = blockNumber(receipt)
		op.Receipt = encoded
		if ev, ok := events[common.HexToHash(op.UserOpHash)]; ok {
			applyEvent(op, ev)
			op.State = relayer.StateConfirmed.String()
		} else {
			op.State = relayer.StateFailed.String()
		}
		if err := l.db.UpdateUserOperation(ctx, op); err != nil {
			return fmt.Errorf("failed to update user operation %s: %w", op.UserOpHash, err)
		}
	}

	promOutcomes.WithLabelValues(l.chainID, outcomeConfirmed).Inc()
	return l.db.UpdateState(ctx, l.cfg.ChainID, store.StateUpdate{
		TransactionID:   p.TransactionID,
		TransactionHash: receipt.TxHash,
		RelayerAddress:  p.RelayerAddress,
		State:           relayer.StateConfirmed,
	})
}

// onFailure checks whether the operations of a reverted transaction were
// included by another transaction. If any was, the transaction is recorded as
// CONFIRMED under the other hash.
func (l *Listener) onFailure(ctx context.Context, p Params, receipt *types.Receipt) error {
	ops, err := l.db.GetUserOperationsByTransactionID(ctx, l.cfg.ChainID, p.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to load user operations: %w", err)
	}

	var frontRunHash common.Hash
	if len(ops) > 0 {
		frontRunHash, err = l.checkFrontRun(ctx, ops, receipt)
		if err != nil {
			return err
		}
	}

	if frontRunHash != (common.Hash{}) {
		l.lggr.Infow("Transaction was front-run", "transactionID", p.TransactionID, "txHash", receipt.TxHash, "frontRunTxHash", frontRunHash)
		promOutcomes.WithLabelValues(l.chainID, outcomeFrontRun).Inc()
		return l.db.UpdateState(ctx, l.cfg.ChainID, store.StateUpdate{
			TransactionID:   p.TransactionID,
			TransactionHash: frontRunHash,
			RelayerAddress:  p.RelayerAddress,
			State:           relayer.StateConfirmed,
			Message:         "front-run by " + frontRunHash.Hex(),
		})
	}

	promOutcomes.WithLabelValues(l.chainID, outcomeFailed).Inc()
	return l.db.UpdateState(ctx, l.cfg.ChainID, store.StateUpdate{
		TransactionID:   p.TransactionID,
		TransactionHash: receipt.TxHash,
		RelayerAddress:  p.RelayerAddress,
		State:           relayer.StateFailed,
		Message:         "transaction reverted",
	})
}

func (l *Listener) checkFrontRun(ctx context.Context, ops []store.UserOperationRecord, receipt *types.Receipt) (common.Hash, error) {
	latest, err := l.network.GetLatestBlockNumber(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest block: %w", err)
	}
	mined := blockNumber(receipt)
	from := uint64(0)
	if mined > l.cfg.FrontRunLookbackBlocks {
		from = mined - l.cfg.FrontRunLookbackBlocks
	}
	if latest < mined {
		latest = mined
	}

	encoded := encodeReceipt(receipt)
	var frontRunHash common.Hash
	for i := range ops {
		op := &ops[i]
		op.TransactionHash = receipt.TxHash.Hex()
		op.BlockNumber = mined
		op.Receipt = encoded

		ev, err := l.findEvent(ctx, common.HexToHash(op.UserOpHash), receipt.TxHash, from, latest)
		if err != nil {
			return common.Hash{}, err
		}
		if ev == nil {
			op.State = relayer.StateFailed.String()
		} else {
			applyEvent(op, ev)
			op.State = relayer.StateConfirmed.String()
			op.FrontRunnedTransactionHash = ev.TxHash.Hex()
			if fr, err := l.network.GetTransactionReceipt(ctx, ev.TxHash); err == nil && fr != nil {
				op.FrontRunnedReceipt = encodeReceipt(fr)
			} else if err != nil {
				l.lggr.Warnw("Failed to fetch front-running receipt", "err", err, "frontRunTxHash", ev.TxHash)
			}
			frontRunHash = ev.TxHash
		}
		if err := l.db.UpdateUserOperation(ctx, op); err != nil {
			return common.Hash{}, fmt.Errorf("failed to update user operation %s: %w", op.UserOpHash, err)
		}
	}
	return frontRunHash, nil
}

// findEvent returns the UserOperationEvent for userOpHash emitted by a
// transaction other than own, or nil.
func (l *Listener) findEvent(ctx context.Context, userOpHash, own common.Hash, from, to uint64) (*UserOperationEvent, error) {
	logs, err := l.network.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: l.cfg.EntryPoints,
		Topics:    [][]common.Hash{{l.parser.topic()}, {userOpHash}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs for %s: %w", userOpHash, err)
	}
	for _, log := range logs {
		if log.TxHash == own || !l.trusted(log.Address) {
			continue
		}
		ev, ok, err := l.parser.parse(log)
		if err != nil || !ok || ev.UserOpHash != userOpHash {
			continue
		}
		return ev, nil
	}
	return nil, nil
}

func (l *Listener) trusted(addr common.Address) bool {
	if len(l.cfg.EntryPoints) == 0 {
		return true
	}
	for _, ep := range l.cfg.EntryPoints {
		if ep == addr {
			return true
		}
	}
	return false
}

func applyEvent(op *store.UserOperationRecord, ev *UserOperationEvent) {
	op.Success = ev.Success
	op.ActualGasCost = ev.ActualGasCost.String()
	op.ActualGasUsed = ev.ActualGasUsed.String()
	op.EntryPoint = ev.EntryPoint.Hex()
	op.BlockNumber = ev.BlockNumber
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

func encodeReceipt(receipt *types.Receipt) string {
	b, err := json.Marshal(receipt)
	if err != nil {
		return ""
	}
	return string(b)
}
