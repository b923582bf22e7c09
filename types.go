package relayer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

type TransactionState int

const (
	StateUnknown TransactionState = iota
	StateSubmitted
	StateConfirmed
	StateFailed
	StateDropped
)

func (s TransactionState) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateSubmitted:
		return "SUBMITTED"
	case StateConfirmed:
		return "CONFIRMED"
	case StateFailed:
		return "FAILED"
	case StateDropped:
		return "DROPPED_FROM_BUNDLER_MEMPOOL"
	default:
		return fmt.Sprintf("TransactionState(%d)", s)
	}
}

func ParseTransactionState(s string) (TransactionState, error) {
	switch strings.ToUpper(s) {
	case "", "UNKNOWN":
		return StateUnknown, nil
	case "SUBMITTED":
		return StateSubmitted, nil
	case "CONFIRMED":
		return StateConfirmed, nil
	case "FAILED":
		return StateFailed, nil
	case "DROPPED_FROM_BUNDLER_MEMPOOL":
		return StateDropped, nil
	}
	return StateUnknown, fmt.Errorf("unknown transaction state: %q", s)
}

// A dropped request may be requeued and submitted again. Resubmission records
// SUBMITTED again with the replacement hash.
var stateTransitions = map[TransactionState][]TransactionState{
	StateUnknown:   {StateSubmitted, StateDropped},
	StateSubmitted: {StateSubmitted, StateConfirmed, StateFailed, StateDropped},
	StateDropped:   {StateSubmitted, StateDropped},
}

func (s TransactionState) CanTransitionTo(t TransactionState) bool {
	allowedTransitions, exists := stateTransitions[s]
	if !exists {
		return false
	}

	for _, allowed := range allowedTransitions {
		if t == allowed {
			return true
		}
	}

	return false
}

func (s TransactionState) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// TransactionRequest is the payload a caller asks to have relayed. TransactionID
// is a caller supplied tracing key and never equals the on-chain hash.
type TransactionRequest struct {
	TransactionID string         `json:"transactionId"`
	From          common.Address `json:"from"`
	To            common.Address `json:"to"`
	Value         *big.Int       `json:"value"`
	Data          hexutil.Bytes  `json:"data"`
	GasLimit      uint64         `json:"gasLimit"`
	ChainID       uint64         `json:"chainId"`
}

// RawTransaction is a chain-ready transaction. Exactly one of GasPrice or the
// MaxFeePerGas/MaxPriorityFeePerGas pair is set.
type RawTransaction struct {
	From                 common.Address
	To                   common.Address
	Value                *big.Int
	Data                 []byte
	GasLimit             uint64
	Nonce                uint64
	ChainID              *big.Int
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (r *RawTransaction) IsEIP1559() bool {
	return r.MaxFeePerGas != nil && r.MaxPriorityFeePerGas != nil
}

// Copy returns a deep copy so retry handlers never mutate a submitted transaction.
func (r *RawTransaction) Copy() *RawTransaction {
	cp := *r
	cp.Value = copyBig(r.Value)
	cp.ChainID = copyBig(r.ChainID)
	cp.GasPrice = copyBig(r.GasPrice)
	cp.MaxFeePerGas = copyBig(r.MaxFeePerGas)
	cp.MaxPriorityFeePerGas = copyBig(r.MaxPriorityFeePerGas)
	if r.Data != nil {
		cp.Data = common.CopyBytes(r.Data)
	}
	return &cp
}

func (r *RawTransaction) ToTransaction() *types.Transaction {
	to := r.To
	value := r.Value
	if value == nil {
		value = new(big.Int)
	}
	if r.IsEIP1559() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   r.ChainID,
			Nonce:     r.Nonce,
			GasTipCap: r.MaxPriorityFeePerGas,
			GasFeeCap: r.MaxFeePerGas,
			Gas:       r.GasLimit,
			To:        &to,
			Value:     value,
			Data:      r.Data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    r.Nonce,
		GasPrice: r.GasPrice,
		Gas:      r.GasLimit,
		To:       &to,
		Value:    value,
		Data:     r.Data,
	})
}

func copyBig(b *big.Int) *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).Set(b)
}
