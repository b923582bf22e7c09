package listener

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const UserOperationEventSignature = "UserOperationEvent(bytes32,address,address,uint256,bool,uint256,uint256)"

const entryPointEventsABI = `[{
	"anonymous": false,
	"name": "UserOperationEvent",
	"type": "event",
	"inputs": [
		{"indexed": true, "name": "userOpHash", "type": "bytes32"},
		{"indexed": true, "name": "sender", "type": "address"},
		{"indexed": true, "name": "paymaster", "type": "address"},
		{"indexed": false, "name": "nonce", "type": "uint256"},
		{"indexed": false, "name": "success", "type": "bool"},
		{"indexed": false, "name": "actualGasCost", "type": "uint256"},
		{"indexed": false, "name": "actualGasUsed", "type": "uint256"}
	]
}]`

type UserOperationEvent struct {
	EntryPoint    common.Address
	UserOpHash    common.Hash
	Sender        common.Address
	Paymaster     common.Address
	Nonce         *big.Int
	Success       bool
	ActualGasCost *big.Int
	ActualGasUsed *big.Int
	TxHash        common.Hash
	BlockNumber   uint64
}

type eventParser struct {
	event abi.Event
}

func newEventParser() (*eventParser, error) {
	parsedAbi, err := abi.JSON(strings.NewReader(entryPointEventsABI))
	if err != nil {
		return nil, err
	}
	return &eventParser{event: parsedAbi.Events["UserOperationEvent"]}, nil
}

func (p *eventParser) topic() common.Hash {
	return p.event.ID
}

// parse returns false for logs that are not UserOperationEvents.
func (p *eventParser) parse(log types.Log) (*UserOperationEvent, bool, error) {
	if len(log.Topics) != 4 || log.Topics[0] != p.event.ID {
		return nil, false, nil
	}
	values, err := p.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, true, fmt.Errorf("failed to unpack UserOperationEvent: %w", err)
	}
	if len(values) != 4 {
		return nil, true, fmt.Errorf("unexpected UserOperationEvent field count %d", len(values))
	}
	nonce, ok1 := values[0].(*big.Int)
	success, ok2 := values[1].(bool)
	gasCost, ok3 := values[2].(*big.Int)
	gasUsed, ok4 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, true, fmt.Errorf("unexpected UserOperationEvent field types")
	}
	return &UserOperationEvent{
		EntryPoint:    log.Address,
		UserOpHash:    log.Topics[1],
		Sender:        common.BytesToAddress(log.Topics[2].Bytes()),
		Paymaster:     common.BytesToAddress(log.Topics[3].Bytes()),
		Nonce:         nonce,
		Success:       success,
		ActualGasCost: gasCost,
		ActualGasUsed: gasUsed,
		TxHash:        log.TxHash,
		BlockNumber:   log.BlockNumber,
	}, true, nil
}

// packData encodes the non-indexed UserOperationEvent fields.
func (p *eventParser) packData(nonce *big.Int, success bool, gasCost, gasUsed *big.Int) ([]byte, error) {
	return p.event.Inputs.NonIndexed().Pack(nonce, success, gasCost, gasUsed)
}
