package network

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	relayer "github.com/bcnmy/bundler-sub000"
)

// Signer signs transactions for a single address. It is implemented by
// keystore.Account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

//go:generate mockery --quiet --name Network --output ../mocks/ --case=underscore
type Network interface {
	// SendTransaction signs and broadcasts raw. The returned hash is set even
	// when the node rejects the transaction.
	SendTransaction(ctx context.Context, raw *relayer.RawTransaction, signer Signer) (common.Hash, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetNonce(ctx context.Context, address common.Address, pending bool) (uint64, error)
	// WaitForTransaction blocks until the receipt is available or the
	// configured receipt timeout elapses.
	WaitForTransaction(ctx context.Context, hash common.Hash, transactionID string) (*types.Receipt, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	LatestBaseFee(ctx context.Context) (*big.Int, error)
}
