package testutils

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/bcnmy/bundler-sub000/network"
)

var _ network.Client = (*FakeClient)(nil)

// FakeClient is an in-memory chain that mines every accepted transaction
// into its own block. Receipts and nonces follow the accepted transactions.
type FakeClient struct {
	mu       sync.Mutex
	chainID  *big.Int
	signer   types.Signer
	balances map[common.Address]*big.Int
	// DefaultBalance is reported for addresses without an explicit balance.
	DefaultBalance *big.Int
	nonces         map[common.Address]uint64
	receipts       map[common.Hash]*types.Receipt
	sent           []*types.Transaction
	block          uint64
	// SendErr, when set, is returned by the next SendTransaction calls in
	// order.
	SendErr []error
}

func NewFakeClient(chainID uint64) *FakeClient {
	id := new(big.Int).SetUint64(chainID)
	return &FakeClient{
		chainID:        id,
		signer:         types.LatestSignerForChainID(id),
		balances:       map[common.Address]*big.Int{},
		DefaultBalance: big.NewInt(params.Ether),
		nonces:         map[common.Address]uint64{},
		receipts:       map[common.Hash]*types.Receipt{},
		block:          1,
	}
}

func (c *FakeClient) SetBalance(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(wei)
}

// Sent returns the accepted transactions.
func (c *FakeClient) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// SentBy returns the accepted transactions signed by from.
func (c *FakeClient) SentBy(from common.Address) (txs []*types.Transaction) {
	for _, tx := range c.Sent() {
		if sender, err := types.Sender(c.signer, tx); err == nil && sender == from {
			txs = append(txs, tx)
		}
	}
	return
}

func (c *FakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.SendErr) > 0 {
		err := c.SendErr[0]
		c.SendErr = c.SendErr[1:]
		return err
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, tx)
	c.block++
	if tx.Nonce() >= c.nonces[from] {
		c.nonces[from] = tx.Nonce() + 1
	}
	if tx.Value().Sign() > 0 {
		to := *tx.To()
		c.balances[to] = new(big.Int).Add(c.balanceOf(to), tx.Value())
		c.balances[from] = new(big.Int).Sub(c.balanceOf(from), tx.Value())
	}
	c.receipts[tx.Hash()] = &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas(),
		BlockNumber: new(big.Int).SetUint64(c.block),
	}
	return nil
}

func (c *FakeClient) balanceOf(addr common.Address) *big.Int {
	if b, ok := c.balances[addr]; ok {
		return b
	}
	return new(big.Int).Set(c.DefaultBalance)
}

func (c *FakeClient) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceOf(account)), nil
}

func (c *FakeClient) NonceAt(_ context.Context, account common.Address, _ *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *FakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.NonceAt(ctx, account, nil)
}

func (c *FakeClient) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *FakeClient) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *FakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *FakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(params.GWei), nil
}

func (c *FakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(params.GWei), nil
}

func (c *FakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(c.block), BaseFee: big.NewInt(params.GWei)}, nil
}
