package network

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	relayer "github.com/bcnmy/bundler-sub000"
)

// Client is the subset of ethclient.Client used by EthNetwork.
type Client interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

var _ Client = (*ethclient.Client)(nil)
var _ Network = (*EthNetwork)(nil)

type Config struct {
	ChainID             uint64
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

type EthNetwork struct {
	lggr    logger.Logger
	client  Client
	chainID *big.Int
	cfg     Config
}

func Dial(ctx context.Context, lggr logger.Logger, url string, cfg Config) (*EthNetwork, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return NewEthNetwork(lggr, client, cfg), nil
}

const (
	defaultReceiptTimeout      = 2 * time.Minute
	defaultReceiptPollInterval = time.Second
)

func NewEthNetwork(lggr logger.Logger, client Client, cfg Config) *EthNetwork {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}
	return &EthNetwork{
		lggr:    logger.Named(lggr, "Network"),
		client:  client,
		chainID: new(big.Int).SetUint64(cfg.ChainID),
		cfg:     cfg,
	}
}

func (n *EthNetwork) SendTransaction(ctx context.Context, raw *relayer.RawTransaction, signer Signer) (common.Hash, error) {
	signed, err := signer.SignTx(raw.ToTransaction(), n.chainID)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}
	hash := signed.Hash()
	if err := n.client.SendTransaction(ctx, signed); err != nil {
		return hash, Normalize(err)
	}
	return hash, nil
}

func (n *EthNetwork) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := n.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrapf(Normalize(err), "failed to get balance of %s", address)
	}
	return balance, nil
}

func (n *EthNetwork) GetNonce(ctx context.Context, address common.Address, pending bool) (uint64, error) {
	var nonce uint64
	var err error
	if pending {
		nonce, err = n.client.PendingNonceAt(ctx, address)
	} else {
		nonce, err = n.client.NonceAt(ctx, address, nil)
	}
	if err != nil {
		return 0, errors.Wrapf(Normalize(err), "failed to get nonce of %s", address)
	}
	return nonce, nil
}

func (n *EthNetwork) WaitForTransaction(ctx context.Context, hash common.Hash, transactionID string) (*types.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.cfg.ReceiptPollInterval
	b.MaxInterval = 4 * n.cfg.ReceiptPollInterval
	b.MaxElapsedTime = n.cfg.ReceiptTimeout

	attempt := 0
	receipt, err := backoff.RetryWithData(func() (*types.Receipt, error) {
		attempt++
		r, err := n.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				n.lggr.Debugw("Failed to fetch receipt", "txHash", hash, "transactionID", transactionID, "attempt", attempt, "err", err)
			}
			return nil, err
		}
		return r, nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, Normalize(ctx.Err())
		}
		return nil, &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("transaction %s (%s) not mined within %s: %v", hash, transactionID, n.cfg.ReceiptTimeout, err),
			err:     err,
		}
	}
	return receipt, nil
}

func (n *EthNetwork) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := n.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, Normalize(err)
	}
	return receipt, nil
}

func (n *EthNetwork) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	number, err := n.client.BlockNumber(ctx)
	if err != nil {
		return 0, Normalize(err)
	}
	return number, nil
}

func (n *EthNetwork) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := n.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, Normalize(err)
	}
	return logs, nil
}

func (n *EthNetwork) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := n.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, Normalize(err)
	}
	return price, nil
}

func (n *EthNetwork) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := n.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, Normalize(err)
	}
	return tip, nil
}

func (n *EthNetwork) LatestBaseFee(ctx context.Context) (*big.Int, error) {
	header, err := n.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, Normalize(err)
	}
	if header.BaseFee == nil {
		return nil, errors.New("latest header has no base fee, chain does not support EIP-1559")
	}
	return header.BaseFee, nil
}
