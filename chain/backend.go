// Package chain adapts go-ethereum's ethclient.Client to the narrow
// interfaces the facilitator and client packages depend on, so tests can
// substitute a mock backend without touching an RPC endpoint.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the RPC surface the facilitator's settler needs: nonce
// assignment, gas estimation and pricing, transaction submission, and
// receipt retrieval. ethclient.Client satisfies it directly.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// TimeSource reports the current block's timestamp, the clock the
// facilitator's time-window check runs against instead of the host's wall
// clock, so a lagging or clock-skewed RPC node cannot be worked around by
// trusting the caller's machine time.
type TimeSource interface {
	BlockTimestamp(ctx context.Context) (uint64, error)
}

// EthClientBackend adapts an *ethclient.Client into a Backend and
// TimeSource. It is safe for concurrent use: every method is a stateless
// RPC round-trip, same as the underlying client.
type EthClientBackend struct {
	client EthClient
}

// EthClient is the subset of *ethclient.Client this package calls. It
// exists so tests can wrap a mock instead of dialing real JSON-RPC.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// NewEthClientBackend wraps an EthClient (typically *ethclient.Client).
func NewEthClientBackend(c EthClient) *EthClientBackend {
	return &EthClientBackend{client: c}
}

func (b *EthClientBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.client.PendingNonceAt(ctx, account)
}

func (b *EthClientBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.client.SuggestGasPrice(ctx)
}

func (b *EthClientBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return b.client.EstimateGas(ctx, call)
}

func (b *EthClientBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return b.client.CallContract(ctx, call, blockNumber)
}

func (b *EthClientBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return b.client.SendTransaction(ctx, tx)
}

func (b *EthClientBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return b.client.TransactionReceipt(ctx, txHash)
}

func (b *EthClientBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.client.ChainID(ctx)
}

func (b *EthClientBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return b.client.BlockByNumber(ctx, number)
}

// BlockTimestamp returns the latest block's timestamp.
func (b *EthClientBackend) BlockTimestamp(ctx context.Context) (uint64, error) {
	block, err := b.client.BlockByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return block.Time(), nil
}
