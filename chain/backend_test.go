package chain_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"x402-go/chain"
)

type stubEthClient struct {
	blockTime uint64
	chainID   *big.Int
}

func (s *stubEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (s *stubEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (s *stubEthClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (s *stubEthClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (s *stubEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return nil
}

func (s *stubEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func (s *stubEthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return s.chainID, nil
}

func (s *stubEthClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	header := &types.Header{Time: s.blockTime}
	return types.NewBlockWithHeader(header), nil
}

func TestEthClientBackend_BlockTimestampReadsLatestBlock(t *testing.T) {
	stub := &stubEthClient{blockTime: 1_700_000_000, chainID: big.NewInt(8453)}
	backend := chain.NewEthClientBackend(stub)

	ts, err := backend.BlockTimestamp(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1_700_000_000), ts)
}

func TestEthClientBackend_DelegatesChainID(t *testing.T) {
	stub := &stubEthClient{chainID: big.NewInt(8453)}
	backend := chain.NewEthClientBackend(stub)

	id, err := backend.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(8453), id)
}
