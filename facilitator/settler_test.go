package facilitator_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"x402-go/client"
	"x402-go/evm"
	"x402-go/facilitator"
	"x402-go/protocol"
)

const testFacilitatorKey = "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

// mockBackend is a chain.Backend that never touches a real RPC endpoint:
// it answers authorizationState as "unused", estimates a fixed gas amount,
// and reports every submitted transaction as mined and successful.
type mockBackend struct {
	tokenABI      abi.ABI
	nonceUsed     bool
	gasPriceGwei  int64
	estimateErr   error
	sendErr       error
	receiptStatus uint64
	sentTx        *types.Transaction
}

func newMockBackend(t *testing.T) *mockBackend {
	parsed, err := abi.JSON(strings.NewReader(evm.EIP3009ABI))
	require.NoError(t, err)
	return &mockBackend{tokenABI: parsed, gasPriceGwei: 10, receiptStatus: types.ReceiptStatusSuccessful}
}

var errEstimation = errors.New("execution reverted")

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Mul(big.NewInt(m.gasPriceGwei), big.NewInt(1_000_000_000)), nil
}

func (m *mockBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if m.estimateErr != nil {
		return 0, m.estimateErr
	}
	return 50000, nil
}

func (m *mockBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	word := make([]byte, 32)
	if m.nonceUsed {
		word[31] = 1
	}
	return word, nil
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentTx = tx
	return nil
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: m.receiptStatus}, nil
}

func (m *mockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(84532), nil
}

func (m *mockBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return nil, nil
}

func signedExactPayload(t *testing.T) (protocol.ExactPaymentPayload, string) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	req := baseRequirements()
	header, err := c.CreatePayment(req, time.Minute)
	require.NoError(t, err)

	payload, err := protocol.DecodePaymentPayloadHeader(header)
	require.NoError(t, err)
	exact, err := protocol.DecodeExactPayload(payload.Payload)
	require.NoError(t, err)
	return exact, req.Asset
}

func TestSettle_Success(t *testing.T) {
	backend := newMockBackend(t)
	s, err := facilitator.NewSettler(backend, testFacilitatorKey, 0)
	require.NoError(t, err)

	exact, asset := signedExactPayload(t)
	result := s.Settle(context.Background(), exact, asset, true, 5*time.Second)
	require.True(t, result.Success)
	require.NotEmpty(t, result.TxHash)
}

func TestSettle_GasTooHigh(t *testing.T) {
	backend := newMockBackend(t)
	backend.gasPriceGwei = 999
	s, err := facilitator.NewSettler(backend, testFacilitatorKey, 50)
	require.NoError(t, err)

	exact, asset := signedExactPayload(t)
	result := s.Settle(context.Background(), exact, asset, true, 5*time.Second)
	require.False(t, result.Success)
	require.Equal(t, protocol.CategoryGasTooHigh, result.Error.Category)
}

func TestSettle_EstimationFailed(t *testing.T) {
	backend := newMockBackend(t)
	backend.estimateErr = errEstimation
	s, err := facilitator.NewSettler(backend, testFacilitatorKey, 0)
	require.NoError(t, err)

	exact, asset := signedExactPayload(t)
	result := s.Settle(context.Background(), exact, asset, true, 5*time.Second)
	require.False(t, result.Success)
	require.Equal(t, protocol.CategoryEstimationFailed, result.Error.Category)
}

func TestSettle_Reverted(t *testing.T) {
	backend := newMockBackend(t)
	backend.receiptStatus = types.ReceiptStatusFailed
	s, err := facilitator.NewSettler(backend, testFacilitatorKey, 0)
	require.NoError(t, err)

	exact, asset := signedExactPayload(t)
	result := s.Settle(context.Background(), exact, asset, true, 5*time.Second)
	require.False(t, result.Success)
	require.Equal(t, protocol.CategoryReverted, result.Error.Category)
}
