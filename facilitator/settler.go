package facilitator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"x402-go/chain"
	"x402-go/evm"
	"x402-go/protocol"
)

// gasEstimateBuffer is the multiplier applied to an eth_estimateGas result
// before submission, absorbing drift between estimate and actual execution
// as the receipt's logs grow.
const gasEstimateBuffer = 1.2

// defaultReceiptPollInterval is how often the settler polls for a receipt
// while waiting for confirmation.
const defaultReceiptPollInterval = 2 * time.Second

// SettleResult is the settler's outcome for one attempt.
type SettleResult struct {
	Success bool
	TxHash  string
	Error   *protocol.Error
}

// Settler submits a verified payment authorization on-chain. One Settler
// holds a single signing identity; concurrent settlement attempts from that
// identity serialize their nonce assignment behind nonceMu so two
// in-flight settlements never race eth_getTransactionCount.
type Settler struct {
	backend       chain.Backend
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	maxGasPriceGw *big.Int
	tokenABI      abi.ABI

	nonceMu sync.Mutex
}

// NewSettler builds a Settler that signs submissions with privateKeyHex and
// rejects submission if the network's current gas price exceeds
// maxGasPriceGwei (0 disables the cap).
func NewSettler(backend chain.Backend, privateKeyHex string, maxGasPriceGwei int64) (*Settler, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid facilitator private key: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(evm.EIP3009ABI))
	if err != nil {
		return nil, fmt.Errorf("parse EIP-3009 ABI: %w", err)
	}

	var gasCap *big.Int
	if maxGasPriceGwei > 0 {
		gasCap = new(big.Int).Mul(big.NewInt(maxGasPriceGwei), big.NewInt(1_000_000_000))
	}

	return &Settler{
		backend:       backend,
		privateKey:    key,
		address:       crypto.PubkeyToAddress(key.PublicKey),
		maxGasPriceGw: gasCap,
		tokenABI:      parsedABI,
	}, nil
}

// Address returns the facilitator's submitter address.
func (s *Settler) Address() string {
	return s.address.Hex()
}

// Settle submits exact's transferWithAuthorization call against tokenAddr,
// following the state machine of the settlement design: an advisory
// nonce pre-check, tx construction, gas estimation with a 20% buffer, an
// optional gas-price cap, and (if waitForConfirmation) polling for a
// receipt up to timeout.
func (s *Settler) Settle(ctx context.Context, exact protocol.ExactPaymentPayload, tokenAddr string, waitForConfirmation bool, timeout time.Duration) SettleResult {
	from := common.HexToAddress(exact.From)
	to := common.HexToAddress(exact.To)
	token := common.HexToAddress(tokenAddr)

	value, ok := new(big.Int).SetString(exact.Value, 10)
	if !ok {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid value: %q", exact.Value)}
	}
	validAfter, ok := new(big.Int).SetString(exact.ValidAfter, 10)
	if !ok {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid validAfter: %q", exact.ValidAfter)}
	}
	validBefore, ok := new(big.Int).SetString(exact.ValidBefore, 10)
	if !ok {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid validBefore: %q", exact.ValidBefore)}
	}
	nonce, err := evm.NonceBytes(exact.Nonce)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid nonce: %v", err)}
	}
	r, err := evm.HexToBytes(exact.R)
	if err != nil || len(r) != 32 {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid r: %v", err)}
	}
	sBytes, err := evm.HexToBytes(exact.S)
	if err != nil || len(sBytes) != 32 {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "invalid s: %v", err)}
	}

	// authorizationState is advisory: a revert here (unsupported method,
	// transient RPC hiccup) is swallowed and the flow proceeds to
	// submission, where the chain is the authoritative source of truth.
	if used, err := s.checkNonceUsed(ctx, from, nonce, token); err == nil && used {
		return SettleResult{Error: protocol.NewError(protocol.CategoryNonceUsed, "authorization nonce already used")}
	}

	var rWord, sWord [32]byte
	copy(rWord[:], r)
	copy(sWord[:], sBytes)

	data, err := s.tokenABI.Pack("transferWithAuthorization", from, to, value, validAfter, validBefore, nonce, uint8(exact.V), rWord, sWord)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryStructural, "encode transferWithAuthorization call: %v", err)}
	}

	callMsg := ethereum.CallMsg{From: s.address, To: &token, Data: data}
	gasEstimate, err := s.backend.EstimateGas(ctx, callMsg)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryEstimationFailed, "gas estimation failed (likely a reverting transfer): %v", err)}
	}
	gasLimit := uint64(float64(gasEstimate) * gasEstimateBuffer)

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryTransport, "fetch gas price: %v", err)}
	}
	if s.maxGasPriceGw != nil && gasPrice.Cmp(s.maxGasPriceGw) > 0 {
		return SettleResult{Error: protocol.NewError(protocol.CategoryGasTooHigh, "gas price %s exceeds cap %s", gasPrice, s.maxGasPriceGw)}
	}

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryTransport, "fetch chain id: %v", err)}
	}

	txHash, err := s.sendTransaction(ctx, token, data, gasLimit, gasPrice, chainID)
	if err != nil {
		return SettleResult{Error: protocol.NewError(protocol.CategoryTransport, "submit transaction: %v", err)}
	}

	if !waitForConfirmation {
		return SettleResult{Success: true, TxHash: txHash}
	}

	return s.awaitReceipt(ctx, txHash, timeout)
}

// sendTransaction serializes eth_getTransactionCount and submission behind
// nonceMu so two concurrent Settle calls from this submitter never race for
// the same account tx-nonce.
func (s *Settler) sendTransaction(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice, chainID *big.Int) (string, error) {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	txNonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("fetch tx nonce: %w", err)
	}

	tx := types.NewTransaction(txNonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

func (s *Settler) awaitReceipt(ctx context.Context, txHash string, timeout time.Duration) SettleResult {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(defaultReceiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.Done():
			return SettleResult{Success: false, TxHash: txHash, Error: protocol.NewError(protocol.CategoryTimedOut, "confirmation timed out; transaction %s outcome unknown", txHash)}
		case <-ticker.C:
			receipt, err := s.backend.TransactionReceipt(ctx, hash)
			if err != nil {
				if err == ethereum.NotFound {
					continue
				}
				return SettleResult{Success: false, TxHash: txHash, Error: protocol.NewError(protocol.CategoryTransport, "poll receipt: %v", err)}
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return SettleResult{Success: false, TxHash: txHash, Error: protocol.NewError(protocol.CategoryReverted, "transaction reverted")}
			}
			return SettleResult{Success: true, TxHash: txHash}
		}
	}
}

func (s *Settler) checkNonceUsed(ctx context.Context, from common.Address, nonce [32]byte, token common.Address) (bool, error) {
	data, err := s.tokenABI.Pack(evm.FunctionAuthorizationState, from, nonce)
	if err != nil {
		return false, err
	}
	result, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return false, err
	}
	out, err := s.tokenABI.Unpack(evm.FunctionAuthorizationState, result)
	if err != nil || len(out) == 0 {
		return false, err
	}
	used, _ := out[0].(bool)
	return used, nil
}
