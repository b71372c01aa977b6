// Package client builds and signs x402 "exact" scheme payment payloads and
// drives the 402-challenge/retry HTTP flow against a resource server.
package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"x402-go/eip712"
	"x402-go/evm"
	"x402-go/protocol"
)

// nonceValidityBuffer backdates validAfter so a slightly-behind verifier
// clock never rejects an authorization the instant it's created.
const nonceValidityBuffer = 10 * time.Second

// PaymentErrorKind classifies why CreatePayment or HTTPClient.Do failed,
// mirroring the categories a caller needs to decide whether retrying or
// picking a different accepted method makes sense.
type PaymentErrorKind string

const (
	NoAcceptedMethods         PaymentErrorKind = "no_accepted_methods"
	PaymentConstructionFailed PaymentErrorKind = "payment_construction_failed"
	ServerRejectedPayment     PaymentErrorKind = "server_rejected_payment"
)

// PaymentError is the error type returned by this package's operations.
type PaymentError struct {
	Kind    PaymentErrorKind
	Message string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newPaymentError(kind PaymentErrorKind, format string, args ...interface{}) *PaymentError {
	return &PaymentError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// timeSource reports a reference "now". Satisfied by *chain.EthClientBackend;
// kept as a narrow local interface so this package doesn't need to import
// chain just for this one method.
type timeSource interface {
	BlockTimestamp(ctx context.Context) (uint64, error)
}

// Client signs EIP-3009 authorizations with a single private key.
type Client struct {
	privateKey *ecdsa.PrivateKey
	address    string
	timeSource timeSource
}

// NewClient parses a hex-encoded private key (with or without "0x") and
// derives its address.
func NewClient(privateKeyHex string) (*Client, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	return &Client{privateKey: privateKey, address: address}, nil
}

// WithTimeSource returns a copy of c that prefers ts's chain-tip timestamp
// over the local wall clock when constructing validAfter/validBefore. This
// absorbs clock drift between the signer's host and the verifier's RPC node.
func (c *Client) WithTimeSource(ts timeSource) *Client {
	clone := *c
	clone.timeSource = ts
	return &clone
}

// Address returns the client's checksummed Ethereum address.
func (c *Client) Address() string {
	return c.address
}

// now returns the chain tip's timestamp if a time source is configured and
// reachable, falling back to the local wall clock otherwise.
func (c *Client) now() time.Time {
	if c.timeSource != nil {
		if ts, err := c.timeSource.BlockTimestamp(context.Background()); err == nil {
			return time.Unix(int64(ts), 0)
		}
	}
	return time.Now()
}

// SelectRequirements picks the first entry in accepts whose scheme is
// "exact" and whose network is a supported CAIP-2 EVM identifier. Callers
// needing different selection logic (e.g. lowest price) should filter
// accepts themselves and call CreatePayment directly.
func SelectRequirements(accepts []protocol.PaymentRequirements) (*protocol.PaymentRequirements, error) {
	for i := range accepts {
		r := &accepts[i]
		if r.Scheme != protocol.SchemeExact {
			continue
		}
		if _, err := evm.ChainIDFromNetwork(r.Network); err != nil {
			continue
		}
		return r, nil
	}
	return nil, newPaymentError(NoAcceptedMethods, "no accepted payment method matches scheme=%q on a supported EVM network", protocol.SchemeExact)
}

// CreatePayment builds and signs an X-PAYMENT header value satisfying req.
// validDuration bounds how long the authorization remains spendable;
// req.MaxTimeoutSeconds is not consulted.
func (c *Client) CreatePayment(req protocol.PaymentRequirements, validDuration time.Duration) (string, error) {
	chainID, err := evm.ChainIDFromNetwork(req.Network)
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "resolve network %q: %v", req.Network, err)
	}

	value, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return "", newPaymentError(PaymentConstructionFailed, "invalid maxAmountRequired: %q", req.MaxAmountRequired)
	}

	toAddr, err := evm.ChecksumAddress(req.PayTo)
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "invalid payTo address: %v", err)
	}

	nonceHex, err := evm.CreateNonce()
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "generate nonce: %v", err)
	}
	nonceBytes, err := evm.NonceBytes(nonceHex)
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "encode nonce: %v", err)
	}

	ref := c.now()
	validAfter := big.NewInt(ref.Add(-nonceValidityBuffer).Unix())
	validBefore := big.NewInt(ref.Add(validDuration).Unix())

	tokenName := req.ExtraName()
	tokenVersion := req.ExtraVersion()
	if tokenName == "" {
		return "", newPaymentError(PaymentConstructionFailed, "payment requirements missing extra.name for asset %s", req.Asset)
	}
	if tokenVersion == "" {
		return "", newPaymentError(PaymentConstructionFailed, "payment requirements missing extra.version for asset %s", req.Asset)
	}

	domain := eip712.Domain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: req.Asset,
	}
	auth := eip712.Authorization{
		From:        c.address,
		To:          toAddr,
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonceBytes,
	}

	digest := eip712.Digest(domain, auth)
	sig, err := eip712.Sign(digest, c.privateKey)
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "sign authorization: %v", err)
	}

	exact := protocol.ExactPaymentPayload{
		From:        c.address,
		To:          toAddr,
		Value:       value.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonceHex,
		V:           sig.V,
		R:           evm.BytesToHex(sig.R[:]),
		S:           evm.BytesToHex(sig.S[:]),
	}

	payload := protocol.PaymentPayload{
		X402Version: protocol.X402Version,
		Scheme:      protocol.SchemeExact,
		Network:     req.Network,
		Payload:     exact.ToMap(),
	}

	header, err := protocol.EncodePaymentPayloadHeader(payload)
	if err != nil {
		return "", newPaymentError(PaymentConstructionFailed, "encode payment header: %v", err)
	}
	return header, nil
}
