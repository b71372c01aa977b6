// Package facilitator implements the trusted intermediary that validates a
// signed payment authorization and submits it on-chain: Verifier performs
// the off-chain checks, Settler performs the on-chain submission.
package facilitator

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"x402-go/chain"
	"x402-go/eip712"
	"x402-go/evm"
	"x402-go/protocol"
)

// Verifier runs the nine ordered, off-chain checks that decide whether a
// payment authorization is acceptable, without touching the chain beyond
// reading the current block's timestamp.
type Verifier struct {
	timeSource chain.TimeSource
}

// NewVerifier builds a Verifier that reads its notion of "now" from
// timeSource's chain tip rather than the host's wall clock, so a lagging
// RPC node's view of time — not the caller's — governs the window check.
func NewVerifier(timeSource chain.TimeSource) *Verifier {
	return &Verifier{timeSource: timeSource}
}

// Verify runs the checks of spec §4.3 in order, first failure wins. It
// probes the raw JSON for x402Version/scheme/network before committing to a
// full PaymentPayload unmarshal, so a malformed or unsupported envelope is
// rejected without ever decoding the scheme-specific payload.
func (v *Verifier) Verify(ctx context.Context, headerB64 string, requirements protocol.PaymentRequirements) (*protocol.VerificationResponse, string, error) {
	raw, err := protocol.DecodeHeaderBytes(headerB64)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid base64 encoding: %v", err))
	}

	version, err := protocol.DetectVersion(raw)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "malformed payment header: %v", err))
	}
	if version != protocol.X402Version {
		return invalid(protocol.NewError(protocol.CategoryStructural, "unsupported x402Version: %d", version))
	}

	scheme, network, err := protocol.ExtractRequirementsInfo(raw)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "malformed payment header: %v", err))
	}
	if scheme != requirements.Scheme {
		return invalid(protocol.NewError(protocol.CategorySchemeMismatch, "scheme mismatch: payload=%q requirements=%q", scheme, requirements.Scheme))
	}
	if network != requirements.Network {
		return invalid(protocol.NewError(protocol.CategoryNetworkMismatch, "network mismatch: payload=%q requirements=%q", network, requirements.Network))
	}
	if scheme != protocol.SchemeExact {
		return invalid(protocol.NewError(protocol.CategorySchemeMismatch, "unsupported scheme: %q", scheme))
	}

	var payload protocol.PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "malformed payment header: %v", err))
	}
	exact, err := protocol.DecodeExactPayload(payload.Payload)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "malformed exact payload: %v", err))
	}

	toAddr, err := evm.ChecksumAddress(exact.To)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid authorization.to: %v", err))
	}
	fromAddr, err := evm.ChecksumAddress(exact.From)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid authorization.from: %v", err))
	}
	payToAddr, err := evm.ChecksumAddress(requirements.PayTo)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryDomainParameters, "invalid requirements.payTo: %v", err))
	}

	if !strings.EqualFold(toAddr, payToAddr) {
		return invalid(protocol.NewError(protocol.CategoryRecipientMismatch, "recipient mismatch: authorization.to=%s payTo=%s", toAddr, payToAddr))
	}

	authValue, ok := new(big.Int).SetString(exact.Value, 10)
	if !ok {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid authorization.value: %q", exact.Value))
	}
	requiredValue, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return invalid(protocol.NewError(protocol.CategoryDomainParameters, "invalid requirements.maxAmountRequired: %q", requirements.MaxAmountRequired))
	}
	if authValue.Cmp(requiredValue) != 0 {
		return invalid(protocol.NewError(protocol.CategoryAmountMismatch, "amount mismatch: authorization.value=%s required=%s", authValue, requiredValue))
	}

	now, err := v.timeSource.BlockTimestamp(ctx)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryTransport, "read chain tip timestamp: %v", err))
	}
	validAfter, ok := new(big.Int).SetString(exact.ValidAfter, 10)
	if !ok {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid validAfter: %q", exact.ValidAfter))
	}
	validBefore, ok := new(big.Int).SetString(exact.ValidBefore, 10)
	if !ok {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid validBefore: %q", exact.ValidBefore))
	}
	nowBig := new(big.Int).SetUint64(now)
	if nowBig.Cmp(validAfter) < 0 || nowBig.Cmp(validBefore) > 0 {
		return invalid(protocol.NewError(protocol.CategoryTimeWindow, "authorization outside validity window: now=%s validAfter=%s validBefore=%s", nowBig, validAfter, validBefore))
	}

	tokenName := requirements.ExtraName()
	tokenVersion := requirements.ExtraVersion()
	if tokenName == "" || tokenVersion == "" {
		return invalid(protocol.NewError(protocol.CategoryDomainParameters, "requirements.extra missing name/version"))
	}
	chainID, err := evm.ChainIDFromNetwork(requirements.Network)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryDomainParameters, "invalid network: %v", err))
	}
	verifyingContract, err := evm.ChecksumAddress(requirements.Asset)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryDomainParameters, "invalid requirements.asset: %v", err))
	}

	nonceBytes, err := evm.NonceBytes(exact.Nonce)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategoryStructural, "invalid nonce: %v", err))
	}

	digest := eip712.Digest(
		eip712.Domain{
			Name:              tokenName,
			Version:           tokenVersion,
			ChainID:           chainID,
			VerifyingContract: verifyingContract,
		},
		eip712.Authorization{
			From:        fromAddr,
			To:          toAddr,
			Value:       authValue,
			ValidAfter:  validAfter,
			ValidBefore: validBefore,
			Nonce:       nonceBytes,
		},
	)

	sig, err := eip712.ParseSignature(exact.V, exact.R, exact.S)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategorySignature, "malformed signature: %v", err))
	}
	recovered, err := eip712.RecoverSigner(digest, sig)
	if err != nil {
		return invalid(protocol.NewError(protocol.CategorySignature, "signature recovery failed: %v", err))
	}
	if !strings.EqualFold(recovered, fromAddr) {
		return invalid(protocol.NewError(protocol.CategorySignature, "signature does not recover to authorization.from: recovered=%s from=%s", recovered, fromAddr))
	}

	return &protocol.VerificationResponse{IsValid: true}, fromAddr, nil
}

func invalid(reason *protocol.Error) (*protocol.VerificationResponse, string, error) {
	return &protocol.VerificationResponse{IsValid: false, InvalidReason: reason.Error()}, "", nil
}
