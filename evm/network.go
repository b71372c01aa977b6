// Package evm holds the EVM-specific constants, address/amount helpers, and
// the transferWithAuthorization/authorizationState ABI used by the "exact"
// scheme's client, verifier, and settler.
package evm

import (
	"fmt"
	"math/big"
	"strings"
)

// DefaultDecimals is the atomic-unit exponent used by USDC, the reference
// EIP-3009 token this module targets.
const DefaultDecimals = 6

// FunctionTransferWithAuthorization and FunctionAuthorizationState are the
// two EIP-3009 entry points the settler calls.
const (
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	FunctionAuthorizationState        = "authorizationState"
)

// ChainIDFromNetwork parses a "eip155:<chainId>" CAIP-2 network identifier.
func ChainIDFromNetwork(network string) (*big.Int, error) {
	rest, ok := strings.CutPrefix(network, "eip155:")
	if !ok {
		return nil, fmt.Errorf("invalid network format (expected eip155:<chainId>): %s", network)
	}
	chainID, ok := new(big.Int).SetString(rest, 10)
	if !ok || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id in network %q", network)
	}
	return chainID, nil
}

// Network builds the CAIP-2 network identifier for a chain id.
func Network(chainID *big.Int) string {
	return "eip155:" + chainID.String()
}
