package evm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChecksumAddress renders an address in EIP-55 mixed-case checksum form,
// rejecting anything that isn't exactly 20 bytes of hex.
func ChecksumAddress(address string) (string, error) {
	if !IsValidAddress(address) {
		return "", fmt.Errorf("invalid address: %s", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

// IsValidAddress reports whether address is 40 hex digits, with or without
// a 0x prefix.
func IsValidAddress(address string) bool {
	addr := strings.TrimPrefix(address, "0x")
	if len(addr) != 40 {
		return false
	}
	_, err := hex.DecodeString(addr)
	return err == nil
}

// AddressesEqual compares two address strings case-insensitively, the
// comparison EIP-3009 recipient/signer checks use.
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
