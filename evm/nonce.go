package evm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CreateNonce generates a random 32-byte EIP-3009 authorization nonce,
// rendered as a 0x-prefixed hex string.
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce), nil
}

// NonceBytes parses a 0x-prefixed 32-byte nonce. It rejects any value that
// isn't exactly 32 bytes once decoded, per the wire format's bytes32 requirement.
func NonceBytes(nonce string) ([32]byte, error) {
	var out [32]byte
	raw, err := HexToBytes(nonce)
	if err != nil {
		return out, fmt.Errorf("invalid nonce hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("invalid nonce length: expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
