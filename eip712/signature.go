package eip712

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is an EIP-3009/secp256k1 signature in its wire form: v is
// always 27 or 28 (the Ethereum convention), never the raw 0/1 recovery id.
type Signature struct {
	V int
	R [32]byte
	S [32]byte
}

// Sign produces an (v, r, s) signature over digest using key, adjusting the
// recovery id to Ethereum's v ∈ {27, 28} convention.
func Sign(digest []byte, key *ecdsa.PrivateKey) (Signature, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return Signature{}, err
	}
	var out Signature
	copy(out.R[:], sig[0:32])
	copy(out.S[:], sig[32:64])
	out.V = int(sig[64]) + 27
	return out, nil
}

// Bytes65 packs the signature as r||s||v, the 65-byte form public-key
// recovery expects.
func (s Signature) Bytes65() []byte {
	buf := make([]byte, 65)
	copy(buf[0:32], s.R[:])
	copy(buf[32:64], s.S[:])
	buf[64] = byte(s.V)
	return buf
}

// RecoverSigner recovers the address that produced signature over digest.
// v must be 27 or 28; any other value is rejected with an error before
// recovery is attempted, since the wire format never produces other values.
func RecoverSigner(digest []byte, signature Signature) (string, error) {
	if signature.V != 27 && signature.V != 28 {
		return "", errors.New("invalid v: must be 27 or 28")
	}
	sig := signature.Bytes65()
	sig[64] -= 27 // crypto.SigToPub expects recovery id 0/1

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// ParseSignature parses the wire's v/r/s triple (r, s as 0x-prefixed hex)
// into a Signature.
func ParseSignature(v int, r, s string) (Signature, error) {
	rBytes, err := hexToWord(r)
	if err != nil {
		return Signature{}, err
	}
	sBytes, err := hexToWord(s)
	if err != nil {
		return Signature{}, err
	}
	return Signature{V: v, R: rBytes, S: sBytes}, nil
}

func hexToWord(hexStr string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexDecode(hexStr)
	if err != nil {
		return out, err
	}
	padded := common.LeftPadBytes(raw, 32)
	if len(padded) != 32 {
		return out, errors.New("value exceeds 32 bytes")
	}
	copy(out[:], padded)
	return out, nil
}

// bigFromWord reads a 32-byte word as a big-endian unsigned integer.
func bigFromWord(w [32]byte) *big.Int {
	return new(big.Int).SetBytes(w[:])
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
