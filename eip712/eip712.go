// Package eip712 computes the EIP-712 digest for EIP-3009's
// TransferWithAuthorization struct by hand: each ABI word is built
// explicitly rather than routed through a signer library's generic
// TypedData encoder, so the byte layout client and verifier each produce is
// pinned down and auditable rather than dependent on a helper whose
// behavior could silently drift between versions. Only Keccak256 and ECDSA
// primitives are borrowed from go-ethereum/crypto.
package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// domainTypeHash is keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)").
var domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

// transferTypeHash is keccak256("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)").
var transferTypeHash = crypto.Keccak256([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

// Domain is the EIP-712 domain separator's input parameters for an
// EIP-3009 token: EIP712Domain(name, version, chainId, verifyingContract).
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// Authorization is the EIP-3009 TransferWithAuthorization struct's fields,
// with value/validAfter/validBefore already parsed to full-width integers
// (the wire carries them as decimal strings; parsing is the caller's job so
// this package only ever sees the canonical integer values it must hash).
type Authorization struct {
	From        string
	To          string
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// word32 left-pads b to 32 bytes, the fixed-width "ABI word" every static
// EIP-712 field (address, uint256, bytes32) occupies.
func word32(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}

func addressWord(addr string) []byte {
	return word32(common.HexToAddress(addr).Bytes())
}

func uint256Word(v *big.Int) []byte {
	return word32(v.Bytes())
}

// DomainSeparator computes keccak256(encode(EIP712Domain, domain)).
func DomainSeparator(d Domain) []byte {
	buf := make([]byte, 0, 5*32)
	buf = append(buf, domainTypeHash...)
	buf = append(buf, crypto.Keccak256([]byte(d.Name))...)
	buf = append(buf, crypto.Keccak256([]byte(d.Version))...)
	buf = append(buf, uint256Word(d.ChainID)...)
	buf = append(buf, addressWord(d.VerifyingContract)...)
	return crypto.Keccak256(buf)
}

// StructHash computes keccak256(encode(TransferWithAuthorization, auth)).
func StructHash(a Authorization) []byte {
	buf := make([]byte, 0, 7*32)
	buf = append(buf, transferTypeHash...)
	buf = append(buf, addressWord(a.From)...)
	buf = append(buf, addressWord(a.To)...)
	buf = append(buf, uint256Word(a.Value)...)
	buf = append(buf, uint256Word(a.ValidAfter)...)
	buf = append(buf, uint256Word(a.ValidBefore)...)
	buf = append(buf, a.Nonce[:]...)
	return crypto.Keccak256(buf)
}

// Digest computes keccak256(0x1901 || domainSeparator || structHash), the
// hash that gets signed and later re-derived for signature recovery.
func Digest(d Domain, a Authorization) []byte {
	domainSeparator := DomainSeparator(d)
	structHash := StructHash(a)

	raw := make([]byte, 0, 2+32+32)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw)
}
