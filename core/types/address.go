// Package types defines the canonical on-chain data model: addresses,
// hashes, accounts, blocks, transactions, logs and receipts.
package types

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the size in bytes of an Address.
const AddressLength = 20

// HashLength is the size in bytes of a Hash256.
const HashLength = 32

// Address is an opaque 20-byte account identifier, derived as the last 20
// bytes of keccak256 of an uncompressed secp256k1 public key body.
type Address [AddressLength]byte

// BytesToAddress right-aligns b into an Address, truncating on the left if
// b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a's contents as a newly allocated slice.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hash256 is an opaque 32-byte digest, used for block hashes, transaction
// hashes and cryptographic commitments.
type Hash256 [HashLength]byte

// BytesToHash right-aligns b into a Hash256.
func BytesToHash(b []byte) Hash256 {
	var h Hash256
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// IsZero reports whether h is the zero hash.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

func (h Hash256) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseAddress decodes a 0x-prefixed or bare hex string into an Address.
func ParseAddress(s string) (Address, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("types: address must be %d bytes, got %d", AddressLength, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ParseHash decodes a 0x-prefixed or bare hex string into a Hash256.
func ParseHash(s string) (Hash256, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Hash256{}, err
	}
	if len(b) != HashLength {
		return Hash256{}, fmt.Errorf("types: hash must be %d bytes, got %d", HashLength, len(b))
	}
	var h Hash256
	copy(h[:], b)
	return h, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
