// Package cryptoutil wraps the signature scheme and digest function the
// core consumes from its environment: keccak256 hashing and secp256k1
// sign/recover over 32-byte digests (spec §1, external collaborator (d)).
package cryptoutil

import (
	"golang.org/x/crypto/sha3"

	"github.com/permabft/chain/core/types"
)

// Keccak256 returns the keccak256 digest of the concatenation of data.
func Keccak256(data ...[]byte) types.Hash256 {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash256
	h.Sum(out[:0])
	return out
}

// Keccak256Bytes is like Keccak256 but returns a plain byte slice, useful
// for inputs that are not themselves 32-byte digests (e.g. RLP lists).
func Keccak256Bytes(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
