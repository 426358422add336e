package cryptoutil

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/permabft/chain/core/types"
)

// DigestLength is the size in bytes of a signing digest.
const DigestLength = 32

// ErrInvalidDigest is returned when a caller supplies a digest that is not
// exactly DigestLength bytes.
var ErrInvalidDigest = errors.New("cryptoutil: digest must be 32 bytes")

// Signature is a recoverable secp256k1 signature over a 32-byte digest.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// PrivateKey wraps a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GeneratePrivateKey returns a freshly generated signing key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("cryptoutil: private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// PublicKey returns the uncompressed public key body (64 bytes, X‖Y,
// without the 0x04 prefix) matching the "uncompressed secp256k1 public-key
// body" the spec's Address derivation refers to.
func (k *PrivateKey) PublicKey() []byte {
	uncompressed := k.key.PubKey().SerializeUncompressed()
	return uncompressed[1:]
}

// Address derives the Address corresponding to this key.
func (k *PrivateKey) Address() types.Address {
	return AddressFromPublicKey(k.PublicKey())
}

// Sign produces a recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest types.Hash256) (Signature, error) {
	compact := ecdsa.SignCompact(k.key, digest[:], false)
	if len(compact) != 65 {
		return Signature{}, fmt.Errorf("cryptoutil: unexpected signature length %d", len(compact))
	}
	var sig Signature
	sig.V = compact[0] - 27
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])
	return sig, nil
}

// AddressFromPublicKey derives an Address from an uncompressed public-key
// body (64 bytes, X‖Y), per spec §3: last 20 bytes of keccak256(pubkey).
func AddressFromPublicKey(pubkeyBody []byte) types.Address {
	digest := Keccak256Bytes(pubkeyBody)
	return types.BytesToAddress(digest[len(digest)-20:])
}

// Recover recovers the signer's Address and public key body from a
// signature and the digest it covers.
func Recover(sig Signature, digest types.Hash256) (types.Address, []byte, error) {
	compact := make([]byte, 65)
	compact[0] = 27 + sig.V
	copy(compact[1:33], sig.R[:])
	copy(compact[33:65], sig.S[:])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return types.Address{}, nil, fmt.Errorf("cryptoutil: recover: %w", err)
	}
	body := pub.SerializeUncompressed()[1:]
	return AddressFromPublicKey(body), body, nil
}

// Verify checks that sig is a valid signature by signer over digest.
func Verify(sig Signature, digest types.Hash256, signer types.Address) bool {
	addr, _, err := Recover(sig, digest)
	if err != nil {
		return false
	}
	return addr == signer
}
