package types

import (
	"errors"
	"math/big"

	"github.com/permabft/chain/core/rlpmin"
	"github.com/permabft/chain/cryptoutil"
)

// TxType distinguishes the legacy envelope from the EIP-1559 typed one.
type TxType uint8

const (
	LegacyTxType   TxType = 0
	DynamicFeeType TxType = 2
)

// AccessTuple is a single entry of an EIP-1559 access list. The core does
// not charge access-list discounts (not in scope); the field is carried
// and persisted, but the signing digest always encodes an empty access
// list in its place.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash256
}

// SignedTransaction is either a legacy or an EIP-1559 transaction. `To ==
// nil` signals contract creation.
type SignedTransaction struct {
	Type TxType

	ChainID uint64
	Nonce   uint64

	// Legacy only.
	GasPrice *big.Int

	// EIP-1559 only.
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	AccessList           []AccessTuple

	GasLimit uint64
	To       *Address
	Value    *big.Int
	Data     []byte

	V byte
	R [32]byte
	S [32]byte

	cachedHash *Hash256
}

var (
	ErrInvalidSignature = errors.New("types: invalid transaction signature")
)

// IsContractCreation reports whether the transaction creates a contract.
func (tx *SignedTransaction) IsContractCreation() bool { return tx.To == nil }

// signingPayload returns the RLP-encoded, signature-excluded payload the
// transaction's signing digest is computed over.
func (tx *SignedTransaction) signingPayload() []byte {
	to := []byte{}
	if tx.To != nil {
		to = tx.To[:]
	}
	switch tx.Type {
	case DynamicFeeType:
		accessList := rlpmin.EncodeList() // access-list discounts are out of scope; always empty
		return rlpmin.EncodeList(
			rlpmin.EncodeUint64(tx.ChainID),
			rlpmin.EncodeUint64(tx.Nonce),
			rlpmin.EncodeBigInt(tx.MaxPriorityFeePerGas),
			rlpmin.EncodeBigInt(tx.MaxFeePerGas),
			rlpmin.EncodeUint64(tx.GasLimit),
			rlpmin.EncodeBytes(to),
			rlpmin.EncodeBigInt(tx.Value),
			rlpmin.EncodeBytes(tx.Data),
			accessList,
		)
	default:
		return rlpmin.EncodeList(
			rlpmin.EncodeUint64(tx.Nonce),
			rlpmin.EncodeBigInt(tx.GasPrice),
			rlpmin.EncodeUint64(tx.GasLimit),
			rlpmin.EncodeBytes(to),
			rlpmin.EncodeBigInt(tx.Value),
			rlpmin.EncodeBytes(tx.Data),
			rlpmin.EncodeUint64(tx.ChainID),
			rlpmin.EncodeUint64(0),
			rlpmin.EncodeUint64(0),
		)
	}
}

// SigningHash returns the digest the transaction's signature covers.
func (tx *SignedTransaction) SigningHash() Hash256 {
	payload := tx.signingPayload()
	if tx.Type == DynamicFeeType {
		payload = append([]byte{byte(DynamicFeeType)}, payload...)
	}
	return cryptoutil.Keccak256(payload)
}

// recoveryID returns the 0/1 ECDSA recovery id encoded in V, undoing the
// EIP-155 offset for legacy transactions.
func (tx *SignedTransaction) recoveryID() byte {
	if tx.Type == DynamicFeeType {
		return tx.V
	}
	// EIP-155: v = chainId*2 + 35 + recid.
	offset := tx.ChainID*2 + 35
	if uint64(tx.V) < offset {
		// Pre-EIP-155 legacy v (27/28); tolerated for completeness.
		return tx.V - 27
	}
	return byte(uint64(tx.V) - offset)
}

// Sender recovers the sending Address from the transaction's signature.
func (tx *SignedTransaction) Sender() (Address, error) {
	sig := cryptoutil.Signature{V: tx.recoveryID(), R: tx.R, S: tx.S}
	addr, _, err := cryptoutil.Recover(sig, tx.SigningHash())
	if err != nil {
		return Address{}, ErrInvalidSignature
	}
	return addr, nil
}

// SignWith signs the transaction with key and records V/R/S, applying the
// EIP-155 offset for legacy transactions.
func (tx *SignedTransaction) SignWith(key *cryptoutil.PrivateKey) error {
	sig, err := key.Sign(tx.SigningHash())
	if err != nil {
		return err
	}
	tx.R, tx.S = sig.R, sig.S
	if tx.Type == DynamicFeeType {
		tx.V = sig.V
	} else {
		tx.V = byte(tx.ChainID*2+35) + sig.V
	}
	tx.cachedHash = nil
	return nil
}

// Hash returns the transaction's canonical hash, covering the signature.
func (tx *SignedTransaction) Hash() Hash256 {
	if tx.cachedHash != nil {
		return *tx.cachedHash
	}
	to := []byte{}
	if tx.To != nil {
		to = tx.To[:]
	}
	var payload []byte
	if tx.Type == DynamicFeeType {
		payload = append([]byte{byte(DynamicFeeType)}, rlpmin.EncodeList(
			rlpmin.EncodeUint64(tx.ChainID),
			rlpmin.EncodeUint64(tx.Nonce),
			rlpmin.EncodeBigInt(tx.MaxPriorityFeePerGas),
			rlpmin.EncodeBigInt(tx.MaxFeePerGas),
			rlpmin.EncodeUint64(tx.GasLimit),
			rlpmin.EncodeBytes(to),
			rlpmin.EncodeBigInt(tx.Value),
			rlpmin.EncodeBytes(tx.Data),
			rlpmin.EncodeList(),
			rlpmin.EncodeUint64(uint64(tx.V)),
			rlpmin.EncodeBytes(tx.R[:]),
			rlpmin.EncodeBytes(tx.S[:]),
		)...)
	} else {
		payload = rlpmin.EncodeList(
			rlpmin.EncodeUint64(tx.Nonce),
			rlpmin.EncodeBigInt(tx.GasPrice),
			rlpmin.EncodeUint64(tx.GasLimit),
			rlpmin.EncodeBytes(to),
			rlpmin.EncodeBigInt(tx.Value),
			rlpmin.EncodeBytes(tx.Data),
			rlpmin.EncodeUint64(uint64(tx.V)),
			rlpmin.EncodeBytes(tx.R[:]),
			rlpmin.EncodeBytes(tx.S[:]),
		)
	}
	h := cryptoutil.Keccak256(payload)
	tx.cachedHash = &h
	return h
}

// EffectiveGasPrice computes the per-gas price actually paid, given the
// block's base fee. Legacy transactions ignore baseFee.
func (tx *SignedTransaction) EffectiveGasPrice(baseFee *big.Int) (*big.Int, error) {
	if tx.Type != DynamicFeeType {
		return new(big.Int).Set(tx.GasPrice), nil
	}
	if tx.MaxFeePerGas.Cmp(baseFee) < 0 {
		return nil, errors.New("types: max fee per gas below base fee")
	}
	tip := new(big.Int).Sub(tx.MaxFeePerGas, baseFee)
	if tip.Cmp(tx.MaxPriorityFeePerGas) > 0 {
		tip = tx.MaxPriorityFeePerGas
	}
	return new(big.Int).Add(baseFee, tip), nil
}
