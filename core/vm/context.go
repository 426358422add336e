package vm

import (
	"math/big"

	"github.com/permabft/chain/core/types"
)

// GetHashFunc resolves a historical block number to its hash, backing the
// BLOCKHASH opcode. The core does not retain more than the most recent
// block in this cut, so implementations may return the zero hash for
// anything but the immediate parent.
type GetHashFunc func(number uint64) types.Hash256

// BlockContext carries the block-level environment values opcodes like
// COINBASE, TIMESTAMP, NUMBER and BASEFEE read. Passed explicitly rather
// than through globals (spec §9 "global state elimination").
type BlockContext struct {
	Coinbase   types.Address
	Number     uint64
	Timestamp  uint64
	GasLimit   uint64
	BaseFee    *big.Int // nil for a legacy-only chain config
	PrevRandao types.Hash256
	GetHash    GetHashFunc
}

// TxContext carries the transaction-level environment values ORIGIN and
// GASPRICE read, plus the chain id used by CHAINID.
type TxContext struct {
	Origin   types.Address
	GasPrice *big.Int
	ChainID  uint64
}

// CallKind distinguishes the system call opcodes for the purpose of
// adjusting the callee's CallContext (spec §4.4 "Nested calls").
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
)

// CallContext is the per-frame execution environment: which address is
// executing, on whose behalf, with how much value, and under what static
// restriction.
type CallContext struct {
	Address  types.Address // the account whose storage this frame operates on
	Caller   types.Address
	Origin   types.Address // preserved across DELEGATECALL chains
	Value    *big.Int
	Input    []byte
	Code     []byte
	CodeHash types.Hash256
	IsStatic bool
	Depth    int
}
