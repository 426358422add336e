package state

import (
	"math/big"

	"github.com/permabft/chain/core/types"
)

// Reader is the read-only capability a CachedState falls through to on a
// cache miss: the block-level StateCache during transaction execution, or
// the persistent store at the start of a block.
type Reader interface {
	Account(addr types.Address) (types.Account, error)
	StorageAt(addr types.Address, slot types.Hash256) (types.Hash256, error)
	CodeByHash(hash types.Hash256) ([]byte, error)
}

// Access is the single capability interface the EVM interpreter executes
// against (spec §9 "dynamic dispatch over state access"): balance,
// nonce, code, and storage reads/writes, transient storage, logs, and
// snapshot/revert for nested-call isolation. Exactly one concrete type
// (CachedState) implements it in this module; tests run it over a null
// Reader, and the parallel scheduler gives each worker its own
// instance over a shared read-only base.
type Access interface {
	// Reads. Each read is recorded into the active RWSet.
	GetBalance(addr types.Address) *big.Int
	GetNonce(addr types.Address) uint64
	GetCode(addr types.Address) []byte
	GetCodeHash(addr types.Address) types.Hash256
	GetCodeSize(addr types.Address) int
	GetStorage(addr types.Address, slot types.Hash256) types.Hash256
	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	// Writes. Each write is recorded into the active RWSet.
	CreateAccount(addr types.Address)
	AddBalance(addr types.Address, amount *big.Int)
	SubBalance(addr types.Address, amount *big.Int)
	SetNonce(addr types.Address, nonce uint64)
	SetCode(addr types.Address, code []byte)
	SetStorage(addr types.Address, slot types.Hash256, value types.Hash256)
	AddLog(log types.Log)
	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	// Transient storage (EIP-1153 style): per-outer-transaction only,
	// never persisted, never part of the RW-set (spec §4.4).
	GetTransientStorage(addr types.Address, slot types.Hash256) types.Hash256
	SetTransientStorage(addr types.Address, slot types.Hash256, value types.Hash256)

	// Access list (EIP-2929 style): tracks which addresses have already
	// been touched by the current outer transaction, for the warm/cold
	// CALL gas split (spec §4.4); SLOAD is charged the flat GasSload
	// rate whether or not its address is warm. Entries survive snapshot
	// revert — an address stays warm even if the call that first touched
	// it reverts — and are cleared only when a fresh CachedState is built
	// for the next transaction.
	AddressInAccessList(addr types.Address) bool
	AddAddressToAccessList(addr types.Address)

	// Nested-call isolation.
	Snapshot() int
	RevertToSnapshot(id int)

	// RWSet records all keys touched since the last call to ResetRWSet.
	ResetRWSet()
	RWSet() *RWSet

	Logs() []types.Log
}
