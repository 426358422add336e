// Package state defines the typed state-key model, RW-set tracking, and
// the layered cache-over-store pipeline (spec §3 StateKey/RWSet, §4.6).
package state

import (
	"fmt"

	"github.com/permabft/chain/core/types"
)

// KeyKind tags the dimension of account state a StateKey addresses.
type KeyKind uint8

const (
	KindBalance KeyKind = iota
	KindNonce
	KindCode
	KindStorage
)

func (k KeyKind) String() string {
	switch k {
	case KindBalance:
		return "balance"
	case KindNonce:
		return "nonce"
	case KindCode:
		return "code"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// StateKey is a tagged sum over the (account, slot) state space: it is the
// unit of conflict detection for the scheduler and of ownership for
// parallel execution. It is comparable so it can be used directly as a
// map key and as a set element.
type StateKey struct {
	Kind KeyKind
	Addr types.Address
	Slot types.Hash256 // meaningful only when Kind == KindStorage
}

func (k StateKey) String() string {
	if k.Kind == KindStorage {
		return fmt.Sprintf("storage(%s,%s)", k.Addr, k.Slot)
	}
	return fmt.Sprintf("%s(%s)", k.Kind, k.Addr)
}

// BalanceKey returns the StateKey for addr's balance.
func BalanceKey(addr types.Address) StateKey { return StateKey{Kind: KindBalance, Addr: addr} }

// NonceKey returns the StateKey for addr's nonce.
func NonceKey(addr types.Address) StateKey { return StateKey{Kind: KindNonce, Addr: addr} }

// CodeKey returns the StateKey for addr's code.
func CodeKey(addr types.Address) StateKey { return StateKey{Kind: KindCode, Addr: addr} }

// StorageSlotKey returns the StateKey for a single storage slot.
func StorageSlotKey(addr types.Address, slot types.Hash256) StateKey {
	return StateKey{Kind: KindStorage, Addr: addr, Slot: slot}
}
