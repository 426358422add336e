package state

import (
	"math/big"

	"github.com/permabft/chain/core/types"
)

// journalEntry is one undoable mutation recorded by CachedState, the
// mechanism behind Snapshot/RevertToSnapshot (spec §4.4 "sub-call state
// isolation").
type journalEntry interface {
	revert(s *CachedState)
}

type balanceChange struct {
	addr types.Address
	prev *big.Int
}

func (e balanceChange) revert(s *CachedState) { s.setBalance(e.addr, e.prev) }

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (e nonceChange) revert(s *CachedState) { s.setNonce(e.addr, e.prev) }

type codeChange struct {
	addr     types.Address
	prevHash types.Hash256
	prevCode []byte
}

func (e codeChange) revert(s *CachedState) { s.setCode(e.addr, e.prevHash, e.prevCode) }

type storageChange struct {
	key  StateKey
	prev types.Hash256
}

func (e storageChange) revert(s *CachedState) { s.storage[e.key] = e.prev }

type transientChange struct {
	key  StateKey
	prev types.Hash256
}

func (e transientChange) revert(s *CachedState) { s.transient[e.key] = e.prev }

type createChange struct {
	addr types.Address
}

func (e createChange) revert(s *CachedState) {
	delete(s.accounts, e.addr)
	delete(s.created, e.addr)
}

type selfDestructChange struct {
	addr types.Address
	prev bool
}

func (e selfDestructChange) revert(s *CachedState) { s.destructed[e.addr] = e.prev }

type logAppend struct{}

func (e logAppend) revert(s *CachedState) { s.logs = s.logs[:len(s.logs)-1] }
