package state

import "github.com/permabft/chain/core/types"

// StateDiff is the net effect of one transaction's or one parallel
// batch's execution, ready to be folded into the block-level StateCache
// in TxId order (spec §5 "writes are merged into the block-level cache
// at batch boundary in TxId order").
type StateDiff struct {
	Accounts map[types.Address]types.Account
	Deleted  map[types.Address]bool
	Storage  map[StateKey]types.Hash256
	Code     map[types.Hash256][]byte
}

// accountEntry is a present-or-tombstone account slot (spec §4.6).
type accountEntry struct {
	account types.Account
	deleted bool
}

// StateCache buffers one block's worth of account, storage and code
// writes over a read-only persistent base (spec §4.6). It is shared by
// a parallel batch's workers; the node runs each task's execution and
// the ApplyDiff of its result behind one mutex, so the cache is never
// read and mutated at the same time.
type StateCache struct {
	base Reader

	accounts map[types.Address]*accountEntry
	storage  map[StateKey]types.Hash256
	code     map[types.Hash256][]byte
}

// NewStateCache constructs a StateCache over a persistent base reader.
func NewStateCache(base Reader) *StateCache {
	return &StateCache{
		base:     base,
		accounts: make(map[types.Address]*accountEntry),
		storage:  make(map[StateKey]types.Hash256),
		code:     make(map[types.Hash256][]byte),
	}
}

// Account implements Reader.
func (c *StateCache) Account(addr types.Address) (types.Account, error) {
	if e, ok := c.accounts[addr]; ok {
		if e.deleted {
			return types.EmptyAccount(), nil
		}
		return e.account, nil
	}
	return c.base.Account(addr)
}

// StorageAt implements Reader.
func (c *StateCache) StorageAt(addr types.Address, slot types.Hash256) (types.Hash256, error) {
	key := StorageSlotKey(addr, slot)
	if v, ok := c.storage[key]; ok {
		return v, nil
	}
	return c.base.StorageAt(addr, slot)
}

// CodeByHash implements Reader.
func (c *StateCache) CodeByHash(hash types.Hash256) ([]byte, error) {
	if hash == types.EmptyCodeHash {
		return nil, nil
	}
	if code, ok := c.code[hash]; ok {
		return code, nil
	}
	return c.base.CodeByHash(hash)
}

// ApplyDiff merges a completed transaction's or batch's StateDiff into the
// cache. Callers must apply diffs in TxId order across a batch to
// preserve determinism (spec §5).
func (c *StateCache) ApplyDiff(d *StateDiff) {
	for addr, acc := range d.Accounts {
		c.accounts[addr] = &accountEntry{account: acc}
	}
	for addr := range d.Deleted {
		c.accounts[addr] = &accountEntry{deleted: true}
	}
	for k, v := range d.Storage {
		c.storage[k] = v
	}
	for h, code := range d.Code {
		c.code[h] = code
	}
}

// BatchWriter is the narrow write capability a persistent store exposes
// for an atomic block commit (spec §4.6 "atomic write batch"). Satisfied
// structurally by storage.Batch, with no import-time dependency between
// the two packages.
type BatchWriter interface {
	PutAccount(addr types.Address, acc types.Account) error
	DeleteAccount(addr types.Address) error
	PutStorage(addr types.Address, slot types.Hash256, value types.Hash256) error
	DeleteStorage(addr types.Address, slot types.Hash256) error
	PutCode(hash types.Hash256, code []byte) error
	Commit() error
}

// Commit serializes the cache into a single atomic write batch (spec
// §4.6 "Commit serializes the cache into a single atomic write batch").
func (c *StateCache) Commit(w BatchWriter) error {
	for addr, e := range c.accounts {
		if e.deleted {
			if err := w.DeleteAccount(addr); err != nil {
				return err
			}
			continue
		}
		if err := w.PutAccount(addr, e.account); err != nil {
			return err
		}
	}
	for key, v := range c.storage {
		if key.Kind != KindStorage {
			continue
		}
		if v.IsZero() {
			if err := w.DeleteStorage(key.Addr, key.Slot); err != nil {
				return err
			}
			continue
		}
		if err := w.PutStorage(key.Addr, key.Slot, v); err != nil {
			return err
		}
	}
	for hash, code := range c.code {
		if err := w.PutCode(hash, code); err != nil {
			return err
		}
	}
	return w.Commit()
}
