package storage

import (
	"github.com/cockroachdb/pebble"

	"github.com/permabft/chain/core/types"
)

// Batch is a single atomic write, satisfying core/state.BatchWriter
// structurally: StateCache.Commit calls exactly these six methods without
// either package importing the other (spec §4.6 "atomic write batch").
type Batch struct {
	store *Store
	batch *pebble.Batch

	pendingAccounts map[types.Address][]byte
	pendingCode     map[types.Hash256][]byte
	pendingTip      *ChainTip
}

// PutAccount stages an account write.
func (b *Batch) PutAccount(addr types.Address, acc types.Account) error {
	raw := encodeAccount(acc)
	if err := b.batch.Set(accountKey(addr), raw, nil); err != nil {
		return err
	}
	if b.pendingAccounts == nil {
		b.pendingAccounts = make(map[types.Address][]byte)
	}
	b.pendingAccounts[addr] = raw
	return nil
}

// DeleteAccount stages an account tombstone.
func (b *Batch) DeleteAccount(addr types.Address) error {
	if b.pendingAccounts == nil {
		b.pendingAccounts = make(map[types.Address][]byte)
	}
	b.pendingAccounts[addr] = nil // Commit drops it from the read-through cache
	return b.batch.Delete(accountKey(addr), nil)
}

// PutStorage stages a storage slot write.
func (b *Batch) PutStorage(addr types.Address, slot types.Hash256, value types.Hash256) error {
	return b.batch.Set(storageKey(addr, slot), value[:], nil)
}

// DeleteStorage stages a storage slot tombstone.
func (b *Batch) DeleteStorage(addr types.Address, slot types.Hash256) error {
	return b.batch.Delete(storageKey(addr, slot), nil)
}

// PutCode stages a code blob write, keyed by its hash.
func (b *Batch) PutCode(hash types.Hash256, code []byte) error {
	if err := b.batch.Set(codeKey(hash), code, nil); err != nil {
		return err
	}
	if b.pendingCode == nil {
		b.pendingCode = make(map[types.Hash256][]byte)
	}
	b.pendingCode[hash] = code
	return nil
}

// SetTip stages the chain-tip update in the same atomic batch as the
// state writes it describes, so a crash never leaves the tip pointing
// past what was actually committed.
func (b *Batch) SetTip(tip ChainTip) error {
	var e encoder
	e.putUint64(tip.Number)
	e.putBytes(tip.Hash[:])
	if err := b.batch.Set(metaTipKey, e.buf.Bytes(), nil); err != nil {
		return err
	}
	b.pendingTip = &tip
	return nil
}

// Commit applies the batch atomically with a synchronous write, then
// refreshes the read-through caches and cached chain tip for anything it
// wrote. The in-memory tip only advances after the durable write
// succeeds, so a failed Commit never leaves Store.Tip ahead of disk.
func (b *Batch) Commit() error {
	if err := b.store.db.Apply(b.batch, pebble.Sync); err != nil {
		return err
	}
	for addr, raw := range b.pendingAccounts {
		if raw == nil {
			b.store.accountsFC.Del(addr[:])
			continue
		}
		b.store.accountsFC.Set(addr[:], raw)
	}
	for hash, code := range b.pendingCode {
		b.store.codeFC.Set(hash[:], code)
	}
	if b.pendingTip != nil {
		b.store.tip, b.store.hasTip = *b.pendingTip, true
	}
	return nil
}
