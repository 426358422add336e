// Package storage is the persistent layered state store (spec §4.6): a
// github.com/cockroachdb/pebble-backed key-value engine with one-byte
// key-prefix "column families" and a github.com/VictoriaMetrics/fastcache
// read-through cache in front of the accounts and code families.
package storage

import (
	"errors"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cockroachdb/pebble"

	"github.com/permabft/chain/core/types"
)

// ErrNotFound is returned for a missing key, translated from pebble's own
// sentinel so callers never import pebble directly.
var ErrNotFound = errors.New("storage: not found")

// accountCacheBytes and codeCacheBytes size the fastcache layers in front
// of the two hottest families (spec §4.6 "cache over persistent
// key-value store").
const (
	accountCacheBytes = 32 << 20
	codeCacheBytes    = 64 << 20
)

// ChainTip is the most recently committed block's number and hash, kept
// in memory and refreshed on every commit to avoid a meta round trip on
// the orchestrator's hot path (spec §3 "ChainTip").
type ChainTip struct {
	Number uint64
	Hash   types.Hash256
}

// Store is the persistent backend: block headers/bodies/receipts, the
// account/storage/code state families, and the chain tip.
type Store struct {
	db          *pebble.DB
	accountsFC  *fastcache.Cache
	codeFC      *fastcache.Cache
	tip         ChainTip
	hasTip      bool
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:         db,
		accountsFC: fastcache.New(accountCacheBytes),
		codeFC:     fastcache.New(codeCacheBytes),
	}
	if tip, ok, err := s.loadTip(); err != nil {
		db.Close()
		return nil, err
	} else if ok {
		s.tip, s.hasTip = tip, true
	}
	return s, nil
}

// Close releases the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, closer.Close()
}

// --- state.Reader ---

// Account implements state.Reader, structurally.
func (s *Store) Account(addr types.Address) (types.Account, error) {
	if cached := s.accountsFC.Get(nil, addr[:]); cached != nil {
		return decodeAccount(cached)
	}
	raw, err := s.get(accountKey(addr))
	if errors.Is(err, ErrNotFound) {
		return types.EmptyAccount(), nil
	}
	if err != nil {
		return types.Account{}, err
	}
	acc, err := decodeAccount(raw)
	if err != nil {
		return types.Account{}, err
	}
	s.accountsFC.Set(addr[:], raw)
	return acc, nil
}

// StorageAt implements state.Reader, structurally.
func (s *Store) StorageAt(addr types.Address, slot types.Hash256) (types.Hash256, error) {
	raw, err := s.get(storageKey(addr, slot))
	if errors.Is(err, ErrNotFound) {
		return types.Hash256{}, nil
	}
	if err != nil {
		return types.Hash256{}, err
	}
	return types.BytesToHash(raw), nil
}

// CodeByHash implements state.Reader, structurally.
func (s *Store) CodeByHash(hash types.Hash256) ([]byte, error) {
	if hash == types.EmptyCodeHash {
		return nil, nil
	}
	if cached := s.codeFC.Get(nil, hash[:]); cached != nil {
		return cached, nil
	}
	raw, err := s.get(codeKey(hash))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.codeFC.Set(hash[:], raw)
	return raw, nil
}

// --- blocks, bodies, receipts ---

// PutBlock persists a block's header and body.
func (s *Store) PutBlock(block *types.Block) error {
	number := block.Header.Number
	if err := s.db.Set(headerKey(number), encodeHeader(block.Header), pebble.Sync); err != nil {
		return err
	}
	if err := s.db.Set(bodyKey(number), encodeBody(block.Body), pebble.Sync); err != nil {
		return err
	}
	hash := block.Hash()
	return s.db.Set(blockIndexKey(hash), numberBytes(number), pebble.Sync)
}

// Header returns the header at number.
func (s *Store) Header(number uint64) (*types.Header, error) {
	raw, err := s.get(headerKey(number))
	if err != nil {
		return nil, err
	}
	return decodeHeader(raw)
}

// Body returns the body at number.
func (s *Store) Body(number uint64) (types.Body, error) {
	raw, err := s.get(bodyKey(number))
	if err != nil {
		return types.Body{}, err
	}
	return decodeBody(raw)
}

// NumberByHash resolves a block hash to its number via the block index
// family.
func (s *Store) NumberByHash(hash types.Hash256) (uint64, error) {
	raw, err := s.get(blockIndexKey(hash))
	if err != nil {
		return 0, err
	}
	return numberFromBytes(raw), nil
}

// PutReceipts persists the receipts produced by executing the block at
// number (spec §3 "BlockReceipts").
func (s *Store) PutReceipts(number uint64, receipts []*types.Receipt) error {
	return s.db.Set(receiptsKey(number), encodeReceipts(receipts), pebble.Sync)
}

// Receipts returns the receipts recorded for the block at number.
func (s *Store) Receipts(number uint64) ([]*types.Receipt, error) {
	raw, err := s.get(receiptsKey(number))
	if err != nil {
		return nil, err
	}
	return decodeReceipts(raw)
}

// --- chain tip ---

// Tip returns the cached chain tip and whether one has ever been set.
func (s *Store) Tip() (ChainTip, bool) { return s.tip, s.hasTip }

func (s *Store) loadTip() (ChainTip, bool, error) {
	raw, err := s.get(metaTipKey)
	if errors.Is(err, ErrNotFound) {
		return ChainTip{}, false, nil
	}
	if err != nil {
		return ChainTip{}, false, err
	}
	d := decoder{b: raw}
	number, err := d.getUint64()
	if err != nil {
		return ChainTip{}, false, err
	}
	hashBytes, err := d.getBytes()
	if err != nil {
		return ChainTip{}, false, err
	}
	return ChainTip{Number: number, Hash: types.BytesToHash(hashBytes)}, true, nil
}

func (s *Store) setTip(tip ChainTip) error {
	var e encoder
	e.putUint64(tip.Number)
	e.putBytes(tip.Hash[:])
	if err := s.db.Set(metaTipKey, e.buf.Bytes(), pebble.Sync); err != nil {
		return err
	}
	s.tip, s.hasTip = tip, true
	return nil
}

func numberBytes(n uint64) []byte {
	var e encoder
	e.putUint64(n)
	return e.buf.Bytes()
}

func numberFromBytes(b []byte) uint64 {
	d := decoder{b: b}
	n, _ := d.getUint64()
	return n
}

// NewBatch opens a new atomic write batch over the store's families,
// satisfying state.BatchWriter structurally.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, batch: s.db.NewBatch()}
}
