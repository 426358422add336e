package state

import (
	"math/big"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

func keccak(b []byte) types.Hash256 { return cryptoutil.Keccak256(b) }

// CachedState is the read-after-write overlay the EVM executes against: a
// Reader-backed cache with journaled mutations for snapshot/revert (spec
// §4.6 "CachedState wraps a base reader"). A single instance spans one
// transaction's outer frame and all of its nested calls; Snapshot/
// RevertToSnapshot brackets each sub-call per spec §4.4.
type CachedState struct {
	base Reader

	accounts   map[types.Address]types.Account
	created    map[types.Address]bool
	destructed map[types.Address]bool
	code       map[types.Address][]byte // newly set code, keyed by address for quick lookup
	codeByHash map[types.Hash256][]byte
	storage    map[StateKey]types.Hash256
	transient  map[StateKey]types.Hash256
	warm       map[types.Address]bool
	logs       []types.Log

	journal []journalEntry
	rw      *RWSet
}

// NewCachedState constructs a CachedState over base.
func NewCachedState(base Reader) *CachedState {
	return &CachedState{
		base:       base,
		accounts:   make(map[types.Address]types.Account),
		created:    make(map[types.Address]bool),
		destructed: make(map[types.Address]bool),
		code:       make(map[types.Address][]byte),
		codeByHash: make(map[types.Hash256][]byte),
		storage:    make(map[StateKey]types.Hash256),
		transient:  make(map[StateKey]types.Hash256),
		warm:       make(map[types.Address]bool),
		rw:         NewRWSet(),
	}
}

func (s *CachedState) loadAccount(addr types.Address) types.Account {
	if acc, ok := s.accounts[addr]; ok {
		return acc
	}
	acc, err := s.base.Account(addr)
	if err != nil {
		acc = types.EmptyAccount()
	}
	s.accounts[addr] = acc.Clone()
	return s.accounts[addr]
}

// --- reads ---

func (s *CachedState) GetBalance(addr types.Address) *big.Int {
	s.rw.RecordRead(BalanceKey(addr))
	return new(big.Int).Set(s.loadAccount(addr).Balance)
}

func (s *CachedState) GetNonce(addr types.Address) uint64 {
	s.rw.RecordRead(NonceKey(addr))
	return s.loadAccount(addr).Nonce
}

func (s *CachedState) GetCodeHash(addr types.Address) types.Hash256 {
	s.rw.RecordRead(CodeKey(addr))
	return s.loadAccount(addr).CodeHash
}

func (s *CachedState) GetCode(addr types.Address) []byte {
	s.rw.RecordRead(CodeKey(addr))
	if c, ok := s.code[addr]; ok {
		return c
	}
	hash := s.loadAccount(addr).CodeHash
	if hash == types.EmptyCodeHash {
		return nil
	}
	if c, ok := s.codeByHash[hash]; ok {
		return c
	}
	c, err := s.base.CodeByHash(hash)
	if err != nil {
		return nil
	}
	return c
}

func (s *CachedState) GetCodeSize(addr types.Address) int { return len(s.GetCode(addr)) }

func (s *CachedState) GetStorage(addr types.Address, slot types.Hash256) types.Hash256 {
	key := StorageSlotKey(addr, slot)
	s.rw.RecordRead(key)
	if v, ok := s.storage[key]; ok {
		return v
	}
	v, err := s.base.StorageAt(addr, slot)
	if err != nil {
		return types.Hash256{}
	}
	s.storage[key] = v
	return v
}

func (s *CachedState) Exist(addr types.Address) bool {
	if _, ok := s.accounts[addr]; ok {
		if s.destructed[addr] {
			return false
		}
		return true
	}
	acc, err := s.base.Account(addr)
	if err != nil {
		return false
	}
	return acc.Nonce != 0 || acc.Balance.Sign() != 0 || acc.CodeHash != types.EmptyCodeHash
}

func (s *CachedState) Empty(addr types.Address) bool {
	acc := s.loadAccount(addr)
	return acc.Nonce == 0 && acc.Balance.Sign() == 0 && acc.CodeHash == types.EmptyCodeHash
}

// --- writes ---

func (s *CachedState) CreateAccount(addr types.Address) {
	if _, ok := s.accounts[addr]; ok {
		return
	}
	s.accounts[addr] = types.EmptyAccount()
	s.created[addr] = true
	s.journal = append(s.journal, createChange{addr: addr})
}

func (s *CachedState) setBalance(addr types.Address, v *big.Int) {
	acc := s.loadAccount(addr)
	acc.Balance = new(big.Int).Set(v)
	s.accounts[addr] = acc
}

func (s *CachedState) AddBalance(addr types.Address, amount *big.Int) {
	s.rw.RecordWrite(BalanceKey(addr))
	if amount.Sign() == 0 {
		return
	}
	acc := s.loadAccount(addr)
	s.journal = append(s.journal, balanceChange{addr: addr, prev: new(big.Int).Set(acc.Balance)})
	s.setBalance(addr, new(big.Int).Add(acc.Balance, amount))
}

func (s *CachedState) SubBalance(addr types.Address, amount *big.Int) {
	s.rw.RecordWrite(BalanceKey(addr))
	if amount.Sign() == 0 {
		return
	}
	acc := s.loadAccount(addr)
	s.journal = append(s.journal, balanceChange{addr: addr, prev: new(big.Int).Set(acc.Balance)})
	s.setBalance(addr, new(big.Int).Sub(acc.Balance, amount))
}

func (s *CachedState) setNonce(addr types.Address, n uint64) {
	acc := s.loadAccount(addr)
	acc.Nonce = n
	s.accounts[addr] = acc
}

func (s *CachedState) SetNonce(addr types.Address, nonce uint64) {
	s.rw.RecordWrite(NonceKey(addr))
	acc := s.loadAccount(addr)
	s.journal = append(s.journal, nonceChange{addr: addr, prev: acc.Nonce})
	s.setNonce(addr, nonce)
}

func (s *CachedState) setCode(addr types.Address, hash types.Hash256, code []byte) {
	acc := s.loadAccount(addr)
	acc.CodeHash = hash
	s.accounts[addr] = acc
	if code != nil {
		s.code[addr] = code
		s.codeByHash[hash] = code
	} else {
		delete(s.code, addr)
	}
}

func (s *CachedState) SetCode(addr types.Address, code []byte) {
	s.rw.RecordWrite(CodeKey(addr))
	acc := s.loadAccount(addr)
	prevCode := s.code[addr]
	s.journal = append(s.journal, codeChange{addr: addr, prevHash: acc.CodeHash, prevCode: prevCode})
	hash := types.EmptyCodeHash
	if len(code) > 0 {
		hash = keccak(code)
	}
	s.setCode(addr, hash, code)
}

func (s *CachedState) SetStorage(addr types.Address, slot types.Hash256, value types.Hash256) {
	key := StorageSlotKey(addr, slot)
	s.rw.RecordWrite(key)
	prev := s.GetStorage(addr, slot)
	if prev == value {
		return
	}
	s.journal = append(s.journal, storageChange{key: key, prev: prev})
	s.storage[key] = value
}

func (s *CachedState) AddLog(log types.Log) {
	s.logs = append(s.logs, log)
	s.journal = append(s.journal, logAppend{})
}

func (s *CachedState) SelfDestruct(addr types.Address) {
	s.rw.RecordWrite(BalanceKey(addr))
	prev := s.destructed[addr]
	s.journal = append(s.journal, selfDestructChange{addr: addr, prev: prev})
	s.destructed[addr] = true
}

func (s *CachedState) HasSelfDestructed(addr types.Address) bool { return s.destructed[addr] }

func (s *CachedState) GetTransientStorage(addr types.Address, slot types.Hash256) types.Hash256 {
	return s.transient[StorageSlotKey(addr, slot)]
}

func (s *CachedState) SetTransientStorage(addr types.Address, slot types.Hash256, value types.Hash256) {
	key := StorageSlotKey(addr, slot)
	prev := s.transient[key]
	if prev == value {
		return
	}
	s.journal = append(s.journal, transientChange{key: key, prev: prev})
	s.transient[key] = value
}

func (s *CachedState) AddressInAccessList(addr types.Address) bool { return s.warm[addr] }

// AddAddressToAccessList marks addr warm. Not journaled: a reverted
// sub-call still leaves addresses it touched warm for the rest of the
// transaction, matching EIP-2929.
func (s *CachedState) AddAddressToAccessList(addr types.Address) { s.warm[addr] = true }

// --- snapshot/revert ---

func (s *CachedState) Snapshot() int { return len(s.journal) }

func (s *CachedState) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:id]
}

func (s *CachedState) ResetRWSet() { s.rw = NewRWSet() }

func (s *CachedState) RWSet() *RWSet { return s.rw }

func (s *CachedState) Logs() []types.Log { return s.logs }

// ResetTransient clears transient storage; called once at the end of the
// outer transaction (spec §4.4 "reset at the end of the outer
// transaction"), never mid sub-call.
func (s *CachedState) ResetTransient() {
	s.transient = make(map[StateKey]types.Hash256)
}

// Diff produces the net effect of this CachedState's lifetime, to be
// merged into the block-level StateCache (spec §4.6, §5 "merged into the
// block-level cache at batch boundary").
func (s *CachedState) Diff() *StateDiff {
	d := &StateDiff{
		Accounts: make(map[types.Address]types.Account, len(s.accounts)),
		Deleted:  make(map[types.Address]bool, len(s.destructed)),
		Storage:  make(map[StateKey]types.Hash256, len(s.storage)),
		Code:     make(map[types.Hash256][]byte, len(s.codeByHash)),
	}
	for addr, acc := range s.accounts {
		if s.destructed[addr] {
			d.Deleted[addr] = true
			continue
		}
		d.Accounts[addr] = acc
	}
	for k, v := range s.storage {
		d.Storage[k] = v
	}
	for h, c := range s.codeByHash {
		d.Code[h] = c
	}
	return d
}
