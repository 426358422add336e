package types

import (
	"math/big"

	"github.com/permabft/chain/cryptoutil"
)

// EmptyCodeHash is the sentinel code hash of an account with no code.
var EmptyCodeHash = cryptoutil.Keccak256(nil)

// Account is the per-address state record. A missing entry is equivalent
// to Account{Nonce: 0, Balance: 0, CodeHash: EmptyCodeHash}.
type Account struct {
	Nonce        uint64
	Balance      *big.Int
	CodeHash     Hash256
	StorageRoot  *Hash256 // optional; the core does not maintain a per-account trie
}

// EmptyAccount returns the implicit zero-value account.
func EmptyAccount() Account {
	return Account{Nonce: 0, Balance: big.NewInt(0), CodeHash: EmptyCodeHash}
}

// IsContract reports whether the account has deployed code.
func (a Account) IsContract() bool { return a.CodeHash != EmptyCodeHash }

// Clone returns a deep copy of a, safe to mutate independently.
func (a Account) Clone() Account {
	out := a
	if a.Balance != nil {
		out.Balance = new(big.Int).Set(a.Balance)
	} else {
		out.Balance = big.NewInt(0)
	}
	if a.StorageRoot != nil {
		root := *a.StorageRoot
		out.StorageRoot = &root
	}
	return out
}
