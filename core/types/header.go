package types

import (
	"math/big"

	"github.com/permabft/chain/core/rlpmin"
	"github.com/permabft/chain/cryptoutil"
)

// EmptyOmmersHash is the fixed sentinel this chain uses for the
// ommers_hash field: it never has uncles, so the field is always
// keccak256 of an empty RLP list, carried only for header-shape
// compatibility with EVM tooling that expects it.
var EmptyOmmersHash = cryptoutil.Keccak256(rlpmin.EncodeList())

// encode and Hash live in encoding.go: the canonical header encoding is
// the one spec-mandated wire form this package writes directly, rather
// than routing through a general-purpose codec (see encoding.go).

// ZeroRootsV0 documents that, under header format version 0, state_root
// and transactions_root/receipts_root placeholders are the zero hash
// (spec §9 "state root"): no Merkle-Patricia trie is computed in this
// version of the protocol. A future version that adds trie commitments
// would bump a header version rather than silently redefining these
// fields.
const ZeroRootsV0 = true

// Header is a block header in the order specified by spec §6.
type Header struct {
	ParentHash       Hash256
	OmmersHash       Hash256
	Beneficiary      Address
	StateRoot        Hash256
	TransactionsRoot Hash256
	ReceiptsRoot     Hash256
	LogsBloom        Bloom
	Difficulty       *big.Int
	Number           uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	MixHash          Hash256
	Nonce            [8]byte
	BaseFeePerGas    *big.Int // optional; nil omits the field entirely
}
