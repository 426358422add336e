package vm

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/permabft/chain/core/types"
)

// jumpdestCacheSize bounds the number of distinct contract codes whose
// analysis is memoized. Re-entering the same deployed contract across many
// transactions and blocks is the common case, so this cache saves a
// linear re-scan of the bytecode on every CALL (spec §4.4 "pre-computed
// set of valid JUMPDEST offsets").
const jumpdestCacheSize = 4096

var jumpdestCache, _ = lru.New(jumpdestCacheSize)

// destinations is the set of valid JUMPDEST offsets in a piece of code,
// skipping bytes embedded in PUSH operands.
type destinations map[uint64]struct{}

func (d destinations) has(pos uint64) bool {
	_, ok := d[pos]
	return ok
}

func analyze(code []byte) destinations {
	dests := make(destinations)
	for pc := uint64(0); pc < uint64(len(code)); pc++ {
		op := OpCode(code[pc])
		if op == JUMPDEST {
			dests[pc] = struct{}{}
			continue
		}
		if op.IsPush() {
			pc += uint64(op.PushSize())
		}
	}
	return dests
}

// analyzeCached returns the memoized JUMPDEST set for code, keyed by its
// content hash. A zero hash (init code, or a caller that did not set
// CodeHash) does not identify the code, so it is analyzed uncached.
func analyzeCached(codeHash types.Hash256, code []byte) destinations {
	if codeHash == (types.Hash256{}) {
		return analyze(code)
	}
	if v, ok := jumpdestCache.Get(codeHash); ok {
		return v.(destinations)
	}
	d := analyze(code)
	jumpdestCache.Add(codeHash, d)
	return d
}
