package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/core/types"
)

func TestRWSet_ConflictsWith_RAW(t *testing.T) {
	a := types.Address{0x01}
	earlier := NewRWSet()
	earlier.RecordWrite(BalanceKey(a))

	later := NewRWSet()
	later.RecordRead(BalanceKey(a))

	require.True(t, earlier.ConflictsWith(later))
}

func TestRWSet_ConflictsWith_WAW(t *testing.T) {
	a := types.Address{0x01}
	earlier := NewRWSet()
	earlier.RecordWrite(BalanceKey(a))

	later := NewRWSet()
	later.RecordWrite(BalanceKey(a))

	require.True(t, earlier.ConflictsWith(later))
}

func TestRWSet_ConflictsWith_WAR(t *testing.T) {
	a := types.Address{0x01}
	earlier := NewRWSet()
	earlier.RecordRead(BalanceKey(a))

	later := NewRWSet()
	later.RecordWrite(BalanceKey(a))

	require.True(t, earlier.ConflictsWith(later))
}

func TestRWSet_ConflictsWith_DisjointKeysNoConflict(t *testing.T) {
	a, b := types.Address{0x01}, types.Address{0x02}
	earlier := NewRWSet()
	earlier.RecordWrite(BalanceKey(a))
	earlier.RecordRead(NonceKey(a))

	later := NewRWSet()
	later.RecordWrite(BalanceKey(b))
	later.RecordRead(NonceKey(b))

	require.False(t, earlier.ConflictsWith(later))
}

func TestRWSet_ConflictsWith_TwoReadsNeverConflict(t *testing.T) {
	a := types.Address{0x01}
	earlier := NewRWSet()
	earlier.RecordRead(BalanceKey(a))

	later := NewRWSet()
	later.RecordRead(BalanceKey(a))

	require.False(t, earlier.ConflictsWith(later))
}

func TestStateKey_StorageKeysDistinguishedBySlot(t *testing.T) {
	addr := types.Address{0x01}
	k1 := StorageSlotKey(addr, types.Hash256{0x01})
	k2 := StorageSlotKey(addr, types.Hash256{0x02})
	require.NotEqual(t, k1, k2)
	require.Equal(t, k1, StorageSlotKey(addr, types.Hash256{0x01}), "StateKey is comparable by value")
}
