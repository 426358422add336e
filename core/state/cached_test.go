package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/core/types"
)

type emptyReader struct{}

func (emptyReader) Account(types.Address) (types.Account, error) { return types.EmptyAccount(), nil }
func (emptyReader) StorageAt(types.Address, types.Hash256) (types.Hash256, error) {
	return types.Hash256{}, nil
}
func (emptyReader) CodeByHash(types.Hash256) ([]byte, error) { return nil, nil }

func TestCachedState_BalanceReadsRecordRWSet(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})

	s.AddBalance(addr, big.NewInt(100))
	require.Equal(t, 0, big.NewInt(100).Cmp(s.GetBalance(addr)))

	require.True(t, s.RWSet().Writes.Contains(BalanceKey(addr)))
	require.True(t, s.RWSet().Reads.Contains(BalanceKey(addr)))
}

func TestCachedState_RevertToSnapshot_UndoesBalanceAndNonce(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})
	s.AddBalance(addr, big.NewInt(1000))
	s.SetNonce(addr, 1)

	snap := s.Snapshot()
	s.SubBalance(addr, big.NewInt(400))
	s.SetNonce(addr, 2)
	require.Equal(t, 0, big.NewInt(600).Cmp(s.GetBalance(addr)))
	require.Equal(t, uint64(2), s.GetNonce(addr))

	s.RevertToSnapshot(snap)
	require.Equal(t, 0, big.NewInt(1000).Cmp(s.GetBalance(addr)))
	require.Equal(t, uint64(1), s.GetNonce(addr))
}

func TestCachedState_RevertToSnapshot_NestedSnapshotsUnwindInOrder(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})
	s.AddBalance(addr, big.NewInt(100))

	outer := s.Snapshot()
	s.AddBalance(addr, big.NewInt(10))
	inner := s.Snapshot()
	s.AddBalance(addr, big.NewInt(1))
	require.Equal(t, 0, big.NewInt(111).Cmp(s.GetBalance(addr)))

	s.RevertToSnapshot(inner)
	require.Equal(t, 0, big.NewInt(110).Cmp(s.GetBalance(addr)))

	s.RevertToSnapshot(outer)
	require.Equal(t, 0, big.NewInt(100).Cmp(s.GetBalance(addr)))
}

func TestCachedState_RevertToSnapshot_UndoesStorageSetCodeAndSelfDestruct(t *testing.T) {
	addr := types.Address{0x01}
	slot := types.Hash256{0x02}
	value := types.Hash256{0x03}
	s := NewCachedState(emptyReader{})

	snap := s.Snapshot()
	s.SetStorage(addr, slot, value)
	s.SetCode(addr, []byte{0x60, 0x00})
	s.SelfDestruct(addr)

	require.Equal(t, value, s.GetStorage(addr, slot))
	require.NotEmpty(t, s.GetCode(addr))
	require.True(t, s.HasSelfDestructed(addr))

	s.RevertToSnapshot(snap)
	require.Equal(t, types.Hash256{}, s.GetStorage(addr, slot))
	require.Empty(t, s.GetCode(addr))
	require.False(t, s.HasSelfDestructed(addr))
}

func TestCachedState_RevertToSnapshot_UndoesAccountCreation(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})

	snap := s.Snapshot()
	s.CreateAccount(addr)
	require.True(t, s.Exist(addr))

	s.RevertToSnapshot(snap)
	require.False(t, s.Exist(addr))
}

func TestCachedState_RevertToSnapshot_UndoesLogAppend(t *testing.T) {
	s := NewCachedState(emptyReader{})
	snap := s.Snapshot()
	s.AddLog(types.Log{Address: types.Address{0x01}})
	require.Len(t, s.Logs(), 1)

	s.RevertToSnapshot(snap)
	require.Empty(t, s.Logs())
}

func TestCachedState_TransientStorage_NeverRecordedInRWSet(t *testing.T) {
	addr := types.Address{0x01}
	slot := types.Hash256{0x02}
	value := types.Hash256{0x03}
	s := NewCachedState(emptyReader{})

	s.SetTransientStorage(addr, slot, value)
	require.Equal(t, value, s.GetTransientStorage(addr, slot))
	require.False(t, s.RWSet().Reads.Contains(StorageSlotKey(addr, slot)))
	require.False(t, s.RWSet().Writes.Contains(StorageSlotKey(addr, slot)))

	s.ResetTransient()
	require.Equal(t, types.Hash256{}, s.GetTransientStorage(addr, slot))
}

func TestCachedState_AccessList_ColdUntilAdded(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})

	require.False(t, s.AddressInAccessList(addr))
	s.AddAddressToAccessList(addr)
	require.True(t, s.AddressInAccessList(addr))

	other := types.Address{0x02}
	require.False(t, s.AddressInAccessList(other))
}

func TestCachedState_AccessList_SurvivesSnapshotRevert(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})

	snap := s.Snapshot()
	s.AddAddressToAccessList(addr)
	require.True(t, s.AddressInAccessList(addr))

	s.RevertToSnapshot(snap)
	require.True(t, s.AddressInAccessList(addr), "an address stays warm even if the call that touched it reverts")
}

func TestCachedState_ResetRWSet_ClearsPriorReadsAndWrites(t *testing.T) {
	addr := types.Address{0x01}
	s := NewCachedState(emptyReader{})
	s.AddBalance(addr, big.NewInt(1))
	require.False(t, s.RWSet().Writes.IsEmpty())

	s.ResetRWSet()
	require.True(t, s.RWSet().Writes.IsEmpty())
	require.True(t, s.RWSet().Reads.IsEmpty())
}

func TestCachedState_Diff_SeparatesLiveFromDestructedAccounts(t *testing.T) {
	alive, dead := types.Address{0x01}, types.Address{0x02}
	s := NewCachedState(emptyReader{})
	s.AddBalance(alive, big.NewInt(5))
	s.AddBalance(dead, big.NewInt(5))
	s.SelfDestruct(dead)

	diff := s.Diff()
	require.Contains(t, diff.Accounts, alive)
	require.NotContains(t, diff.Accounts, dead)
	require.True(t, diff.Deleted[dead])
}

func TestCachedState_Diff_CarriesStorageAndCode(t *testing.T) {
	addr := types.Address{0x01}
	slot := types.Hash256{0x02}
	value := types.Hash256{0x03}
	code := []byte{0x60, 0x00, 0x60, 0x00}
	s := NewCachedState(emptyReader{})
	s.SetStorage(addr, slot, value)
	s.SetCode(addr, code)

	diff := s.Diff()
	require.Equal(t, value, diff.Storage[StorageSlotKey(addr, slot)])
	require.NotEmpty(t, diff.Code)
}
