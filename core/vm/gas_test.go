package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestKeccak256Cost_RoundsUpToWholeWords(t *testing.T) {
	require.Equal(t, GasSha3, Keccak256Cost(0))
	require.Equal(t, GasSha3+GasSha3Word, Keccak256Cost(1))
	require.Equal(t, GasSha3+GasSha3Word, Keccak256Cost(32))
	require.Equal(t, GasSha3+GasSha3Word*2, Keccak256Cost(33))
}

func TestExpCost_ZeroExponentIsBaseCostOnly(t *testing.T) {
	require.Equal(t, GasExp, ExpCost(uint256.NewInt(0)))
}

func TestExpCost_ScalesWithExponentByteLength(t *testing.T) {
	require.Equal(t, GasExp+GasExpByte, ExpCost(uint256.NewInt(0xff)))
	require.Equal(t, GasExp+GasExpByte*2, ExpCost(uint256.NewInt(0x0100)))
}

func TestLogCost_ScalesWithTopicCountAndDataLength(t *testing.T) {
	require.Equal(t, GasLog, LogCost(0, 0))
	require.Equal(t, GasLog+GasLogTopic*3, LogCost(3, 0))
	require.Equal(t, GasLog+GasLogData*10, LogCost(0, 10))
}

func TestCopyCost_RoundsUpToWholeWords(t *testing.T) {
	require.Equal(t, uint64(0), CopyCost(0))
	require.Equal(t, GasCopy, CopyCost(1))
	require.Equal(t, GasCopy, CopyCost(32))
	require.Equal(t, GasCopy*2, CopyCost(33))
}

func TestClassifySstore_NoopWhenValueUnchanged(t *testing.T) {
	v := [32]byte{1}
	require.Equal(t, SstoreNoop, ClassifySstore(v, v))
}

func TestClassifySstore_SetWhenGoingFromZero(t *testing.T) {
	var zero [32]byte
	v := [32]byte{1}
	require.Equal(t, SstoreSet, ClassifySstore(zero, v))
}

func TestClassifySstore_ResetWhenOverwritingNonzero(t *testing.T) {
	v1 := [32]byte{1}
	v2 := [32]byte{2}
	require.Equal(t, SstoreReset, ClassifySstore(v1, v2))
}

func TestSstoreClass_CostMatchesClassification(t *testing.T) {
	require.Equal(t, GasSstoreNoop, SstoreNoop.Cost())
	require.Equal(t, GasSstoreSet, SstoreSet.Cost())
	require.Equal(t, GasSstoreReset, SstoreReset.Cost())
}

func TestCallCost_WarmNoValueNoNewAccount(t *testing.T) {
	require.Equal(t, GasCall, CallCost(true, false, false))
}

func TestCallCost_ColdAccessIsMoreExpensive(t *testing.T) {
	require.Equal(t, GasSloadCold, CallCost(false, false, false))
}

func TestCallCost_ValueAndNewAccountSurcharge(t *testing.T) {
	require.Equal(t, GasCall+GasCallValue+GasNewAccount, CallCost(true, true, true))
}

func TestCallGasForwarded_CapsAtSixtyThreeSixtyFourths(t *testing.T) {
	// requesting everything: capped to 63/64 of remaining.
	require.Equal(t, uint64(6300), CallGasForwarded(1_000_000, 6400))
}

func TestCallGasForwarded_PassesThroughWhenBelowCap(t *testing.T) {
	require.Equal(t, uint64(100), CallGasForwarded(100, 6400))
}

func TestIntrinsicGas_BaseFeeWithNoData(t *testing.T) {
	require.Equal(t, GasTxIntrinsic, IntrinsicGas(nil))
}

func TestIntrinsicGas_ChargesZeroAndNonZeroBytesDifferently(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01}
	want := GasTxIntrinsic + 2*GasTxDataZero + GasTxDataNonZero
	require.Equal(t, want, IntrinsicGas(data))
}
