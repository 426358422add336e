package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/core/types"
)

// pushN encodes a PUSH<len(v)> instruction carrying v as its immediate,
// matching the big-endian convention the interpreter's opPush decodes.
func pushN(v ...byte) []byte {
	return append([]byte{byte(PUSH1) + byte(len(v)-1)}, v...)
}

func asm(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestOpCreate_DeploysInitCodeOutputAsNewContract(t *testing.T) {
	// init code: stores a single STOP byte at memory[0] and returns it as
	// the 1-byte deployed code.
	initCode := asm(
		pushN(0x00),       // value to store (STOP opcode)
		pushN(0x00),       // offset
		[]byte{byte(MSTORE8)},
		pushN(0x01),       // size
		pushN(0x00),       // offset
		[]byte{byte(RETURN)},
	)
	require.Len(t, initCode, 10)

	outer := asm(
		pushN(initCode...), // PUSH10 <initCode>
		pushN(0x00),        // mstore offset
		[]byte{byte(MSTORE)},
		pushN(0x0a),                 // CREATE size = 10
		pushN(byte(32-len(initCode))), // CREATE offset = 22 (where the right-aligned bytes land)
		pushN(0x00),                 // CREATE value = 0
		[]byte{byte(CREATE)},
		pushN(0x00), // mstore offset for the returned address
		[]byte{byte(MSTORE)},
		pushN(0x20), // RETURN size = 32
		pushN(0x00), // RETURN offset = 0
		[]byte{byte(RETURN)},
	)

	sender := types.Address{0x01}
	in := testInterpreter()
	result := in.Run(CallContext{Address: sender, Code: outer}, 1_000_000)
	require.True(t, result.Success, "%v", result.Err)
	require.Len(t, result.Output, 32)

	want := CreateAddress(sender, 0)
	require.Equal(t, want[:], result.Output[12:], "the address pushed by CREATE must be the deterministic CREATE address for (sender, nonce=0)")
}

func TestOpCreate_StaticContextRejectsCreate(t *testing.T) {
	outer := asm(
		pushN(0x00), pushN(0x00), pushN(0x00),
		[]byte{byte(CREATE)},
	)
	in := testInterpreter()
	result := in.Run(CallContext{Address: types.Address{0x01}, Code: outer, IsStatic: true}, 100_000)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, ErrWriteProtection)
}

func TestOpCall_ToEmptyAccountSucceedsWithNoOutput(t *testing.T) {
	var callee types.Address
	for i := range callee {
		callee[i] = 0xbb
	}

	outer := asm(
		pushN(0x00), // retSize
		pushN(0x00), // retOffset
		pushN(0x00), // argsSize
		pushN(0x00), // argsOffset
		pushN(0x00), // value
		pushN(callee[:]...), // address
		pushN(0xc3, 0x50),   // gas = 50000
		[]byte{byte(CALL)},
		pushN(0x00), // mstore offset
		[]byte{byte(MSTORE)},
		pushN(0x20), pushN(0x00),
		[]byte{byte(RETURN)},
	)

	in := testInterpreter()
	result := in.Run(CallContext{Address: types.Address{0x01}, Code: outer}, 1_000_000)
	require.True(t, result.Success, "%v", result.Err)
	require.Len(t, result.Output, 32)
	require.Equal(t, byte(1), result.Output[31], "CALL to an account with no code must report success")
}

func TestOpCall_StaticCallRejectsValueTransfer(t *testing.T) {
	var callee types.Address
	callee[19] = 0x01

	outer := asm(
		pushN(0x00), pushN(0x00), pushN(0x00), pushN(0x00),
		pushN(0x01), // nonzero value on a CALL from a static context
		pushN(callee[:]...),
		pushN(0xc3, 0x50),
		[]byte{byte(CALL)},
	)

	in := testInterpreter()
	result := in.Run(CallContext{Address: types.Address{0x01}, Code: outer, IsStatic: true}, 1_000_000)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, ErrWriteProtection)
}

func TestOpCall_SecondCallToSameAddressIsWarm(t *testing.T) {
	var callee types.Address
	for i := range callee {
		callee[i] = 0xcc
	}

	oneCall := asm(
		pushN(0x00), pushN(0x00), pushN(0x00), pushN(0x00), pushN(0x00),
		pushN(callee[:]...), pushN(0xc3, 0x50),
		[]byte{byte(CALL)},
		[]byte{byte(POP)},
	)

	single := testInterpreter()
	r1 := single.Run(CallContext{Address: types.Address{0x01}, Code: oneCall}, 1_000_000)
	require.True(t, r1.Success, "%v", r1.Err)
	firstCallCost := 1_000_000 - r1.GasLeft

	double := testInterpreter()
	r2 := double.Run(CallContext{Address: types.Address{0x01}, Code: asm(oneCall, oneCall)}, 1_000_000)
	require.True(t, r2.Success, "%v", r2.Err)
	secondCallCost := (1_000_000 - r2.GasLeft) - firstCallCost

	require.Less(t, secondCallCost, firstCallCost,
		"a repeat CALL to the same address within one transaction must be charged the warm rate")
}

func TestCallGasForwarded_NeverExceedsRemaining(t *testing.T) {
	require.LessOrEqual(t, CallGasForwarded(1<<62, 1000), uint64(1000))
}
