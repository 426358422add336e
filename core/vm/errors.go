package vm

import "errors"

// Deterministic execution failures (spec §4.4, §7 "Execution failure").
// All are local to the failing frame: the caller observes a zero on the
// stack, never a panic. Only REVERT leaves data in the return buffer;
// the other failures leave it empty.
var (
	ErrOutOfGas             = errors.New("vm: out of gas")
	ErrInvalidJump          = errors.New("vm: invalid jump destination")
	ErrInvalidOpcode        = errors.New("vm: invalid opcode")
	ErrWriteProtection      = errors.New("vm: write protection in static context")
	ErrExecutionReverted    = errors.New("vm: execution reverted")
	ErrMaxCodeSizeExceeded  = errors.New("vm: max code size exceeded")
	ErrMaxCallDepthExceeded = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance  = errors.New("vm: insufficient balance for call value")
	ErrReturnDataOutOfBounds = errors.New("vm: return data copy out of bounds")
	ErrContractAddressCollision = errors.New("vm: contract address collision")
)

// ExecutionResult is the outcome of running one interpreter frame (spec
// §4.4 "Termination and outputs").
type ExecutionResult struct {
	Success  bool
	GasUsed  uint64
	GasLeft  uint64
	Output   []byte // RETURN data, or REVERT reason
	Err      error
	Reverted bool
}
