package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/permabft/chain/core/state"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// Interpreter executes EVM bytecode against a state.Access implementation
// and a block/tx environment (spec §4.4). One Interpreter instance is
// reused across the whole call tree of a transaction; each nested call
// runs through Interpreter.Run with a fresh CallContext and its own
// stack/memory/pc, bracketed by a state snapshot.
type Interpreter struct {
	State state.Access
	Block BlockContext
	Tx    TxContext
}

// NewInterpreter constructs an Interpreter over the given state access and
// environment.
func NewInterpreter(access state.Access, block BlockContext, tx TxContext) *Interpreter {
	return &Interpreter{State: access, Block: block, Tx: tx}
}

// frame is the mutable execution state of one Run invocation.
type frame struct {
	in       *Interpreter
	ctx      CallContext
	stack    *Stack
	mem      *Memory
	memWords uint64
	gas      uint64
	pc       uint64
	dests    destinations
	retData  []byte // return data from this frame's most recent sub-call
	output   []byte
}

// Run executes ctx.Code starting with gas available, returning the
// outcome (spec §4.4 "Termination and outputs"). It never panics on
// malformed bytecode or resource exhaustion: every failure mode is a
// deterministic ExecutionResult.
func (in *Interpreter) Run(ctx CallContext, gas uint64) *ExecutionResult {
	f := &frame{
		in:    in,
		ctx:   ctx,
		stack: NewStack(),
		mem:   NewMemory(),
		gas:   gas,
		dests: analyzeCached(ctx.CodeHash, ctx.Code),
	}
	err := f.run()
	used := gas - f.gas
	if err != nil {
		if err == ErrExecutionReverted {
			return &ExecutionResult{Success: false, Reverted: true, GasUsed: used, GasLeft: f.gas, Output: f.output, Err: err}
		}
		// Any other deterministic failure consumes all remaining gas of
		// the failing frame (spec §4.4 "Out-of-gas... failure").
		return &ExecutionResult{Success: false, GasUsed: gas, GasLeft: 0, Err: err}
	}
	return &ExecutionResult{Success: true, GasUsed: used, GasLeft: f.gas, Output: f.output}
}

func (f *frame) consume(amount uint64) error {
	if f.gas < amount {
		f.gas = 0
		return ErrOutOfGas
	}
	f.gas -= amount
	return nil
}

// ensureMemory charges the memory-expansion cost to grow to size bytes and
// resizes the buffer (spec §4.4 memory-expansion formula).
func (f *frame) ensureMemory(size uint64) error {
	if size == 0 {
		return nil
	}
	newWords := Words(size)
	if newWords <= f.memWords {
		return nil
	}
	cost := MemoryExpansionCost(f.memWords, newWords)
	if err := f.consume(cost); err != nil {
		return err
	}
	f.mem.Resize(newWords * 32)
	f.memWords = newWords
	return nil
}

func u256(v uint64) *uint256.Int { return uint256.NewInt(v) }

func (f *frame) push(v *uint256.Int) error { return f.stack.Push(v) }

func (f *frame) binOp(cost uint64, op func(z, x, y *uint256.Int) *uint256.Int) error {
	if err := f.consume(cost); err != nil {
		return err
	}
	x, err := f.stack.Pop()
	if err != nil {
		return err
	}
	y, err := f.stack.Pop()
	if err != nil {
		return err
	}
	z := new(uint256.Int)
	op(z, &x, &y)
	return f.push(z)
}

func (f *frame) run() error {
	code := f.ctx.Code
	for {
		if f.pc >= uint64(len(code)) {
			return nil // implicit STOP at end-of-code
		}
		op := OpCode(code[f.pc])
		halt, err := f.step(op, code)
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
	}
}
