// Package executor applies a single signed transaction against a
// state.Access view, running the EVM for calls and creations, settling
// gas and value transfers, and producing the resulting receipt (spec
// §4.5). It is the ExecuteFunc implementation the scheduler drives.
package executor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/permabft/chain/core/errs"
	"github.com/permabft/chain/core/state"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/core/vm"
)

// ErrBlockGasLimitExceeded is returned by Apply when admitting tx would
// push the block's cumulative gas usage past its header gas_limit (spec
// §4.5 step 6, §3 block invariant "Σ receipt.gas_used ≤ header.gas_limit").
var ErrBlockGasLimitExceeded = errors.New("executor: block gas limit exceeded")

// Environment carries the per-block values every transaction in the block
// is executed against.
type Environment struct {
	Block   vm.BlockContext
	ChainID uint64
	BaseFee *big.Int // nil on a chain that has not activated the dynamic-fee market
}

// Executor applies transactions one at a time against a state.Access.
type Executor struct {
	Env Environment
}

// New constructs an Executor for a block's environment.
func New(env Environment) *Executor {
	return &Executor{Env: env}
}

// Apply executes tx against access: validates the sender's nonce and
// balance, charges the upfront gas*limit cost, runs the EVM for a call or
// creation, settles leftover gas and the miner's fee, and returns the
// resulting receipt. cumulativeGasUsed is the running total of gas spent
// by earlier transactions in the same block.
func (e *Executor) Apply(access state.Access, tx *types.SignedTransaction, cumulativeGasUsed uint64) (*types.Receipt, error) {
	access.ResetRWSet()

	sender, err := tx.Sender()
	if err != nil {
		return nil, errs.Wrap(errs.Crypto, err)
	}

	if tx.Type == types.DynamicFeeType && e.Env.BaseFee == nil {
		return nil, errs.Wrap(errs.Malformed, fmt.Errorf("executor: dynamic fee transaction requires a base fee"))
	}
	gasPrice, err := tx.EffectiveGasPrice(e.Env.BaseFee)
	if err != nil {
		return nil, errs.Wrap(errs.Policy, err)
	}

	nonce := access.GetNonce(sender)
	if tx.Nonce != nonce {
		return nil, errs.Wrap(errs.Policy, fmt.Errorf("executor: nonce mismatch for %s: tx has %d, account has %d", sender, tx.Nonce, nonce))
	}

	if cumulativeGasUsed+tx.GasLimit > e.Env.Block.GasLimit {
		return nil, errs.Wrap(errs.Policy, fmt.Errorf("%w: cumulative gas %d + tx gas limit %d exceeds block gas limit %d",
			ErrBlockGasLimitExceeded, cumulativeGasUsed, tx.GasLimit, e.Env.Block.GasLimit))
	}

	intrinsic := vm.IntrinsicGas(tx.Data)
	if tx.GasLimit < intrinsic {
		return nil, errs.Wrap(errs.Policy, fmt.Errorf("executor: gas limit %d below intrinsic gas %d", tx.GasLimit, intrinsic))
	}

	upfront := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(tx.GasLimit))
	upfront.Add(upfront, tx.Value)
	if access.GetBalance(sender).Cmp(upfront) < 0 {
		return nil, errs.Wrap(errs.Policy, fmt.Errorf("executor: %s cannot afford gas*limit+value", sender))
	}

	access.SubBalance(sender, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(tx.GasLimit)))
	access.SetNonce(sender, nonce+1)

	// Pre-warm the sender and the transaction's direct target the way the
	// access list is seeded before a transaction starts (spec §4.4).
	access.AddAddressToAccessList(sender)
	if tx.To != nil {
		access.AddAddressToAccessList(*tx.To)
	}

	gasForExecution := tx.GasLimit - intrinsic
	in := vm.NewInterpreter(access, e.Env.Block, vm.TxContext{Origin: sender, GasPrice: gasPrice, ChainID: e.Env.ChainID})

	var (
		contractAddr *types.Address
		result       *vm.ExecutionResult
	)
	if tx.IsContractCreation() {
		addr, res := e.create(in, access, sender, nonce, tx.Value, tx.Data, gasForExecution)
		result = res
		if res.Success {
			contractAddr = &addr
		}
	} else {
		result = e.call(in, access, sender, *tx.To, tx.Value, tx.Data, gasForExecution)
	}

	gasUsed := tx.GasLimit - result.GasLeft
	access.AddBalance(sender, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(result.GasLeft)))
	access.AddBalance(e.Env.Block.Coinbase, feeSplit(tx, gasPrice, e.Env.BaseFee, gasUsed))
	access.ResetTransient()

	status := types.ReceiptStatusFailure
	logs := []types.Log{}
	if result.Success {
		status = types.ReceiptStatusSuccess
		logs = access.Logs()
	}

	receipt := &types.Receipt{
		Status:            status,
		CumulativeGasUsed: cumulativeGasUsed + gasUsed,
		GasUsed:           gasUsed,
		Logs:              logs,
		ContractAddress:   contractAddr,
		TxHash:            tx.Hash(),
	}
	receipt.LogsBloom = LogsBloom(receipt.Logs)
	return receipt, nil
}

// create runs a top-level contract creation transaction, mirroring the
// CREATE opcode's account-collision check and code-deposit charge (spec
// §4.4 "Contract creation") but against the transaction's own nonce rather
// than a caller frame's.
func (e *Executor) create(in *vm.Interpreter, access state.Access, sender types.Address, nonce uint64, value *big.Int, initCode []byte, gas uint64) (types.Address, *vm.ExecutionResult) {
	addr := vm.CreateAddress(sender, nonce)
	snap := access.Snapshot()

	if access.GetNonce(addr) != 0 || access.GetCodeSize(addr) != 0 {
		access.RevertToSnapshot(snap)
		return addr, &vm.ExecutionResult{Success: false, GasLeft: 0, Err: vm.ErrContractAddressCollision}
	}

	access.CreateAccount(addr)
	access.SetNonce(addr, 1)
	access.SubBalance(sender, value)
	access.AddBalance(addr, value)

	result := in.Run(vm.CallContext{
		Address:  addr,
		Caller:   sender,
		Origin:   sender,
		Value:    value,
		Input:    nil,
		Code:     initCode,
		CodeHash: types.Hash256{},
		Depth:    0,
	}, gas)

	if !result.Success {
		access.RevertToSnapshot(snap)
		return addr, &vm.ExecutionResult{Success: false, GasLeft: result.GasLeft, Err: result.Err, Reverted: result.Reverted}
	}
	if len(result.Output) > vm.MaxCodeSize {
		access.RevertToSnapshot(snap)
		return addr, &vm.ExecutionResult{Success: false, GasLeft: 0, Err: vm.ErrMaxCodeSizeExceeded}
	}
	depositCost := vm.GasCodeDeposit * uint64(len(result.Output))
	if result.GasLeft < depositCost {
		access.RevertToSnapshot(snap)
		return addr, &vm.ExecutionResult{Success: false, GasLeft: 0, Err: vm.ErrOutOfGas}
	}
	access.SetCode(addr, result.Output)
	return addr, &vm.ExecutionResult{Success: true, GasLeft: result.GasLeft - depositCost, Output: result.Output}
}

// call runs a top-level message call: a value transfer into to, and if to
// carries code, an EVM execution of it.
func (e *Executor) call(in *vm.Interpreter, access state.Access, sender, to types.Address, value *big.Int, input []byte, gas uint64) *vm.ExecutionResult {
	snap := access.Snapshot()
	if !access.Exist(to) {
		access.CreateAccount(to)
	}
	access.SubBalance(sender, value)
	access.AddBalance(to, value)

	code := access.GetCode(to)
	if len(code) == 0 {
		return &vm.ExecutionResult{Success: true, GasLeft: gas}
	}

	result := in.Run(vm.CallContext{
		Address:  to,
		Caller:   sender,
		Origin:   sender,
		Value:    value,
		Input:    input,
		Code:     code,
		CodeHash: access.GetCodeHash(to),
		Depth:    0,
	}, gas)
	if !result.Success {
		access.RevertToSnapshot(snap)
		return &vm.ExecutionResult{Success: false, GasLeft: result.GasLeft, Err: result.Err, Reverted: result.Reverted}
	}
	return result
}
