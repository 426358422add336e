package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (f *frame) pushZero() error {
	if err := f.push(new(uint256.Int)); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) pushOne() error {
	if err := f.push(new(uint256.Int).SetOne()); err != nil {
		return err
	}
	f.pc++
	return nil
}

// opCreate implements CREATE and CREATE2 (spec §4.4 "Contract creation"):
// snapshot, run init code as a fresh frame, charge a per-byte deposit for
// the returned code, and store it at the derived address. Any failure of
// the init-code frame reverts the snapshot and leaves 0 on the stack; it
// never propagates the sub-frame's error into the caller's result.
func (f *frame) opCreate(isCreate2 bool) error {
	if f.ctx.IsStatic {
		return ErrWriteProtection
	}
	valueW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	offsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	var salt uint256.Int
	if isCreate2 {
		s, err := f.stack.Pop()
		if err != nil {
			return err
		}
		salt = s
	}
	offset, size := offsetW.Uint64(), sizeW.Uint64()
	if err := f.ensureMemory(offset + size); err != nil {
		return err
	}
	baseCost := GasCreate
	if isCreate2 {
		baseCost += Keccak256Cost(size)
	}
	if err := f.consume(baseCost); err != nil {
		return err
	}
	initCode := f.mem.Get(offset, size)
	value := valueW.ToBig()

	if f.ctx.Depth+1 > MaxCallDepth {
		return f.pushZero()
	}
	if f.in.State.GetBalance(f.ctx.Address).Cmp(value) < 0 {
		return f.pushZero()
	}

	sender := f.ctx.Address
	nonce := f.in.State.GetNonce(sender)
	var newAddr types.Address
	if isCreate2 {
		var saltBytes [32]byte
		sb := salt.Bytes32()
		copy(saltBytes[:], sb[:])
		newAddr = Create2Address(sender, saltBytes, initCode)
	} else {
		newAddr = CreateAddress(sender, nonce)
	}
	if f.in.State.GetNonce(newAddr) != 0 || f.in.State.GetCodeSize(newAddr) != 0 {
		return f.pushZero()
	}
	f.in.State.AddAddressToAccessList(newAddr)

	snap := f.in.State.Snapshot()
	f.in.State.SetNonce(sender, nonce+1)
	f.in.State.CreateAccount(newAddr)
	f.in.State.SetNonce(newAddr, 1)
	if value.Sign() != 0 {
		f.in.State.SubBalance(sender, value)
		f.in.State.AddBalance(newAddr, value)
	}

	forwarded := f.gas - f.gas/64
	if err := f.consume(forwarded); err != nil {
		return err
	}

	result := f.in.Run(CallContext{
		Address:  newAddr,
		Caller:   sender,
		Origin:   f.ctx.Origin,
		Value:    value,
		Code:     initCode,
		CodeHash: cryptoutil.Keccak256(initCode),
		IsStatic: false,
		Depth:    f.ctx.Depth + 1,
	}, forwarded)
	f.gas += result.GasLeft
	f.retData = result.Output

	if !result.Success {
		f.in.State.RevertToSnapshot(snap)
		return f.pushZero()
	}

	code := result.Output
	if len(code) > MaxCodeSize {
		f.in.State.RevertToSnapshot(snap)
		return f.pushZero()
	}
	deposit := GasCodeDeposit * uint64(len(code))
	if f.gas < deposit {
		f.in.State.RevertToSnapshot(snap)
		return f.pushZero()
	}
	f.gas -= deposit
	f.in.State.SetCode(newAddr, code)
	f.retData = nil
	if err := f.push(new(uint256.Int).SetBytes(newAddr[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

// opCall implements the CALL/CALLCODE/DELEGATECALL/STATICCALL family (spec
// §4.4 "Nested calls"): it derives the callee's CallContext from kind,
// forwards gas under the all-but-one-64th rule plus a free stipend on
// value transfer, and never lets a reverted or failed sub-call unwind
// past this opcode — only the pushed success flag and return data record
// the outcome.
func (f *frame) opCall(kind CallKind) error {
	gasW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	addrW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	var valueW uint256.Int
	hasValueOperand := kind == CallKindCall || kind == CallKindCallCode
	if hasValueOperand {
		v, err := f.stack.Pop()
		if err != nil {
			return err
		}
		valueW = v
	}
	argsOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	argsSizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	retOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	retSizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}

	addr := types.BytesToAddress(addrW.Bytes())
	argsOffset, argsSize := argsOffsetW.Uint64(), argsSizeW.Uint64()
	retOffset, retSize := retOffsetW.Uint64(), retSizeW.Uint64()

	maxMem := argsOffset + argsSize
	if x := retOffset + retSize; x > maxMem {
		maxMem = x
	}
	if err := f.ensureMemory(maxMem); err != nil {
		return err
	}

	var value *big.Int
	switch kind {
	case CallKindCall, CallKindCallCode:
		value = valueW.ToBig()
	case CallKindDelegateCall:
		value = f.ctx.Value
	default:
		value = new(big.Int)
	}
	hasValueTransfer := (kind == CallKindCall || kind == CallKindCallCode) && value.Sign() != 0
	if hasValueTransfer && f.ctx.IsStatic {
		return ErrWriteProtection
	}

	var execAddr types.Address
	var calleeCaller types.Address
	switch kind {
	case CallKindCall, CallKindStaticCall:
		execAddr = addr
		calleeCaller = f.ctx.Address
	case CallKindCallCode:
		execAddr = f.ctx.Address
		calleeCaller = f.ctx.Address
	case CallKindDelegateCall:
		execAddr = f.ctx.Address
		calleeCaller = f.ctx.Caller
	}

	warm := f.in.State.AddressInAccessList(addr)
	f.in.State.AddAddressToAccessList(addr)
	newAccount := kind == CallKindCall && !f.in.State.Exist(addr)
	if err := f.consume(CallCost(warm, newAccount, hasValueTransfer)); err != nil {
		return err
	}

	requested := gasW.Uint64()
	if !gasW.IsUint64() {
		requested = f.gas
	}
	capped := CallGasForwarded(requested, f.gas)
	if err := f.consume(capped); err != nil {
		return err
	}
	childGas := capped
	if hasValueTransfer {
		childGas += GasCallStipend
	}

	if hasValueTransfer && f.in.State.GetBalance(f.ctx.Address).Cmp(value) < 0 {
		f.gas += capped
		f.retData = nil
		return f.pushZero()
	}
	if f.ctx.Depth+1 > MaxCallDepth {
		f.gas += capped
		f.retData = nil
		return f.pushZero()
	}

	args := f.mem.Get(argsOffset, argsSize)
	code := f.in.State.GetCode(addr)
	codeHash := f.in.State.GetCodeHash(addr)
	isStatic := f.ctx.IsStatic || kind == CallKindStaticCall

	snap := f.in.State.Snapshot()
	if hasValueTransfer {
		if !f.in.State.Exist(execAddr) {
			f.in.State.CreateAccount(execAddr)
		}
		f.in.State.SubBalance(f.ctx.Address, value)
		f.in.State.AddBalance(execAddr, value)
	}

	result := f.in.Run(CallContext{
		Address:  execAddr,
		Caller:   calleeCaller,
		Origin:   f.ctx.Origin,
		Value:    value,
		Input:    args,
		Code:     code,
		CodeHash: codeHash,
		IsStatic: isStatic,
		Depth:    f.ctx.Depth + 1,
	}, childGas)
	f.gas += result.GasLeft
	f.retData = result.Output
	f.mem.Set(retOffset, minUint64(retSize, uint64(len(result.Output))), result.Output)

	if !result.Success {
		f.in.State.RevertToSnapshot(snap)
		return f.pushZero()
	}
	return f.pushOne()
}
