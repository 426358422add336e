package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// step executes a single opcode, returning halt=true when the frame
// should stop (STOP/RETURN/REVERT/INVALID/SELFDESTRUCT). Running off the
// end of the code is handled by run, not here.
func (f *frame) step(op OpCode, code []byte) (bool, error) {
	switch {
	case op.IsPush():
		return false, f.opPush(op)
	case op >= DUP1 && op <= DUP16:
		return false, f.opDup(int(op - DUP1 + 1))
	case op >= SWAP1 && op <= SWAP16:
		return false, f.opSwap(int(op - SWAP1 + 1))
	case op >= LOG0 && op <= LOG4:
		return false, f.opLog(int(op - LOG0))
	}

	switch op {
	case STOP:
		return true, nil
	case ADD:
		return false, f.binOp(GasFastestStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Add(x, y) })
	case MUL:
		return false, f.binOp(GasFastStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Mul(x, y) })
	case SUB:
		return false, f.binOp(GasFastestStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Sub(x, y) })
	case DIV:
		return false, f.binOp(GasFastStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Div(x, y) })
	case SDIV:
		return false, f.binOp(GasFastStep, func(z, x, y *uint256.Int) *uint256.Int { return z.SDiv(x, y) })
	case MOD:
		return false, f.binOp(GasFastStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Mod(x, y) })
	case SMOD:
		return false, f.binOp(GasFastStep, func(z, x, y *uint256.Int) *uint256.Int { return z.SMod(x, y) })
	case ADDMOD:
		return false, f.triOp(GasMidStep, func(z, x, y, m *uint256.Int) *uint256.Int { return z.AddMod(x, y, m) })
	case MULMOD:
		return false, f.triOp(GasMidStep, func(z, x, y, m *uint256.Int) *uint256.Int { return z.MulMod(x, y, m) })
	case EXP:
		return false, f.opExp()
	case SIGNEXTEND:
		return false, f.binOp(GasFastStep, func(z, back, num *uint256.Int) *uint256.Int { return z.ExtendSign(num, back) })
	case LT:
		return false, f.cmpOp(func(x, y *uint256.Int) bool { return x.Lt(y) })
	case GT:
		return false, f.cmpOp(func(x, y *uint256.Int) bool { return x.Gt(y) })
	case SLT:
		return false, f.cmpOp(func(x, y *uint256.Int) bool { return x.Slt(y) })
	case SGT:
		return false, f.cmpOp(func(x, y *uint256.Int) bool { return x.Sgt(y) })
	case EQ:
		return false, f.cmpOp(func(x, y *uint256.Int) bool { return x.Eq(y) })
	case ISZERO:
		return false, f.unOp(GasFastestStep, func(z, x *uint256.Int) *uint256.Int {
			if x.IsZero() {
				return z.SetOne()
			}
			return z.Clear()
		})
	case AND:
		return false, f.binOp(GasFastestStep, func(z, x, y *uint256.Int) *uint256.Int { return z.And(x, y) })
	case OR:
		return false, f.binOp(GasFastestStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Or(x, y) })
	case XOR:
		return false, f.binOp(GasFastestStep, func(z, x, y *uint256.Int) *uint256.Int { return z.Xor(x, y) })
	case NOT:
		return false, f.unOp(GasFastestStep, func(z, x *uint256.Int) *uint256.Int { return z.Not(x) })
	case BYTE:
		return false, f.binOp(GasFastestStep, func(z, th, val *uint256.Int) *uint256.Int { return z.Set(val).Byte(th) })
	case SHL:
		return false, f.shiftOp(true, false)
	case SHR:
		return false, f.shiftOp(false, false)
	case SAR:
		return false, f.shiftOp(false, true)
	case KECCAK256:
		return false, f.opKeccak256()
	case ADDRESS:
		return false, f.pushAddress(f.ctx.Address)
	case BALANCE:
		return false, f.opBalance()
	case ORIGIN:
		return false, f.pushAddress(f.ctx.Origin)
	case CALLER:
		return false, f.pushAddress(f.ctx.Caller)
	case CALLVALUE:
		return false, f.consumeAndPush(GasQuickStep, bigToU256(f.ctx.Value))
	case CALLDATALOAD:
		return false, f.opCalldataLoad()
	case CALLDATASIZE:
		return false, f.consumeAndPush(GasQuickStep, u256(uint64(len(f.ctx.Input))))
	case CALLDATACOPY:
		return false, f.opDataCopy(f.ctx.Input)
	case CODESIZE:
		return false, f.consumeAndPush(GasQuickStep, u256(uint64(len(f.ctx.Code))))
	case CODECOPY:
		return false, f.opDataCopy(f.ctx.Code)
	case GASPRICE:
		return false, f.consumeAndPush(GasQuickStep, bigToU256(f.in.Tx.GasPrice))
	case EXTCODESIZE:
		return false, f.opExtcodeSize()
	case EXTCODECOPY:
		return false, f.opExtcodeCopy()
	case RETURNDATASIZE:
		return false, f.consumeAndPush(GasQuickStep, u256(uint64(len(f.retData))))
	case RETURNDATACOPY:
		return false, f.opReturnDataCopy()
	case EXTCODEHASH:
		return false, f.opExtcodeHash()
	case BLOCKHASH:
		return false, f.opBlockhash()
	case COINBASE:
		return false, f.pushAddress(f.in.Block.Coinbase)
	case TIMESTAMP:
		return false, f.consumeAndPush(GasQuickStep, u256(f.in.Block.Timestamp))
	case NUMBER:
		return false, f.consumeAndPush(GasQuickStep, u256(f.in.Block.Number))
	case PREVRANDAO:
		return false, f.consumeAndPush(GasQuickStep, new(uint256.Int).SetBytes(f.in.Block.PrevRandao[:]))
	case GASLIMIT:
		return false, f.consumeAndPush(GasQuickStep, u256(f.in.Block.GasLimit))
	case CHAINID:
		return false, f.consumeAndPush(GasQuickStep, u256(f.in.Tx.ChainID))
	case SELFBALANCE:
		return false, f.consumeAndPush(GasFastStep, bigToU256(f.in.State.GetBalance(f.ctx.Address)))
	case BASEFEE:
		return false, f.consumeAndPush(GasQuickStep, bigToU256(f.in.Block.BaseFee))
	case POP:
		if err := f.consume(GasQuickStep); err != nil {
			return false, err
		}
		_, err := f.stack.Pop()
		return false, err
	case MLOAD:
		return false, f.opMload()
	case MSTORE:
		return false, f.opMstore(false)
	case MSTORE8:
		return false, f.opMstore(true)
	case SLOAD:
		return false, f.opSload()
	case SSTORE:
		return false, f.opSstore()
	case JUMP:
		return false, f.opJump()
	case JUMPI:
		return false, f.opJumpi()
	case PC:
		return false, f.consumeAndPush(GasQuickStep, u256(f.pc))
	case MSIZE:
		return false, f.consumeAndPush(GasQuickStep, u256(f.memWords*32))
	case GAS:
		return false, f.consumeAndPush(GasQuickStep, u256(f.gas))
	case JUMPDEST:
		if err := f.consume(GasJumpdest); err != nil {
			return false, err
		}
		f.pc++
		return false, nil
	case TLOAD:
		return false, f.opTload()
	case TSTORE:
		return false, f.opTstore()
	case MCOPY:
		return false, f.opMcopy()
	case RETURN:
		return f.opReturnOrRevert(false)
	case REVERT:
		return f.opReturnOrRevert(true)
	case INVALID:
		return true, ErrInvalidOpcode
	case CREATE:
		return false, f.opCreate(false)
	case CREATE2:
		return false, f.opCreate(true)
	case CALL:
		return false, f.opCall(CallKindCall)
	case CALLCODE:
		return false, f.opCall(CallKindCallCode)
	case DELEGATECALL:
		return false, f.opCall(CallKindDelegateCall)
	case STATICCALL:
		return false, f.opCall(CallKindStaticCall)
	case SELFDESTRUCT:
		return true, f.opSelfdestruct()
	default:
		return true, ErrInvalidOpcode
	}
}

func bigToU256(v *big.Int) *uint256.Int {
	z := new(uint256.Int)
	if v == nil {
		return z
	}
	z.SetBytes(v.Bytes())
	return z
}

func (f *frame) unOp(cost uint64, op func(z, x *uint256.Int) *uint256.Int) error {
	if err := f.consume(cost); err != nil {
		return err
	}
	x, err := f.stack.Pop()
	if err != nil {
		return err
	}
	z := new(uint256.Int)
	op(z, &x)
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) triOp(cost uint64, op func(z, x, y, m *uint256.Int) *uint256.Int) error {
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
	m, err := f.stack.Pop()
	if err != nil {
		return err
	}
	z := new(uint256.Int)
	op(z, &x, &y, &m)
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) cmpOp(cmp func(x, y *uint256.Int) bool) error {
	if err := f.consume(GasFastestStep); err != nil {
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
	if cmp(&x, &y) {
		z.SetOne()
	}
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) shiftOp(left, arithmetic bool) error {
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	shift, err := f.stack.Pop()
	if err != nil {
		return err
	}
	value, err := f.stack.Pop()
	if err != nil {
		return err
	}
	z := new(uint256.Int)
	switch {
	case left:
		if shift.LtUint64(256) {
			z.Lsh(&value, uint(shift.Uint64()))
		}
	case arithmetic:
		if shift.GtUint64(255) {
			if value.Sign() >= 0 {
				z.Clear()
			} else {
				z.SetAllOne()
			}
		} else {
			z.SRsh(&value, uint(shift.Uint64()))
		}
	default:
		if shift.LtUint64(256) {
			z.Rsh(&value, uint(shift.Uint64()))
		}
	}
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) consumeAndPush(cost uint64, v *uint256.Int) error {
	if err := f.consume(cost); err != nil {
		return err
	}
	if err := f.push(v); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) pushAddress(addr types.Address) error {
	return f.consumeAndPush(GasQuickStep, new(uint256.Int).SetBytes(addr[:]))
}

func (f *frame) opPush(op OpCode) error {
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	size := op.PushSize()
	start := f.pc + 1
	end := start + uint64(size)
	var buf [32]byte
	code := f.ctx.Code
	if size > 0 {
		if end > uint64(len(code)) {
			end = uint64(len(code))
		}
		copy(buf[32-size:], code[start:end])
	}
	v := new(uint256.Int).SetBytes(buf[:])
	if err := f.push(v); err != nil {
		return err
	}
	f.pc += uint64(1 + size)
	return nil
}

func (f *frame) opDup(n int) error {
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	if err := f.stack.Dup(n); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opSwap(n int) error {
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	if err := f.stack.Swap(n); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opExp() error {
	base, err := f.stack.Pop()
	if err != nil {
		return err
	}
	exponent, err := f.stack.Pop()
	if err != nil {
		return err
	}
	if err := f.consume(ExpCost(&exponent)); err != nil {
		return err
	}
	z := new(uint256.Int)
	z.Exp(&base, &exponent)
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opKeccak256() error {
	offset, err := f.stack.Pop()
	if err != nil {
		return err
	}
	size, err := f.stack.Pop()
	if err != nil {
		return err
	}
	off, sz := offset.Uint64(), size.Uint64()
	if err := f.ensureMemory(off + sz); err != nil {
		return err
	}
	if err := f.consume(Keccak256Cost(sz)); err != nil {
		return err
	}
	data := f.mem.Get(off, sz)
	digest := cryptoutil.Keccak256Bytes(data)
	z := new(uint256.Int).SetBytes(digest)
	if err := f.push(z); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opBalance() error {
	if err := f.consume(GasBalance); err != nil {
		return err
	}
	addrW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	addr := types.BytesToAddress(addrW.Bytes())
	bal := f.in.State.GetBalance(addr)
	if err := f.push(bigToU256(bal)); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opCalldataLoad() error {
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	offsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	offset := offsetW.Uint64()
	var buf [32]byte
	if offset < uint64(len(f.ctx.Input)) {
		end := offset + 32
		if end > uint64(len(f.ctx.Input)) {
			end = uint64(len(f.ctx.Input))
		}
		copy(buf[:], f.ctx.Input[offset:end])
	}
	if err := f.push(new(uint256.Int).SetBytes(buf[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opDataCopy(source []byte) error {
	destOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	srcOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := destOffsetW.Uint64(), srcOffsetW.Uint64(), sizeW.Uint64()
	if err := f.ensureMemory(destOffset + size); err != nil {
		return err
	}
	if err := f.consume(GasFastestStep + CopyCost(size)); err != nil {
		return err
	}
	data := make([]byte, size)
	if srcOffset < uint64(len(source)) {
		end := srcOffset + size
		if end > uint64(len(source)) {
			end = uint64(len(source))
		}
		copy(data, source[srcOffset:end])
	}
	f.mem.Set(destOffset, size, data)
	f.pc++
	return nil
}

func (f *frame) opExtcodeSize() error {
	if err := f.consume(GasExtcodeSize); err != nil {
		return err
	}
	addrW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	addr := types.BytesToAddress(addrW.Bytes())
	if err := f.push(u256(uint64(f.in.State.GetCodeSize(addr)))); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opExtcodeCopy() error {
	addrW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	destOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	srcOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	addr := types.BytesToAddress(addrW.Bytes())
	destOffset, srcOffset, size := destOffsetW.Uint64(), srcOffsetW.Uint64(), sizeW.Uint64()
	if err := f.ensureMemory(destOffset + size); err != nil {
		return err
	}
	if err := f.consume(GasExtcodeCopy + CopyCost(size)); err != nil {
		return err
	}
	code := f.in.State.GetCode(addr)
	data := make([]byte, size)
	if srcOffset < uint64(len(code)) {
		end := srcOffset + size
		if end > uint64(len(code)) {
			end = uint64(len(code))
		}
		copy(data, code[srcOffset:end])
	}
	f.mem.Set(destOffset, size, data)
	f.pc++
	return nil
}

func (f *frame) opReturnDataCopy() error {
	destOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	srcOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := destOffsetW.Uint64(), srcOffsetW.Uint64(), sizeW.Uint64()
	if srcOffset+size > uint64(len(f.retData)) {
		return ErrReturnDataOutOfBounds
	}
	if err := f.ensureMemory(destOffset + size); err != nil {
		return err
	}
	if err := f.consume(GasFastestStep + CopyCost(size)); err != nil {
		return err
	}
	f.mem.Set(destOffset, size, f.retData[srcOffset:srcOffset+size])
	f.pc++
	return nil
}

func (f *frame) opExtcodeHash() error {
	if err := f.consume(GasExtcodeHash); err != nil {
		return err
	}
	addrW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	addr := types.BytesToAddress(addrW.Bytes())
	var hash types.Hash256
	if f.in.State.Exist(addr) {
		hash = f.in.State.GetCodeHash(addr)
	}
	if err := f.push(new(uint256.Int).SetBytes(hash[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opBlockhash() error {
	if err := f.consume(GasExtStep); err != nil {
		return err
	}
	numW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	var hash types.Hash256
	if f.in.Block.GetHash != nil {
		hash = f.in.Block.GetHash(numW.Uint64())
	}
	if err := f.push(new(uint256.Int).SetBytes(hash[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opMload() error {
	offsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	offset := offsetW.Uint64()
	if err := f.ensureMemory(offset + 32); err != nil {
		return err
	}
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	v := new(uint256.Int).SetBytes(f.mem.Get(offset, 32))
	if err := f.push(v); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opMstore(single bool) error {
	offsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	val, err := f.stack.Pop()
	if err != nil {
		return err
	}
	offset := offsetW.Uint64()
	size := uint64(32)
	if single {
		size = 1
	}
	if err := f.ensureMemory(offset + size); err != nil {
		return err
	}
	if err := f.consume(GasFastestStep); err != nil {
		return err
	}
	if single {
		f.mem.Set(offset, 1, []byte{byte(val.Uint64())})
	} else {
		b := val.Bytes32()
		f.mem.Set32(offset, b[:])
	}
	f.pc++
	return nil
}

func (f *frame) opMcopy() error {
	destOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	srcOffsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := destOffsetW.Uint64(), srcOffsetW.Uint64(), sizeW.Uint64()
	max := destOffset + size
	if srcOffset+size > max {
		max = srcOffset + size
	}
	if err := f.ensureMemory(max); err != nil {
		return err
	}
	if err := f.consume(GasFastestStep + CopyCost(size)); err != nil {
		return err
	}
	data := f.mem.Get(srcOffset, size)
	f.mem.Set(destOffset, size, data)
	f.pc++
	return nil
}

func (f *frame) opSload() error {
	slotW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	if err := f.consume(GasSload); err != nil {
		return err
	}
	var slot types.Hash256
	b := slotW.Bytes32()
	copy(slot[:], b[:])
	v := f.in.State.GetStorage(f.ctx.Address, slot)
	if err := f.push(new(uint256.Int).SetBytes(v[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opSstore() error {
	if f.ctx.IsStatic {
		return ErrWriteProtection
	}
	slotW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	valW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	var slot, value types.Hash256
	sb, vb := slotW.Bytes32(), valW.Bytes32()
	copy(slot[:], sb[:])
	copy(value[:], vb[:])
	current := f.in.State.GetStorage(f.ctx.Address, slot)
	class := ClassifySstore(current, value)
	if err := f.consume(class.Cost()); err != nil {
		return err
	}
	f.in.State.SetStorage(f.ctx.Address, slot, value)
	f.pc++
	return nil
}

func (f *frame) opTload() error {
	slotW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	if err := f.consume(GasSload); err != nil {
		return err
	}
	var slot types.Hash256
	b := slotW.Bytes32()
	copy(slot[:], b[:])
	v := f.in.State.GetTransientStorage(f.ctx.Address, slot)
	if err := f.push(new(uint256.Int).SetBytes(v[:])); err != nil {
		return err
	}
	f.pc++
	return nil
}

func (f *frame) opTstore() error {
	if f.ctx.IsStatic {
		return ErrWriteProtection
	}
	slotW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	valW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	if err := f.consume(GasSload); err != nil {
		return err
	}
	var slot, value types.Hash256
	sb, vb := slotW.Bytes32(), valW.Bytes32()
	copy(slot[:], sb[:])
	copy(value[:], vb[:])
	f.in.State.SetTransientStorage(f.ctx.Address, slot, value)
	f.pc++
	return nil
}

func (f *frame) opJump() error {
	if err := f.consume(GasMidStep); err != nil {
		return err
	}
	destW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	dest := destW.Uint64()
	if !f.dests.has(dest) {
		return ErrInvalidJump
	}
	f.pc = dest
	return nil
}

func (f *frame) opJumpi() error {
	if err := f.consume(GasSlowStep); err != nil {
		return err
	}
	destW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	condW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	if condW.IsZero() {
		f.pc++
		return nil
	}
	dest := destW.Uint64()
	if !f.dests.has(dest) {
		return ErrInvalidJump
	}
	f.pc = dest
	return nil
}

func (f *frame) opLog(n int) error {
	if f.ctx.IsStatic {
		return ErrWriteProtection
	}
	offsetW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	topics := make([]types.Hash256, n)
	for i := 0; i < n; i++ {
		t, err := f.stack.Pop()
		if err != nil {
			return err
		}
		b := t.Bytes32()
		copy(topics[i][:], b[:])
	}
	offset, size := offsetW.Uint64(), sizeW.Uint64()
	if err := f.ensureMemory(offset + size); err != nil {
		return err
	}
	if err := f.consume(LogCost(n, size)); err != nil {
		return err
	}
	data := f.mem.Get(offset, size)
	f.in.State.AddLog(types.Log{Address: f.ctx.Address, Topics: topics, Data: data})
	f.pc++
	return nil
}

func (f *frame) opReturnOrRevert(revert bool) (bool, error) {
	offsetW, err := f.stack.Pop()
	if err != nil {
		return true, err
	}
	sizeW, err := f.stack.Pop()
	if err != nil {
		return true, err
	}
	offset, size := offsetW.Uint64(), sizeW.Uint64()
	if err := f.ensureMemory(offset + size); err != nil {
		return true, err
	}
	f.output = f.mem.Get(offset, size)
	if revert {
		return true, ErrExecutionReverted
	}
	return true, nil
}

func (f *frame) opSelfdestruct() error {
	if f.ctx.IsStatic {
		return ErrWriteProtection
	}
	if err := f.consume(GasSelfdestruct); err != nil {
		return err
	}
	beneficiaryW, err := f.stack.Pop()
	if err != nil {
		return err
	}
	beneficiary := types.BytesToAddress(beneficiaryW.Bytes())
	balance := f.in.State.GetBalance(f.ctx.Address)
	if balance.Sign() > 0 {
		f.in.State.SubBalance(f.ctx.Address, balance)
		f.in.State.AddBalance(beneficiary, balance)
	}
	f.in.State.SelfDestruct(f.ctx.Address)
	return nil
}
