package evm

import (
	"math/big"
	"math/bits"
	"sync"

	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/types"
)

type instruction func(c *state)

var (
	zero     = big.NewInt(0)
	one      = big.NewInt(1)
	wordSize = big.NewInt(32)
)

// _W is the word size of a big.Int limb
const _W = bits.UintSize

var bigPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func acquireBig() *big.Int {
	b, ok := bigPool.Get().(*big.Int)
	if !ok {
		panic("invalid type assertion") //nolint:gocritic
	}

	return b
}

func releaseBig(b *big.Int) {
	bigPool.Put(b.SetInt64(0))
}

// 2 ^ 256
var tt256 = new(big.Int).Lsh(big.NewInt(1), 256)

var tt256m1 = new(big.Int).Sub(tt256, big.NewInt(1))

// 2 ^ 255
var tt255 = new(big.Int).Lsh(big.NewInt(1), 255)

func toU256(x *big.Int) *big.Int {
	if x.Sign() < 0 || x.BitLen() > 256 {
		x.And(x, tt256m1)
	}

	return x
}

func to256(x *big.Int) *big.Int {
	if x.BitLen() > 255 {
		x.Sub(x, tt256)
	}

	return x
}

func opAdd(c *state) {
	a := c.pop()
	b := c.top()

	b.Add(a, b)
	toU256(b)
}

func opMul(c *state) {
	a := c.pop()
	b := c.top()

	b.Mul(a, b)
	toU256(b)
}

func opSub(c *state) {
	a := c.pop()
	b := c.top()

	b.Sub(a, b)
	toU256(b)
}

func opDiv(c *state) {
	a := c.pop()
	b := c.top()

	if b.Sign() == 0 {
		// division by zero
		b.Set(zero)
	} else {
		b.Div(a, b)
		toU256(b)
	}
}

func opSDiv(c *state) {
	a := to256(c.pop())
	b := to256(c.top())

	if b.Sign() == 0 {
		// division by zero
		b.Set(zero)
	} else {
		neg := a.Sign() != b.Sign()
		b.Div(a.Abs(a), b.Abs(b))

		if neg {
			b.Neg(b)
		}

		toU256(b)
	}
}

func opMod(c *state) {
	a := c.pop()
	b := c.top()

	if b.Sign() == 0 {
		// modulo by zero
		b.Set(zero)
	} else {
		b.Mod(a, b)
		toU256(b)
	}
}

func opSMod(c *state) {
	a := to256(c.pop())
	b := to256(c.top())

	if b.Sign() == 0 {
		// modulo by zero
		b.Set(zero)
	} else {
		neg := a.Sign() < 0
		b.Mod(a.Abs(a), b.Abs(b))

		if neg {
			b.Neg(b)
		}

		toU256(b)
	}
}

func opAddMod(c *state) {
	a := c.pop()
	b := c.pop()
	z := c.top()

	if z.Sign() == 0 {
		// modulo by zero
		z.Set(zero)
	} else {
		a.Add(a, b)
		z.Mod(a, z)
		toU256(z)
	}
}

func opMulMod(c *state) {
	a := c.pop()
	b := c.pop()
	z := c.top()

	if z.Sign() == 0 {
		// modulo by zero
		z.Set(zero)
	} else {
		a.Mul(a, b)
		z.Mod(a, z)
		toU256(z)
	}
}

func opExp(c *state) {
	x := c.pop()
	y := c.top()

	// dynamic portion, per byte of the exponent
	var gas uint64 = uint64(y.BitLen()+7) / 8 * 50
	if !c.consumeGas(gas) {
		return
	}

	z := acquireBig().Set(one)

	// https://www.programminglogic.com/fast-exponentiation-algorithms/
	for _, d := range y.Bits() {
		for i := 0; i < _W; i++ {
			if d&1 == 1 {
				toU256(z.Mul(z, x))
			}

			d >>= 1

			toU256(x.Mul(x, x))
		}
	}

	y.Set(z)
	releaseBig(z)
}

func opSignExtension(c *state) {
	ext := c.pop()
	x := c.top()

	if ext.Cmp(wordSize) > 0 {
		return
	}

	if x == nil {
		return
	}

	bit := uint(ext.Uint64()*8 + 7)

	mask := acquireBig().Set(one)
	mask.Lsh(mask, bit)
	mask.Sub(mask, one)

	if x.Bit(int(bit)) > 0 {
		mask.Not(mask)
		x.Or(x, mask)
	} else {
		x.And(x, mask)
	}

	toU256(x)
	releaseBig(mask)
}

func equalOrOverflowsUint256(b *big.Int) bool {
	return b.BitLen() > 8
}

func opShl(c *state) {
	shift := c.pop()
	x := c.top()

	if equalOrOverflowsUint256(shift) {
		x.Set(zero)
	} else {
		x.Lsh(x, uint(shift.Uint64()))
		toU256(x)
	}
}

func opShr(c *state) {
	shift := c.pop()
	x := c.top()

	if equalOrOverflowsUint256(shift) {
		x.Set(zero)
	} else {
		x.Rsh(x, uint(shift.Uint64()))
	}
}

func opSar(c *state) {
	shift := c.pop()
	x := to256(c.top())

	if equalOrOverflowsUint256(shift) {
		if x.Sign() >= 0 {
			x.Set(zero)
		} else {
			x.Set(big.NewInt(-1))
		}

		toU256(x)
	} else {
		x.Rsh(x, uint(shift.Uint64()))
		toU256(x)
	}
}

func opAnd(c *state) {
	a := c.pop()
	b := c.top()

	b.And(a, b)
}

func opOr(c *state) {
	a := c.pop()
	b := c.top()

	b.Or(a, b)
}

func opXor(c *state) {
	a := c.pop()
	b := c.top()

	b.Xor(a, b)
}

func opByte(c *state) {
	x := c.pop()
	y := c.top()

	indx := x.Int64()
	if x.BitLen() > 8 || indx > 31 {
		y.Set(zero)
	} else {
		sh := (31 - indx) * 8
		y.Rsh(y, uint(sh))
		y.And(y, big.NewInt(0xff))
	}
}

func opNot(c *state) {
	a := c.top()

	a.Not(a)
	toU256(a)
}

func opIsZero(c *state) {
	a := c.top()

	if a.Sign() == 0 {
		a.Set(one)
	} else {
		a.Set(zero)
	}
}

func opEq(c *state) {
	a := c.pop()
	b := c.top()

	if a.Cmp(b) == 0 {
		b.Set(one)
	} else {
		b.Set(zero)
	}
}

func opLt(c *state) {
	a := c.pop()
	b := c.top()

	if a.Cmp(b) < 0 {
		b.Set(one)
	} else {
		b.Set(zero)
	}
}

func opGt(c *state) {
	a := c.pop()
	b := c.top()

	if a.Cmp(b) > 0 {
		b.Set(one)
	} else {
		b.Set(zero)
	}
}

func opSlt(c *state) {
	a := to256(c.pop())
	b := to256(c.top())

	if a.Cmp(b) < 0 {
		b.Set(one)
	} else {
		b.Set(zero)
	}
}

func opSgt(c *state) {
	a := to256(c.pop())
	b := to256(c.top())

	if a.Cmp(b) > 0 {
		b.Set(one)
	} else {
		b.Set(zero)
	}
}

func opSha3(c *state) {
	offset := c.pop()
	length := c.pop()

	var ok bool
	if c.tmp, ok = c.get2(c.tmp[:0], offset, length); !ok {
		return
	}

	// dynamic gas, per word of input
	words := (uint64(len(c.tmp)) + 31) / 32
	if !c.consumeGas(words * 6) {
		return
	}

	c.tmp = keccak.Keccak256(c.tmp[:0], c.tmp)

	v := c.push1()
	v.SetBytes(c.tmp)
}

func opPop(c *state) {
	c.pop()
}

// context operations

func opAddress(c *state) {
	c.push1().SetBytes(c.msg.Address.Bytes())
}

func opBalance(c *state) {
	addr, _ := c.popAddr()

	c.push1().Set(c.host.GetBalance(addr))
}

func opSelfBalance(c *state) {
	c.push1().Set(c.host.GetBalance(c.msg.Address))
}

func opOrigin(c *state) {
	c.push1().SetBytes(c.msg.Origin.Bytes())
}

func opCaller(c *state) {
	c.push1().SetBytes(c.msg.Caller.Bytes())
}

func opCallValue(c *state) {
	v := c.push1()

	if value := c.msg.Value; value != nil {
		v.Set(value)
	} else {
		v.Set(zero)
	}
}

func opCallDataLoad(c *state) {
	offset := c.top()

	bufPtr := bufPool.Get().(*[]byte) //nolint:forcetypeassert
	buf := *bufPtr

	c.setBytes(buf[:32], getSlice(c.msg.Input, offset, wordSize), 32)
	offset.SetBytes(buf[:32])

	bufPool.Put(bufPtr)
}

func opCallDataSize(c *state) {
	c.push1().SetUint64(uint64(len(c.msg.Input)))
}

func opCodeSize(c *state) {
	c.push1().SetUint64(uint64(len(c.code)))
}

func opExtCodeSize(c *state) {
	addr, _ := c.popAddr()

	c.push1().SetUint64(uint64(c.host.GetCodeSize(addr)))
}

func opGasPrice(c *state) {
	c.push1().SetBytes(c.host.GetTxContext().GasPrice.Bytes())
}

func opReturnDataSize(c *state) {
	c.push1().SetUint64(uint64(len(c.returnData)))
}

func opExtCodeHash(c *state) {
	address, _ := c.popAddr()

	v := c.push1()

	if c.host.Empty(address) {
		v.Set(zero)
	} else {
		v.SetBytes(c.host.GetCodeHash(address).Bytes())
	}
}

func opPC(c *state) {
	c.push1().SetUint64(uint64(c.ip))
}

func opMSize(c *state) {
	c.push1().SetUint64(uint64(len(c.memory)))
}

func opGas(c *state) {
	c.push1().SetUint64(c.gas)
}

var bufPool = sync.Pool{
	New: func() interface{} {
		// Store pointer to avoid heap allocation in caller
		// Please check SA6002 in StaticCheck for details
		buf := make([]byte, 128)

		return &buf
	},
}

func opMLoad(c *state) {
	offset := c.top()

	if !c.checkMemory(offset, wordSize) {
		return
	}

	o := offset.Uint64()
	offset.SetBytes(c.memory[o : o+32])
}

func opMStore(c *state) {
	offset := c.pop()
	val := c.pop()

	if !c.checkMemory(offset, wordSize) {
		return
	}

	o := offset.Uint64()
	val.FillBytes(c.memory[o : o+32])
}

func opMStore8(c *state) {
	offset := c.pop()
	val := c.pop()

	if !c.checkMemory(offset, one) {
		return
	}

	c.memory[offset.Uint64()] = byte(val.Uint64() & 0xff)
}

// storage operations

func opSLoad(c *state) {
	loc := c.top()

	var slot types.Hash
	loc.FillBytes(slot[:])

	val := c.host.GetStorage(c.msg.Address, slot)
	loc.SetBytes(val.Bytes())
}

func opSStore(c *state) {
	if c.inStaticCall() {
		c.exit(runtime.ErrWriteProtection)

		return
	}

	// EIP-2200 gas sentry
	if c.gas <= 2300 {
		c.exit(errOutOfGas)

		return
	}

	var key, val types.Hash

	c.pop().FillBytes(key[:])
	c.pop().FillBytes(val[:])

	status := c.host.SetStorage(c.msg.Address, key, val)

	var cost uint64

	switch status {
	case runtime.StorageUnchanged, runtime.StorageModifiedAgain:
		cost = 800

	case runtime.StorageModified, runtime.StorageDeleted:
		cost = 5000

	case runtime.StorageAdded:
		cost = 20000

	case runtime.StorageReadFailed:
		c.exit(runtime.ErrOutOfGas)

		return
	}

	if !c.consumeGas(cost) {
		return
	}
}

// jump operations

func opJump(c *state) {
	dest := c.pop()

	if c.validJumpdest(dest) {
		c.ip = int(dest.Uint64()) - 1
	} else {
		c.exit(runtime.ErrInvalidJump)
	}
}

func opJumpi(c *state) {
	dest := c.pop()
	cond := c.pop()

	if cond.Sign() != 0 {
		if c.validJumpdest(dest) {
			c.ip = int(dest.Uint64()) - 1
		} else {
			c.exit(runtime.ErrInvalidJump)
		}
	}
}

func opJumpDest(c *state) {
}

func opPush(n int) instruction {
	return func(c *state) {
		ins := c.code
		ip := c.ip

		v := c.push1()
		if ip+1+n > len(ins) {
			v.SetBytes(append(
				ins[ip+1:],
				make([]byte, n-(len(ins)-ip-1))...,
			))
		} else {
			v.SetBytes(ins[ip+1 : ip+1+n])
		}

		c.ip += n
	}
}

func opDup(n int) instruction {
	return func(c *state) {
		if !c.stackAtLeast(n) {
			c.exit(runtime.ErrStackUnderflow)
		} else {
			val := c.peekAt(n)
			c.push1().Set(val)
		}
	}
}

func opSwap(n int) instruction {
	return func(c *state) {
		if !c.stackAtLeast(n + 1) {
			c.exit(runtime.ErrStackUnderflow)
		} else {
			c.swap(n)
		}
	}
}

func opLog(size int) instruction {
	return func(c *state) {
		if c.inStaticCall() {
			c.exit(runtime.ErrWriteProtection)

			return
		}

		mStart := c.pop()
		mSize := c.pop()

		topics := make([]types.Hash, size)
		for i := 0; i < size; i++ {
			topics[i] = c.popHash()
		}

		var ok bool

		c.tmp, ok = c.get2(c.tmp[:0], mStart, mSize)
		if !ok {
			return
		}

		// per topic and per byte of data
		if !c.consumeGas(uint64(size) * 375) {
			return
		}

		if !c.consumeGas(uint64(len(c.tmp)) * 8) {
			return
		}

		c.host.EmitLog(c.msg.Address, topics, c.tmp)
	}
}

// memory copy operations

func opCallDataCopy(c *state) {
	memOffset := c.pop()
	dataOffset := c.pop()
	length := c.pop()

	if !c.copyToMemory(memOffset, dataOffset, length, c.msg.Input) {
		return
	}
}

func opCodeCopy(c *state) {
	memOffset := c.pop()
	codeOffset := c.pop()
	length := c.pop()

	if !c.copyToMemory(memOffset, codeOffset, length, c.code) {
		return
	}
}

func opExtCodeCopy(c *state) {
	address, _ := c.popAddr()

	memOffset := c.pop()
	codeOffset := c.pop()
	length := c.pop()

	if !c.copyToMemory(memOffset, codeOffset, length, c.host.GetCode(address)) {
		return
	}
}

func opReturnDataCopy(c *state) {
	memOffset := c.pop()
	dataOffset := c.pop()
	length := c.pop()

	// reads past the return buffer are a hard failure
	end := acquireBig().Add(dataOffset, length)
	defer releaseBig(end)

	if !end.IsUint64() || uint64(len(c.returnData)) < end.Uint64() {
		c.exit(runtime.ErrOutOfGas)

		return
	}

	if !c.checkMemory(memOffset, length) {
		return
	}

	words := (length.Uint64() + 31) / 32
	if !c.consumeGas(words * 3) {
		return
	}

	if length.Sign() != 0 {
		copy(c.memory[memOffset.Uint64():], c.returnData[dataOffset.Uint64():end.Uint64()])
	}
}

// copyToMemory expands memory, charges the per-word copy gas and copies
// a zero-padded slice of src into memory
func (c *state) copyToMemory(memOffset, dataOffset, length *big.Int, src []byte) bool {
	if !c.checkMemory(memOffset, length) {
		return false
	}

	words := (length.Uint64() + 31) / 32
	if !c.consumeGas(words * 3) {
		return false
	}

	if length.Sign() == 0 {
		return true
	}

	o := memOffset.Uint64()
	l := length.Uint64()

	c.setBytes(c.memory[o:o+l], getSlice(src, dataOffset, length), l)

	return true
}

// getSlice returns the in-range part of data at [offset, offset+length)
func getSlice(data []byte, offset, length *big.Int) []byte {
	if length.Sign() == 0 {
		return nil
	}

	o, ok := bigToUint64(offset)
	if !ok || o >= uint64(len(data)) {
		return nil
	}

	end := o + length.Uint64()
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	return data[o:end]
}

// block operations

func opBlockHash(c *state) {
	num := c.top()

	num64, ok := bigToUint64(num)
	if !ok {
		num.Set(zero)

		return
	}

	current := c.host.GetTxContext().Number

	// only the last 256 block hashes are visible
	if num64 < current && num64 >= lower256(current) {
		num.SetBytes(c.host.GetBlockHash(int64(num64)).Bytes())
	} else {
		num.Set(zero)
	}
}

func lower256(current uint64) uint64 {
	if current < 257 {
		return 0
	}

	return current - 256
}

func opCoinbase(c *state) {
	c.push1().SetBytes(c.host.GetTxContext().Coinbase.Bytes())
}

func opTimestamp(c *state) {
	c.push1().SetUint64(c.host.GetTxContext().Timestamp)
}

func opNumber(c *state) {
	c.push1().SetUint64(c.host.GetTxContext().Number)
}

func opDifficulty(c *state) {
	c.push1().SetBytes(c.host.GetTxContext().Difficulty.Bytes())
}

func opGasLimit(c *state) {
	c.push1().SetUint64(c.host.GetTxContext().GasLimit)
}

func opChainID(c *state) {
	c.push1().SetUint64(c.host.GetTxContext().ChainID)
}

// halting operations

func opStop(c *state) {
	c.halt()
}

func opReturn(c *state) {
	offset := c.pop()
	length := c.pop()

	var ok bool
	if c.ret, ok = c.get2(c.ret[:0], offset, length); !ok {
		return
	}

	c.halt()
}

func opRevert(c *state) {
	offset := c.pop()
	length := c.pop()

	var ok bool
	if c.ret, ok = c.get2(c.ret[:0], offset, length); !ok {
		return
	}

	c.exit(errRevert)
}

func opSelfDestruct(c *state) {
	if c.inStaticCall() {
		c.exit(runtime.ErrWriteProtection)

		return
	}

	address, _ := c.popAddr()

	// a new beneficiary account is charged for
	if c.host.Empty(address) && c.host.GetBalance(c.msg.Address).Sign() != 0 {
		if !c.consumeGas(25000) {
			return
		}
	}

	c.host.Selfdestruct(c.msg.Address, address)
	c.halt()
}

func (c *state) inStaticCall() bool {
	return c.msg.Static
}

// system call operations

func opCreate(typ runtime.CallType) instruction {
	return func(c *state) {
		if c.inStaticCall() {
			c.exit(runtime.ErrWriteProtection)

			return
		}

		value := c.pop()
		offset := c.pop()
		length := c.pop()

		var salt [32]byte
		if typ == runtime.Create2 {
			salt = c.popHash()
		}

		var ok bool
		if c.tmp, ok = c.get2(c.tmp[:0], offset, length); !ok {
			return
		}

		if typ == runtime.Create2 {
			// hashing the init code is charged per word
			words := (uint64(len(c.tmp)) + 31) / 32
			if !c.consumeGas(words * 6) {
				return
			}
		}

		// the frame keeps one 64th of the remaining gas
		gas := c.gas - c.gas/64
		if !c.consumeGas(gas) {
			return
		}

		// reset the return data before a sub-context
		c.resetReturnData()

		initCode := append([]byte{}, c.tmp...)

		var address types.Address
		if typ == runtime.Create2 {
			address = crypto.CreateAddress2(c.msg.Address, salt, crypto.Keccak256(initCode))
		} else {
			address = crypto.CreateAddress(c.msg.Address, c.host.GetNonce(c.msg.Address))
		}

		// the creator nonce advances even if the creation fails
		c.host.IncrNonce(c.msg.Address)

		contract := runtime.NewContractCreation(
			c.msg.Depth+1,
			c.msg.Origin,
			c.msg.Address,
			address,
			acquireValue(value),
			gas,
			initCode,
		)
		contract.Type = typ

		c.pending = &pendingCall{contract: contract, typ: typ}
	}
}

func opCall(typ runtime.CallType) instruction {
	return func(c *state) {
		// static frames reject any call that could mutate state
		static := c.msg.Static || typ == runtime.StaticCall

		initialGas := c.pop()

		addr, _ := c.popAddr()

		value := zero
		if typ == runtime.Call || typ == runtime.CallCode {
			value = c.pop()
		}

		if typ == runtime.Call && c.msg.Static && value.Sign() != 0 {
			c.exit(runtime.ErrWriteProtection)

			return
		}

		inOffset := c.pop()
		inSize := c.pop()
		retOffset := c.pop()
		retSize := c.pop()

		// expand the memory for both the input and output ranges
		if !c.checkMemory(inOffset, inSize) {
			return
		}

		if !c.checkMemory(retOffset, retSize) {
			return
		}

		// transfer and new account surcharges
		var transfersValue bool
		if (typ == runtime.Call || typ == runtime.CallCode) && value.Sign() != 0 {
			transfersValue = true
		}

		var cost uint64

		if typ == runtime.Call {
			if transfersValue {
				cost += 9000

				if !c.host.AccountExists(addr) {
					cost += 25000
				}
			}
		} else if typ == runtime.CallCode && transfersValue {
			cost += 9000
		}

		if !c.consumeGas(cost) {
			return
		}

		// cap the forwarded gas at 63/64 of what remains
		gas := c.gas - c.gas/64

		if requested, ok := bigToUint64(initialGas); ok && requested < gas {
			gas = requested
		}

		if !c.consumeGas(gas) {
			return
		}

		// a value-bearing call carries a stipend for the callee
		if transfersValue {
			gas += 2300
		}

		input := append([]byte{}, getSlice2(c.memory, inOffset, inSize)...)

		c.resetReturnData()

		contract := buildCallContract(c, typ, addr, value, gas, input)
		contract.Static = static

		c.pending = &pendingCall{
			contract:  contract,
			typ:       typ,
			retOffset: retOffset.Uint64(),
			retSize:   retSize.Uint64(),
		}
	}
}

func buildCallContract(
	c *state,
	typ runtime.CallType,
	addr types.Address,
	value *big.Int,
	gas uint64,
	input []byte,
) *runtime.Contract {
	code := c.host.GetCode(addr)

	var contract *runtime.Contract

	switch typ {
	case runtime.DelegateCall:
		// runs the callee code in the caller's context, keeping the
		// original caller and value
		contract = runtime.NewContractCall(
			c.msg.Depth+1,
			c.msg.Origin,
			c.msg.Caller,
			c.msg.Address,
			c.msg.Value,
			gas,
			code,
			input,
		)

	case runtime.CallCode:
		// runs the callee code against the caller's storage
		contract = runtime.NewContractCall(
			c.msg.Depth+1,
			c.msg.Origin,
			c.msg.Address,
			c.msg.Address,
			acquireValue(value),
			gas,
			code,
			input,
		)

	default:
		contract = runtime.NewContractCall(
			c.msg.Depth+1,
			c.msg.Origin,
			c.msg.Address,
			addr,
			acquireValue(value),
			gas,
			code,
			input,
		)
	}

	contract.Type = typ
	contract.CodeAddress = addr

	return contract
}

func getSlice2(data []byte, offset, length *big.Int) []byte {
	if length.Sign() == 0 {
		return nil
	}

	o := offset.Uint64()
	l := length.Uint64()

	return data[o : o+l]
}

func acquireValue(v *big.Int) *big.Int {
	return new(big.Int).Set(v)
}
