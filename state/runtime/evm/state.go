package evm

import (
	"errors"
	"math/big"
	"sync"

	"github.com/minichain-lab/minichain/state/runtime"
)

var statePool = sync.Pool{
	New: func() interface{} {
		return new(state)
	},
}

func acquireState() *state {
	aquiredState, ok := statePool.Get().(*state)
	if !ok {
		panic("invalid type assertion") //nolint:gocritic
	}

	return aquiredState
}

func releaseState(s *state) {
	s.reset()
	statePool.Put(s)
}

const stackSize = 1024

var (
	errOutOfGas       = runtime.ErrOutOfGas
	errRevert         = runtime.ErrExecutionReverted
	errGasUintOverflow = errors.New("gas uint64 overflow")
)

// pendingCall is a sub-context request produced by one of the call or
// create instructions; the frame driver consumes it
type pendingCall struct {
	contract *runtime.Contract
	typ      runtime.CallType

	// memory range for the return data of a call
	retOffset uint64
	retSize   uint64
}

// state is one activation frame of the interpreter
type state struct {
	ip   int
	code []byte
	tmp  []byte

	host runtime.Host
	msg  *runtime.Contract

	// the frame's checkpoint on the host overlay
	snapshot int

	// memory
	memory      []byte
	lastGasCost uint64

	// stack
	stack []*big.Int
	sp    int

	// remaining gas
	gas uint64

	// return data of the last completed sub-call
	returnData []byte

	// return buffer of this frame
	ret []byte

	// pending sub-context, consumed by the driver
	pending *pendingCall

	// the sub-context currently executing below this frame
	activeCall *pendingCall

	err  error
	stop bool

	bitmap bitmap
}

func (c *state) reset() {
	c.sp = 0
	c.ip = 0
	c.gas = 0
	c.lastGasCost = 0
	c.stop = false
	c.err = nil
	c.pending = nil
	c.activeCall = nil
	c.snapshot = 0

	// reset bitmap
	c.bitmap.reset()

	// reset memory
	c.memory = c.memory[:0]
	c.tmp = c.tmp[:0]
	c.ret = c.ret[:0]
	c.returnData = c.returnData[:0]
	c.code = c.code[:0]
}

func (c *state) validJumpdest(dest *big.Int) bool {
	udest := dest.Uint64()
	if dest.BitLen() >= 63 || udest >= uint64(len(c.code)) {
		return false
	}

	if !c.bitmap.isSet(int(udest)) {
		return false
	}

	return OpCode(c.code[udest]) == JUMPDEST
}

func (c *state) halt() {
	c.stop = true
}

func (c *state) exit(err error) {
	if err == nil {
		panic("exit without an error") //nolint:gocritic
	}

	c.err = err
	c.stop = true
}

func (c *state) push1() *big.Int {
	if c.sp == stackSize {
		c.exit(runtime.ErrStackOverflow)

		// the frame is halting; hand out a scratch value so that the
		// running instruction can still complete
		return new(big.Int)
	}

	if len(c.stack) > c.sp {
		c.sp++

		return c.stack[c.sp-1]
	}

	v := big.NewInt(0)
	c.stack = append(c.stack, v)
	c.sp++

	return v
}

func (c *state) push(val *big.Int) {
	c.push1().Set(val)
}

func (c *state) stackAtLeast(n int) bool {
	return c.sp >= n
}

func (c *state) popHash() (h [32]byte) {
	v := c.pop()
	v.FillBytes(h[:])

	return h
}

func (c *state) popAddr() (addr [20]byte, ok bool) {
	b := c.pop()
	if b == nil {
		return addr, false
	}

	buf := b.Bytes()
	if len(buf) > 32 {
		return addr, false
	}

	var h [32]byte
	b.FillBytes(h[:])
	copy(addr[:], h[12:])

	return addr, true
}

func (c *state) top() *big.Int {
	if c.sp == 0 {
		return nil
	}

	return c.stack[c.sp-1]
}

func (c *state) pop() *big.Int {
	if c.sp == 0 {
		return nil
	}

	o := c.stack[c.sp-1]
	c.sp--

	return o
}

func (c *state) peekAt(n int) *big.Int {
	return c.stack[c.sp-n]
}

func (c *state) swap(n int) {
	c.stack[c.sp-1], c.stack[c.sp-n-1] = c.stack[c.sp-n-1], c.stack[c.sp-1]
}

func (c *state) consumeGas(gas uint64) bool {
	if c.gas < gas {
		c.exit(errOutOfGas)

		return false
	}

	c.gas -= gas

	return true
}

func (c *state) resetReturnData() {
	c.returnData = c.returnData[:0]
}

// bigToUint64 clamps a big int into the uint64 range, reporting overflow
func bigToUint64(v *big.Int) (uint64, bool) {
	if !v.IsUint64() {
		return 0, false
	}

	return v.Uint64(), true
}

// calcMemSize computes the new memory size needed to address
// offset + size, zero when size is zero
func calcMemSize(offset, size *big.Int) (uint64, bool) {
	if size.Sign() == 0 {
		return 0, true
	}

	o, ok := bigToUint64(offset)
	if !ok {
		return 0, false
	}

	s, ok := bigToUint64(size)
	if !ok {
		return 0, false
	}

	if o > o+s {
		return 0, false
	}

	return o + s, true
}

// checkMemory expands the memory to hold [offset, offset+size) and charges
// the quadratic expansion cost
func (c *state) checkMemory(offset, size *big.Int) bool {
	newSize, ok := calcMemSize(offset, size)
	if !ok {
		c.exit(errGasUintOverflow)

		return false
	}

	return c.allocateMemory(newSize)
}

func (c *state) allocateMemory(size uint64) bool {
	if size == 0 || uint64(len(c.memory)) >= size {
		return true
	}

	// round up to a 32 byte word boundary
	words := (size + 31) / 32
	newSize := words * 32

	// memory gas is quadratic in the word count plus linear
	newCost := 3*words + words*words/512
	cost := newCost - c.lastGasCost
	c.lastGasCost = newCost

	if !c.consumeGas(cost) {
		return false
	}

	c.memory = append(c.memory, make([]byte, newSize-uint64(len(c.memory)))...)

	return true
}

// setBytes writes input into dst, zero padded up to size
func (c *state) setBytes(dst, input []byte, size uint64) {
	if uint64(len(input)) > size {
		input = input[:size]
	}

	copy(dst, input)

	for i := uint64(len(input)); i < size; i++ {
		dst[i] = 0
	}
}

// get2 copies a source slice into memory-backed tmp storage
func (c *state) get2(dst []byte, offset, length *big.Int) ([]byte, bool) {
	if length.Sign() == 0 {
		return nil, true
	}

	if !c.checkMemory(offset, length) {
		return nil, false
	}

	o := offset.Uint64()
	l := length.Uint64()

	dst = append(dst, c.memory[o:o+l]...)

	return dst, true
}
