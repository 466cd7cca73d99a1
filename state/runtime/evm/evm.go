package evm

import (
	"errors"

	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/types"
)

const (
	// MaxCallDepth is the maximum number of nested call frames
	MaxCallDepth = 1024

	// MaxCodeSize is the maximum size of deployed contract code
	MaxCodeSize = 24576

	// codeDepositGas is charged per byte of deployed code
	codeDepositGas = 200
)

// EVM is the bytecode interpreter. Sub-contexts are driven by an explicit
// frame stack rather than native recursion, so the call depth limit bounds
// interpreter memory directly.
type EVM struct{}

// NewEVM creates a new EVM
func NewEVM() *EVM {
	return &EVM{}
}

// Run executes the contract (a call or a create) against the host and
// returns the execution result of the outermost frame.
func (e *EVM) Run(c *runtime.Contract, host runtime.Host) *runtime.ExecutionResult {
	frames := make([]*state, 0, 8)

	frame, res := beginFrame(c, host)
	if res != nil {
		return res
	}

	frames = append(frames, frame)

	for len(frames) > 0 {
		top := frames[len(frames)-1]
		top.run()

		if top.pending != nil {
			// the frame paused on a call or create instruction
			req := top.pending
			top.pending = nil
			top.activeCall = req

			child, childRes := beginFrame(req.contract, host)
			if childRes != nil {
				// the sub-context finished without running any code
				top.resume(childRes)
				top.activeCall = nil

				continue
			}

			frames = append(frames, child)

			continue
		}

		// the frame completed
		res = endFrame(top, host)

		frames = frames[:len(frames)-1]
		releaseState(top)

		if len(frames) == 0 {
			break
		}

		parent := frames[len(frames)-1]
		parent.resume(res)
		parent.activeCall = nil
	}

	return res
}

// beginFrame opens the checkpoint and performs the pre-execution effects of
// a sub-context: depth limit, create collision, value transfer. A non-nil
// result means the frame terminated without running code.
func beginFrame(c *runtime.Contract, host runtime.Host) (*state, *runtime.ExecutionResult) {
	if c.Depth > MaxCallDepth {
		return nil, &runtime.ExecutionResult{GasLeft: 0, Err: runtime.ErrDepth}
	}

	snapshot := host.Snapshot()

	isCreate := c.Type == runtime.Create || c.Type == runtime.Create2

	if isCreate {
		// deploying over an account that has been used fails the creation
		if hasCollision(c.Address, host) {
			host.RevertToSnapshot(snapshot)

			return nil, &runtime.ExecutionResult{GasLeft: 0, Err: runtime.ErrContractAddressCollision}
		}

		host.CreateAccount(c.Address)
	}

	if c.Value != nil && c.Value.Sign() > 0 && transfersValue(c.Type) {
		if err := host.Transfer(c.Caller, c.Address, c.Value); err != nil {
			host.RevertToSnapshot(snapshot)

			// the sub-context never started, its gas goes back to the caller
			return nil, &runtime.ExecutionResult{GasLeft: c.Gas, Err: runtime.ErrInsufficientBalance}
		}
	}

	if len(c.Code) == 0 {
		// a plain transfer or a call to an account without code
		return nil, &runtime.ExecutionResult{GasLeft: c.Gas}
	}

	frame := acquireState()
	frame.msg = c
	frame.code = append(frame.code[:0], c.Code...)
	frame.gas = c.Gas
	frame.host = host
	frame.snapshot = snapshot
	frame.bitmap.setCode(frame.code)

	return frame, nil
}

func transfersValue(typ runtime.CallType) bool {
	switch typ {
	case runtime.Call, runtime.Create, runtime.Create2:
		return true
	default:
		// CALLCODE and DELEGATECALL execute in the caller's own context,
		// STATICCALL carries no value
		return false
	}
}

func hasCollision(addr types.Address, host runtime.Host) bool {
	if host.GetNonce(addr) != 0 {
		return true
	}

	codeHash := host.GetCodeHash(addr)

	return codeHash != types.ZeroHash && codeHash != types.EmptyCodeHash
}

// endFrame settles a completed frame: reverts the checkpoint on failure and,
// for creations, charges the code deposit and installs the code.
func endFrame(frame *state, host runtime.Host) *runtime.ExecutionResult {
	if frame.err != nil {
		host.RevertToSnapshot(frame.snapshot)

		if errors.Is(frame.err, errRevert) {
			// an explicit revert keeps its leftover gas and return data
			return &runtime.ExecutionResult{
				ReturnValue: append([]byte{}, frame.ret...),
				GasLeft:     frame.gas,
				Err:         errRevert,
			}
		}

		return &runtime.ExecutionResult{GasLeft: 0, Err: frame.err}
	}

	isCreate := frame.msg.Type == runtime.Create || frame.msg.Type == runtime.Create2

	if !isCreate {
		return &runtime.ExecutionResult{
			ReturnValue: append([]byte{}, frame.ret...),
			GasLeft:     frame.gas,
		}
	}

	// the return buffer of an init frame is the code being deployed
	code := append([]byte{}, frame.ret...)

	if len(code) > MaxCodeSize {
		host.RevertToSnapshot(frame.snapshot)

		return &runtime.ExecutionResult{GasLeft: 0, Err: runtime.ErrMaxCodeSizeExceeded}
	}

	depositCost := uint64(codeDepositGas * len(code))
	if frame.gas < depositCost {
		host.RevertToSnapshot(frame.snapshot)

		return &runtime.ExecutionResult{GasLeft: 0, Err: runtime.ErrCodeStoreOutOfGas}
	}

	frame.gas -= depositCost
	host.SetCodeDirect(frame.msg.Address, code)

	return &runtime.ExecutionResult{
		ReturnValue: code,
		GasLeft:     frame.gas,
	}
}

// run is the dispatch loop of one frame; it returns when the frame halts,
// fails, or pauses on a sub-context request
func (c *state) run() {
	for !c.stop {
		if c.ip >= len(c.code) {
			c.halt()

			break
		}

		op := OpCode(c.code[c.ip])

		inst := dispatchTable[op]
		if inst.inst == nil {
			c.exit(runtime.ErrInvalidInstruction)

			break
		}

		// check if the depth of the stack is enough for the instruction
		if c.sp < inst.stack {
			c.exit(runtime.ErrStackUnderflow)

			break
		}

		// consume the base gas of the instruction
		if !c.consumeGas(inst.gas) {
			break
		}

		inst.inst(c)

		if c.stop {
			break
		}

		c.ip++

		if c.pending != nil {
			// paused on a call or create; resume continues after this
			// instruction
			return
		}
	}
}

// resume folds a finished sub-context back into this frame
func (c *state) resume(res *runtime.ExecutionResult) {
	req := c.activeCall
	if req == nil {
		return
	}

	// leftover gas of the sub-context flows back
	c.gas += res.GasLeft

	isCreate := req.typ == runtime.Create || req.typ == runtime.Create2

	if isCreate {
		v := c.push1()

		if res.Succeeded() {
			v.SetBytes(req.contract.Address.Bytes())
		} else {
			v.Set(zero)
		}

		// only revert data is observable after a create
		if res.Reverted() {
			c.returnData = append(c.returnData[:0], res.ReturnValue...)
		}

		return
	}

	v := c.push1()

	if res.Succeeded() {
		v.Set(one)
	} else {
		v.Set(zero)
	}

	if res.Succeeded() || res.Reverted() {
		c.returnData = append(c.returnData[:0], res.ReturnValue...)

		if size := min64(req.retSize, uint64(len(res.ReturnValue))); size > 0 {
			copy(c.memory[req.retOffset:req.retOffset+size], res.ReturnValue)
		}
	}
}

func min64(i, j uint64) uint64 {
	if i < j {
		return i
	}

	return j
}
