package evm

import (
	"fmt"

	"github.com/minichain-lab/minichain/state/runtime"
)

type handler struct {
	inst  instruction
	stack int
	gas   uint64
}

var dispatchTable [256]handler

func register(op OpCode, h handler) {
	if dispatchTable[op].inst != nil {
		panic(fmt.Errorf("instruction already exists")) //nolint:gocritic
	}

	dispatchTable[op] = h
}

func registerRange(from, to OpCode, factory func(n int) instruction, gas uint64) {
	c := 1
	for i := from; i <= to; i++ {
		register(i, handler{inst: factory(c), stack: 0, gas: gas})
		c++
	}
}

func init() {
	// arithmetic operations
	register(ADD, handler{inst: opAdd, stack: 2, gas: 3})
	register(SUB, handler{inst: opSub, stack: 2, gas: 3})
	register(MUL, handler{inst: opMul, stack: 2, gas: 5})
	register(DIV, handler{inst: opDiv, stack: 2, gas: 5})
	register(SDIV, handler{inst: opSDiv, stack: 2, gas: 5})
	register(MOD, handler{inst: opMod, stack: 2, gas: 5})
	register(SMOD, handler{inst: opSMod, stack: 2, gas: 5})
	register(ADDMOD, handler{inst: opAddMod, stack: 3, gas: 8})
	register(MULMOD, handler{inst: opMulMod, stack: 3, gas: 8})
	register(EXP, handler{inst: opExp, stack: 2, gas: 10})
	register(SIGNEXTEND, handler{inst: opSignExtension, stack: 2, gas: 5})

	// comparison operations
	register(LT, handler{inst: opLt, stack: 2, gas: 3})
	register(GT, handler{inst: opGt, stack: 2, gas: 3})
	register(SLT, handler{inst: opSlt, stack: 2, gas: 3})
	register(SGT, handler{inst: opSgt, stack: 2, gas: 3})
	register(EQ, handler{inst: opEq, stack: 2, gas: 3})
	register(ISZERO, handler{inst: opIsZero, stack: 1, gas: 3})

	// bitwise operations
	register(AND, handler{inst: opAnd, stack: 2, gas: 3})
	register(OR, handler{inst: opOr, stack: 2, gas: 3})
	register(XOR, handler{inst: opXor, stack: 2, gas: 3})
	register(NOT, handler{inst: opNot, stack: 1, gas: 3})
	register(BYTE, handler{inst: opByte, stack: 2, gas: 3})
	register(SHL, handler{inst: opShl, stack: 2, gas: 3})
	register(SHR, handler{inst: opShr, stack: 2, gas: 3})
	register(SAR, handler{inst: opSar, stack: 2, gas: 3})

	// crypto
	register(SHA3, handler{inst: opSha3, stack: 2, gas: 30})

	// context operations
	register(ADDRESS, handler{inst: opAddress, stack: 0, gas: 2})
	register(BALANCE, handler{inst: opBalance, stack: 1, gas: 700})
	register(ORIGIN, handler{inst: opOrigin, stack: 0, gas: 2})
	register(CALLER, handler{inst: opCaller, stack: 0, gas: 2})
	register(CALLVALUE, handler{inst: opCallValue, stack: 0, gas: 2})
	register(CALLDATALOAD, handler{inst: opCallDataLoad, stack: 1, gas: 3})
	register(CALLDATASIZE, handler{inst: opCallDataSize, stack: 0, gas: 2})
	register(CALLDATACOPY, handler{inst: opCallDataCopy, stack: 3, gas: 3})
	register(CODESIZE, handler{inst: opCodeSize, stack: 0, gas: 2})
	register(CODECOPY, handler{inst: opCodeCopy, stack: 3, gas: 3})
	register(GASPRICE, handler{inst: opGasPrice, stack: 0, gas: 2})
	register(EXTCODESIZE, handler{inst: opExtCodeSize, stack: 1, gas: 700})
	register(EXTCODECOPY, handler{inst: opExtCodeCopy, stack: 4, gas: 700})
	register(RETURNDATASIZE, handler{inst: opReturnDataSize, stack: 0, gas: 2})
	register(RETURNDATACOPY, handler{inst: opReturnDataCopy, stack: 3, gas: 3})
	register(EXTCODEHASH, handler{inst: opExtCodeHash, stack: 1, gas: 700})

	// block operations
	register(BLOCKHASH, handler{inst: opBlockHash, stack: 1, gas: 20})
	register(COINBASE, handler{inst: opCoinbase, stack: 0, gas: 2})
	register(TIMESTAMP, handler{inst: opTimestamp, stack: 0, gas: 2})
	register(NUMBER, handler{inst: opNumber, stack: 0, gas: 2})
	register(DIFFICULTY, handler{inst: opDifficulty, stack: 0, gas: 2})
	register(GASLIMIT, handler{inst: opGasLimit, stack: 0, gas: 2})
	register(CHAINID, handler{inst: opChainID, stack: 0, gas: 2})
	register(SELFBALANCE, handler{inst: opSelfBalance, stack: 0, gas: 5})

	// stack, memory and storage
	register(POP, handler{inst: opPop, stack: 1, gas: 2})
	register(MLOAD, handler{inst: opMLoad, stack: 1, gas: 3})
	register(MSTORE, handler{inst: opMStore, stack: 2, gas: 3})
	register(MSTORE8, handler{inst: opMStore8, stack: 2, gas: 3})
	register(SLOAD, handler{inst: opSLoad, stack: 1, gas: 800})
	register(SSTORE, handler{inst: opSStore, stack: 2, gas: 0})
	register(JUMP, handler{inst: opJump, stack: 1, gas: 8})
	register(JUMPI, handler{inst: opJumpi, stack: 2, gas: 10})
	register(PC, handler{inst: opPC, stack: 0, gas: 2})
	register(MSIZE, handler{inst: opMSize, stack: 0, gas: 2})
	register(GAS, handler{inst: opGas, stack: 0, gas: 2})
	register(JUMPDEST, handler{inst: opJumpDest, stack: 0, gas: 1})

	// push operations
	registerRange(PUSH1, PUSH32, opPush, 3)

	// duplication operations
	registerRange(DUP1, DUP16, opDup, 3)

	// swap operations
	registerRange(SWAP1, SWAP16, opSwap, 3)

	// log operations
	registerLogOps()

	// system operations
	register(CREATE, handler{inst: opCreate(runtime.Create), stack: 3, gas: 32000})
	register(CREATE2, handler{inst: opCreate(runtime.Create2), stack: 4, gas: 32000})
	register(CALL, handler{inst: opCall(runtime.Call), stack: 7, gas: 700})
	register(CALLCODE, handler{inst: opCall(runtime.CallCode), stack: 7, gas: 700})
	register(DELEGATECALL, handler{inst: opCall(runtime.DelegateCall), stack: 6, gas: 700})
	register(STATICCALL, handler{inst: opCall(runtime.StaticCall), stack: 6, gas: 700})
	register(RETURN, handler{inst: opReturn, stack: 2, gas: 0})
	register(REVERT, handler{inst: opRevert, stack: 2, gas: 0})
	register(SELFDESTRUCT, handler{inst: opSelfDestruct, stack: 1, gas: 5000})
	register(STOP, handler{inst: opStop, stack: 0, gas: 0})
}

func registerLogOps() {
	c := 0
	for i := LOG0; i <= LOG4; i++ {
		register(i, handler{inst: opLog(c), stack: c + 2, gas: 375})
		c++
	}
}
