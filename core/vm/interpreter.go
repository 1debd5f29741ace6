// Copyright 2020 The go-subvm Authors
// This file is part of the go-subvm library.
//
// The go-subvm library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-subvm library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-subvm library. If not, see <http://www.gnu.org/licenses/>.

package vm

// Config are the configuration options for the Interpreter
type Config struct {
	Debug  bool   // Enables per-step tracing
	Tracer Tracer // Opcode logger, consulted when Debug is set

	JumpTable *JumpTable // Instruction table, automatically filled if unset
}

// Tracer is invoked on every instruction when tracing is enabled, and once
// more on the instruction that faulted when a run ends in an error.
type Tracer interface {
	CaptureState(pc uint64, op OpCode, gas, cost uint64, stack *Stack, rstack *ReturnStack)
	CaptureFault(pc uint64, op OpCode, gas uint64, err error)
}

// callCtx contains the things that are per-call, such as stack and memory,
// but not transients like pc and gas
type callCtx struct {
	stack    *Stack
	rstack   *ReturnStack
	contract *Contract
}

// Interpreter runs validated programs. It owns no state between runs: the
// operand stack and the return stack are created fresh for each Run and
// discarded (recycled) when it ends, also on fault.
type Interpreter struct {
	cfg Config
}

// NewInterpreter returns a new instance of the Interpreter.
func NewInterpreter(cfg Config) *Interpreter {
	if cfg.JumpTable == nil {
		cfg.JumpTable = &subroutineInstructionSet
	}
	return &Interpreter{cfg: cfg}
}

// Run loops and evaluates the contract's code with the given input data and
// returns the return byte-slice and an error if one occurred.
//
// It's important to note that any errors returned by the interpreter should
// be considered a revert-and-consume-all-gas operation except for
// ErrExecutionReverted which means revert-and-keep-gas-left.
func (in *Interpreter) Run(contract *Contract) (ret []byte, err error) {
	// Don't bother with the execution if there's no code.
	if len(contract.Code) == 0 {
		return nil, nil
	}
	var (
		op          OpCode
		stack       = newstack()
		returns     = newReturnStack()
		callContext = &callCtx{
			stack:    stack,
			rstack:   returns,
			contract: contract,
		}
		// The program counter deliberately has one extra sentinel position
		// past the last byte: GetOp reads anything out there as STOP.
		pc  = uint64(0)
		res []byte
	)
	defer func() {
		returnStack(stack)
		returnRStack(returns)
	}()

	for {
		// Get the operation from the jump table and validate the stack to
		// ensure there are enough stack items available to perform the
		// operation.
		op = contract.GetOp(pc)
		operation := &in.cfg.JumpTable[op]
		if !operation.valid {
			err = &ErrInvalidOpCode{opcode: op}
			break
		}
		if sLen := stack.len(); sLen < operation.minStack {
			err = ErrStackUnderflow{stackLen: sLen, required: operation.minStack}
			break
		} else if sLen > operation.maxStack {
			err = ErrStackOverflow{stackLen: sLen, limit: operation.maxStack}
			break
		}
		if !contract.UseGas(operation.constantGas) {
			err = ErrOutOfGas
			break
		}
		if in.cfg.Debug {
			in.cfg.Tracer.CaptureState(pc, op, contract.Gas, operation.constantGas, stack, returns)
		}

		res, err = operation.execute(&pc, in, callContext)
		if err != nil {
			break
		}
		switch {
		case operation.reverts:
			return res, ErrExecutionReverted
		case operation.halts:
			return res, nil
		case !operation.jumps:
			pc++
		}
	}
	if err != nil && in.cfg.Debug {
		in.cfg.Tracer.CaptureFault(pc, op, contract.Gas, err)
	}
	return nil, err
}
