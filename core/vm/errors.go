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

import (
	"errors"
	"fmt"
)

// Validation-time errors. These refuse a program at load time; validation
// errors are wrapped with the offending position before they surface.
var (
	ErrUndefinedInstruction   = errors.New("undefined instruction")
	ErrInvalidJump            = errors.New("invalid jump destination")
	ErrConflictingStack       = errors.New("conflicting stack height")
	ErrMalformedJumpDestTable = errors.New("malformed jumpdest table")
	ErrMaxCodeSizeExceeded    = errors.New("max code size exceeded")
)

// Execution-time errors. These abort a single run; the host continues.
// Gas accounting and the return-stack bound are runtime-only concerns, no
// amount of static checking rules them out.
var (
	ErrOutOfGas             = errors.New("out of gas")
	ErrExecutionReverted    = errors.New("execution reverted")
	ErrReturnStackExceeded  = errors.New("return stack limit reached")
	ErrReturnStackUnderflow = errors.New("return stack underflow")
)

// ErrStackUnderflow wraps an evm error when the items on the stack less
// than the minimal requirement.
type ErrStackUnderflow struct {
	stackLen int
	required int
}

func (e ErrStackUnderflow) Error() string {
	return fmt.Sprintf("stack underflow (%d <=> %d)", e.stackLen, e.required)
}

// ErrStackOverflow wraps an evm error when the items on the stack exceeds
// the maximum allowance.
type ErrStackOverflow struct {
	stackLen int
	limit    int
}

func (e ErrStackOverflow) Error() string {
	return fmt.Sprintf("stack limit reached %d (%d)", e.stackLen, e.limit)
}

// ErrInvalidOpCode wraps an evm error when an invalid opcode is encountered.
type ErrInvalidOpCode struct {
	opcode OpCode
}

func (e *ErrInvalidOpCode) Error() string {
	return fmt.Sprintf("invalid opcode: %s", e.opcode)
}
