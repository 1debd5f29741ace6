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
	"github.com/holiman/uint256"
)

// Contract is one loaded program: immutable code plus the remaining gas
// allowance of the current run. The code analysis is built lazily on the
// first jump and shared by every later destination check.
type Contract struct {
	Code []byte
	Gas  uint64

	analysis bitvec
}

// NewContract returns a new contract environment for the given code.
func NewContract(code []byte, gas uint64) *Contract {
	return &Contract{Code: code, Gas: gas}
}

func (c *Contract) isCode(udest uint64) bool {
	if c.analysis == nil {
		c.analysis = codeBitmap(c.Code)
	}
	return c.analysis.codeSegment(udest)
}

func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	// PC cannot go beyond len(code) and certainly can't be bigger than 63 bits.
	// Don't bother checking for JUMPDEST in that case.
	if overflow || udest >= uint64(len(c.Code)) {
		return false
	}
	// Only JUMPDESTs allowed for destinations
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// validJumpSubdest accepts only a BEGINSUB marker on an instruction boundary.
func (c *Contract) validJumpSubdest(udest uint64) bool {
	if udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != BEGINSUB {
		return false
	}
	return c.isCode(udest)
}

// GetOp returns the n'th element in the contract's byte array. Positions at
// or beyond the end of code read as STOP: falling off the end, including via
// a RETURNSUB whose recorded counter was already past the end, is normal
// termination rather than a fault.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas attempts the use gas and subtracts it and returns true on success
func (c *Contract) UseGas(gas uint64) (ok bool) {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}
