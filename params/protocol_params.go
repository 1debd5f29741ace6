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

package params

const (
	// StackLimit is the maximum size of the operand stack.
	StackLimit uint64 = 1024

	// ReturnStackLimit is the maximum size of the subroutine return stack.
	ReturnStackLimit uint64 = 1024

	// MaxCodeSize is the largest program the validator will look at.
	MaxCodeSize = 24576

	// MaxJumpDestOffset is the largest offset representable in a jumpdest
	// table record (3 bytes, most significant byte first).
	MaxJumpDestOffset = 1<<24 - 1
)
