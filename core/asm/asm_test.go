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

package asm

import (
	"bytes"
	"testing"

	"github.com/ethvm/go-subvm/core/vm"
)

func TestInstructionIterator(t *testing.T) {
	code := []byte{
		byte(vm.PUSH1), 0x04,
		byte(vm.JUMPSUB),
		byte(vm.STOP),
		byte(vm.BEGINSUB),
		byte(vm.PUSH2), 0x01, 0x02,
		byte(vm.RETURNSUB),
	}
	var (
		wantPCs  = []uint64{0, 2, 3, 4, 5, 8}
		wantOps  = []vm.OpCode{vm.PUSH1, vm.JUMPSUB, vm.STOP, vm.BEGINSUB, vm.PUSH2, vm.RETURNSUB}
		wantArgs = [][]byte{{0x04}, nil, nil, nil, {0x01, 0x02}, nil}
	)
	it := NewInstructionIterator(code)
	for i := 0; it.Next(); i++ {
		if i >= len(wantPCs) {
			t.Fatal("iterator yields too many instructions")
		}
		if it.PC() != wantPCs[i] || it.Op() != wantOps[i] || !bytes.Equal(it.Arg(), wantArgs[i]) {
			t.Fatalf("instruction %d: got (%d, %v, %x), want (%d, %v, %x)",
				i, it.PC(), it.Op(), it.Arg(), wantPCs[i], wantOps[i], wantArgs[i])
		}
	}
}

// A push operand cut short by the end of code yields only the bytes present.
func TestTruncatedPush(t *testing.T) {
	code := []byte{byte(vm.PUSH3), 0xaa}
	it := NewInstructionIterator(code)
	if !it.Next() {
		t.Fatal("no instruction found")
	}
	if it.Op() != vm.PUSH3 || !bytes.Equal(it.Arg(), []byte{0xaa}) {
		t.Fatalf("got (%v, %x), want (PUSH3, aa)", it.Op(), it.Arg())
	}
	if it.Next() {
		t.Fatal("instruction after end of code")
	}
}

func TestDisassemble(t *testing.T) {
	instrs, err := Disassemble([]byte{byte(vm.PUSH1), 0x04, byte(vm.JUMPSUB), byte(vm.STOP)})
	if err != nil {
		t.Fatal(err)
	}
	if len(instrs) != 3 {
		t.Fatalf("disassembled %d instructions, want 3", len(instrs))
	}
}
