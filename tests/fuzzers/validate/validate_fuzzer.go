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

package validate

import (
	"errors"
	"fmt"
	"sort"

	fuzz "github.com/google/gofuzz"

	"github.com/ethvm/go-subvm/core/vm"
)

const fuzzGasBudget = 200000

// Fuzz cross-checks the static validator against the interpreter. A fully
// static accepted program (no declared edges) runs exactly the paths the
// validator walked, so it must never fault on an undefined instruction, an
// operand-stack underflow or an illegal jump. Gas exhaustion, reverts and
// recursion blowing the operand or return stack are legitimate runtime
// outcomes. With declared edges the interpreter may land on any JUMPDEST,
// including positions the validator never walked, so those runs are only
// exercised for panics.
func Fuzz(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	table := fuzzTable(data)

	// The table must survive its own wire round trip.
	parsed, err := vm.ParseJumpDestTable(table.Encode())
	if err != nil {
		panic(fmt.Sprintf("canonical table rejected: %v", err))
	}
	if err := vm.Validate(data, parsed); err != nil {
		return 0
	}
	_, err = vm.NewInterpreter(vm.Config{}).Run(vm.NewContract(data, fuzzGasBudget))
	if err == nil || len(parsed) > 0 {
		return 1
	}
	var invalid *vm.ErrInvalidOpCode
	if errors.As(err, &invalid) {
		panic(fmt.Sprintf("validated code hit %v\ncode: %x", err, data))
	}
	var underflow vm.ErrStackUnderflow
	if errors.As(err, &underflow) {
		panic(fmt.Sprintf("validated code hit %v\ncode: %x", err, data))
	}
	if errors.Is(err, vm.ErrInvalidJump) {
		panic(fmt.Sprintf("statically proven jump faulted: %v\ncode: %x", err, data))
	}
	return 1
}

// fuzzTable derives a small canonical jumpdest table from the input.
func fuzzTable(data []byte) vm.JumpDestTable {
	f := fuzz.NewFromGoFuzz(data)
	var count uint8
	f.Fuzz(&count)
	entries := make(vm.JumpDestTable, 0, count%16)
	for i := 0; i < int(count%16); i++ {
		var src, dst uint32
		f.Fuzz(&src)
		f.Fuzz(&dst)
		entries = append(entries, vm.JumpDestEntry{
			Source: src % uint32(len(data)),
			Dest:   dst % uint32(len(data)),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Source != entries[j].Source {
			return entries[i].Source < entries[j].Source
		}
		return entries[i].Dest < entries[j].Dest
	})
	deduped := entries[:0]
	for _, e := range entries {
		if n := len(deduped); n > 0 && deduped[n-1] == e {
			continue
		}
		deduped = append(deduped, e)
	}
	return deduped
}
