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
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethvm/go-subvm/params"
)

func TestValidatePrograms(t *testing.T) {
	tests := []struct {
		name  string
		code  []byte
		table JumpDestTable
		want  error // sentinel matched with errors.Is, nil means accept
	}{
		{
			name: "empty code",
		},
		{
			name: "bare stop",
			code: []byte{byte(STOP)},
		},
		{
			name: "arithmetic",
			code: []byte{byte(PUSH1), 1, byte(PUSH1), 2, byte(ADD), byte(POP), byte(STOP)},
		},
		{
			name: "implicit stop at end of code",
			code: []byte{byte(PUSH1), 1, byte(POP)},
		},
		{
			name: "truncated push reads as zero",
			code: []byte{byte(PUSH1), 0, byte(POP), byte(PUSH2), 0xff},
		},
		{
			name: "undefined instruction",
			code: []byte{0x0c},
			want: ErrUndefinedInstruction,
		},
		{
			name: "static jump to jumpdest",
			code: []byte{byte(PUSH1), 3, byte(JUMP), byte(JUMPDEST), byte(STOP)},
		},
		{
			name: "static jump to non-marker",
			code: []byte{byte(PUSH1), 3, byte(JUMP), byte(STOP)},
			want: ErrInvalidJump,
		},
		{
			name: "static jump into push data",
			// Position 4 holds a JUMPDEST byte, but it is the immediate of
			// the PUSH1 at position 3.
			code: []byte{byte(PUSH1), 4, byte(JUMP), byte(PUSH1), byte(JUMPDEST), byte(STOP)},
			want: ErrInvalidJump,
		},
		{
			name: "static jump out of bounds",
			code: []byte{byte(PUSH1), 0xff, byte(JUMP), byte(JUMPDEST), byte(STOP)},
			want: ErrInvalidJump,
		},
		{
			name: "dynamic jump without declared edge",
			code: []byte{byte(PC), byte(JUMP), byte(JUMPDEST), byte(STOP)},
			want: ErrInvalidJump,
		},
		{
			name:  "dynamic jump with declared edge",
			code:  []byte{byte(PC), byte(JUMP), byte(JUMPDEST), byte(STOP)},
			table: JumpDestTable{{Source: 1, Dest: 2}},
		},
		{
			name:  "declared edge to non-marker",
			code:  []byte{byte(PC), byte(JUMP), byte(JUMPDEST), byte(STOP)},
			table: JumpDestTable{{Source: 1, Dest: 3}},
			want:  ErrInvalidJump,
		},
		{
			name: "conditional jump, both branches terminate",
			code: []byte{
				byte(PUSH1), 1, byte(PUSH1), 6, byte(JUMPI),
				byte(STOP),
				byte(JUMPDEST), byte(STOP),
			},
		},
		{
			name: "join point with conflicting depths",
			code: []byte{
				byte(PUSH1), 0, byte(PUSH1), 7, byte(JUMPI),
				byte(PUSH1), 1, // fallthrough arrives one deeper
				byte(JUMPDEST), byte(STOP),
			},
			want: ErrConflictingStack,
		},
		{
			name: "balanced loop",
			code: []byte{
				byte(JUMPDEST), byte(PUSH1), 0, byte(POP),
				byte(PUSH1), 0, byte(JUMP),
			},
		},
		{
			name: "loop growing the stack",
			code: []byte{
				byte(JUMPDEST), byte(PUSH1), 0,
				byte(PUSH1), 0, byte(JUMP),
			},
			want: ErrConflictingStack,
		},
		{
			name: "subroutine call and return",
			code: []byte{byte(PUSH1), 4, byte(JUMPSUB), byte(STOP), byte(BEGINSUB), byte(RETURNSUB)},
		},
		{
			name: "subroutine call to non-beginsub",
			code: []byte{byte(PUSH1), 3, byte(JUMPSUB), byte(STOP)},
			want: ErrInvalidJump,
		},
		{
			name: "subroutine call out of bounds",
			code: []byte{byte(PUSH1), 0xff, byte(JUMPSUB)},
			want: ErrInvalidJump,
		},
		{
			name: "subroutine leaving one item",
			code: []byte{
				byte(PUSH1), 5, byte(JUMPSUB), byte(POP), byte(STOP),
				byte(BEGINSUB), byte(PUSH1), 0x2a, byte(RETURNSUB),
			},
		},
		{
			name: "subroutine with conflicting return depths",
			code: []byte{
				byte(PUSH1), 4, byte(JUMPSUB), byte(STOP),
				byte(BEGINSUB),                  // 4
				byte(PC),                        // 5: opaque condition
				byte(PUSH1), 12, byte(JUMPI),    // 6-8
				byte(PUSH1), 1, byte(RETURNSUB), // 9-11: returns one deep
				byte(JUMPDEST), byte(RETURNSUB), // 12-13: returns clean
			},
			want: ErrConflictingStack,
		},
		{
			name: "returnsub in the entry frame is statically legal",
			code: []byte{byte(RETURNSUB)},
		},
		{
			name: "nested subroutines",
			code: []byte{
				byte(PUSH1), 4, byte(JUMPSUB), byte(STOP),
				byte(BEGINSUB), byte(PUSH1), 9, byte(JUMPSUB), byte(RETURNSUB),
				byte(BEGINSUB), byte(RETURNSUB),
			},
		},
		{
			name: "neutral recursion accepted",
			code: []byte{
				byte(PUSH1), 3, byte(JUMPSUB),
				byte(BEGINSUB), byte(PUSH1), 3, byte(JUMPSUB), byte(RETURNSUB),
			},
		},
		{
			name: "non-neutral recursion rejected",
			code: []byte{
				byte(PUSH1), 3, byte(JUMPSUB),
				byte(BEGINSUB), byte(PUSH1), 0x2a,
				byte(PUSH1), 3, byte(JUMPSUB), byte(RETURNSUB),
			},
			want: ErrConflictingStack,
		},
		{
			name: "call as very last instruction",
			code: []byte{
				byte(PUSH1), 5, byte(JUMP),
				byte(BEGINSUB), byte(RETURNSUB),
				byte(JUMPDEST), byte(PUSH1), 3, byte(JUMPSUB),
			},
		},
	}
	for _, tt := range tests {
		err := Validate(tt.code, tt.table)
		if tt.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected reject: %v\ncode: %s", tt.name, err, spew.Sdump(tt.code))
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestValidateStackBounds(t *testing.T) {
	var underflow ErrStackUnderflow
	if err := Validate([]byte{byte(ADD)}, nil); !errors.As(err, &underflow) {
		t.Fatalf("got %v, want stack underflow", err)
	}
	// A subroutine body may not consume operands below its own frame, even
	// when the caller left plenty on the stack.
	subEatsCaller := []byte{
		byte(PUSH1), 0, byte(PUSH1), 6, byte(JUMPSUB), byte(STOP),
		byte(BEGINSUB), byte(POP), byte(RETURNSUB),
	}
	if err := Validate(subEatsCaller, nil); !errors.As(err, &underflow) {
		t.Fatalf("got %v, want stack underflow", err)
	}

	// Filling the stack to exactly the limit is fine; one more push is not.
	atLimit := make([]byte, 0, 2*int(params.StackLimit)+1)
	for i := 0; i < int(params.StackLimit); i++ {
		atLimit = append(atLimit, byte(PUSH1), 0)
	}
	atLimit = append(atLimit, byte(STOP))
	if err := Validate(atLimit, nil); err != nil {
		t.Fatalf("unexpected reject at the stack limit: %v", err)
	}

	var overflow ErrStackOverflow
	code := append(append([]byte{}, atLimit[:len(atLimit)-1]...), byte(PUSH1), 0, byte(STOP))
	if err := Validate(code, nil); !errors.As(err, &overflow) {
		t.Fatalf("got %v, want stack overflow", err)
	}

	// A deep call site plus the subroutine's own appetite together cross the
	// limit, although each frame alone stays inside it.
	deep := make([]byte, 0, 2048)
	for i := 0; i < 1000; i++ {
		deep = append(deep, byte(PUSH1), 0)
	}
	sub := len(deep) + 5
	deep = append(deep, byte(PUSH2), byte(sub>>8), byte(sub), byte(JUMPSUB), byte(STOP))
	deep = append(deep, byte(BEGINSUB))
	for i := 0; i < 100; i++ {
		deep = append(deep, byte(PUSH1), 0)
	}
	for i := 0; i < 100; i++ {
		deep = append(deep, byte(POP))
	}
	deep = append(deep, byte(RETURNSUB))
	if err := Validate(deep, nil); !errors.As(err, &overflow) {
		t.Fatalf("got %v, want stack overflow", err)
	}
}

// nestedCallProgram builds a program whose entry frame calls subroutine A,
// pushes pad items, then calls A again. A only forwards to subroutine B,
// whose body climbs 100 items above its own frame before draining them.
func nestedCallProgram(pad int) []byte {
	subA := 9 + 2*pad
	subB := subA + 6
	code := make([]byte, 0, subB+207)
	code = append(code, byte(PUSH2), byte(subA>>8), byte(subA), byte(JUMPSUB))
	for i := 0; i < pad; i++ {
		code = append(code, byte(PUSH1), 0)
	}
	code = append(code, byte(PUSH2), byte(subA>>8), byte(subA), byte(JUMPSUB), byte(STOP))
	code = append(code, byte(BEGINSUB), byte(PUSH2), byte(subB>>8), byte(subB), byte(JUMPSUB), byte(RETURNSUB))
	code = append(code, byte(BEGINSUB))
	for i := 0; i < 100; i++ {
		code = append(code, byte(PUSH1), 0)
	}
	for i := 0; i < 100; i++ {
		code = append(code, byte(POP))
	}
	code = append(code, byte(RETURNSUB))
	return code
}

// A deep call site must account for the appetite of the whole callee chain,
// not just the immediate callee's own frame.
func TestValidateNestedCallOverflow(t *testing.T) {
	var overflow ErrStackOverflow
	if err := Validate(nestedCallProgram(1000), nil); !errors.As(err, &overflow) {
		t.Fatalf("got %v, want stack overflow", err)
	}
	// 924 caller items plus the nested peak of 100 meet the limit exactly.
	if err := Validate(nestedCallProgram(924), nil); err != nil {
		t.Fatalf("unexpected reject: %v", err)
	}
}

func TestValidateOversizedCode(t *testing.T) {
	code := make([]byte, params.MaxCodeSize+1)
	if err := Validate(code, nil); !errors.Is(err, ErrMaxCodeSizeExceeded) {
		t.Fatalf("got %v, want %v", err, ErrMaxCodeSizeExceeded)
	}
}

// Re-validating an unchanged program always yields the same verdict.
func TestValidateIdempotent(t *testing.T) {
	code := []byte{byte(PUSH1), 4, byte(JUMPSUB), byte(STOP), byte(BEGINSUB), byte(RETURNSUB)}
	bad := []byte{byte(PUSH1), 3, byte(JUMPSUB), byte(STOP)}
	for i := 0; i < 3; i++ {
		if err := Validate(code, nil); err != nil {
			t.Fatalf("run %d: unexpected reject: %v", i, err)
		}
		if err := Validate(bad, nil); !errors.Is(err, ErrInvalidJump) {
			t.Fatalf("run %d: got %v, want %v", i, err, ErrInvalidJump)
		}
	}
}

func TestValidatorCache(t *testing.T) {
	cache := NewValidatorCache(16)
	code := []byte{byte(PUSH1), 4, byte(JUMPSUB), byte(STOP), byte(BEGINSUB), byte(RETURNSUB)}
	bad := []byte{byte(PUSH1), 3, byte(JUMPSUB), byte(STOP)}

	for i := 0; i < 2; i++ {
		if err := cache.Validate(code, nil); err != nil {
			t.Fatalf("round %d: unexpected reject: %v", i, err)
		}
		if err := cache.Validate(bad, nil); !errors.Is(err, ErrInvalidJump) {
			t.Fatalf("round %d: got %v, want %v", i, err, ErrInvalidJump)
		}
	}
	// Same code under a different table is a different verdict key.
	table := JumpDestTable{{Source: 0, Dest: 3}}
	if err := cache.Validate(bad, table); !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("got %v, want %v", err, ErrInvalidJump)
	}
}
