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
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ethvm/go-subvm/params"
)

// Validate statically checks that every path through code is free of
// undefined instructions, illegal jump destinations and operand-stack depth
// faults. A nil table means the program declares no dynamic-jump edges.
//
// The traversal follows the taken edge of every control transfer, memoizing
// the stack depth established on the first visit of each position; a revisit
// with a matching depth terminates the path, a mismatch rejects the program.
// This bounds the work to one visit per instruction plus one walk per
// declared table edge.
func Validate(code []byte, table JumpDestTable) error {
	if len(code) == 0 {
		return nil
	}
	if len(code) > params.MaxCodeSize {
		return fmt.Errorf("%w: %d bytes", ErrMaxCodeSizeExceeded, len(code))
	}
	v := &validator{
		code:   code,
		jt:     &subroutineInstructionSet,
		table:  table,
		bits:   codeBitmap(code),
		depths: make(map[uint64]int),
		subs:   make(map[uint64]*subMeta),
	}
	return v.walk(0, 0, 0, nil, new(constStack))
}

// subMeta is what one traversal of a subroutine body establishes, consulted
// by every later call site in place of re-walking the body.
type subMeta struct {
	net int // depth left above the entry depth when the body returns
	// maxRel is the highest depth above the entry depth anywhere in the
	// body, with the peaks of completed callees folded in on top of their
	// call-site depths.
	maxRel  int
	returns bool // at least one RETURNSUB is reachable
	done    bool // body fully analysed
	assumed bool // a recursive call assumed a neutral, returning body
}

type validator struct {
	code  []byte
	jt    *JumpTable
	table JumpDestTable
	bits  bitvec

	// depths records, per position, the frame-relative stack depth seen on
	// the first visit. Every later visit must observe the same depth.
	depths map[uint64]int
	subs   map[uint64]*subMeta
}

// constStack shadows the operand stack during validation: an entry is the
// statically known value a push left in that slot, or nil for anything the
// validator cannot see through.
type constStack struct {
	vals []*uint256.Int
}

func (cs *constStack) push(v *uint256.Int) {
	cs.vals = append(cs.vals, v)
}

func (cs *constStack) pop() *uint256.Int {
	if len(cs.vals) == 0 {
		return nil
	}
	v := cs.vals[len(cs.vals)-1]
	cs.vals = cs.vals[:len(cs.vals)-1]
	return v
}

func (cs *constStack) popN(n int) {
	if n > len(cs.vals) {
		n = len(cs.vals)
	}
	cs.vals = cs.vals[:len(cs.vals)-n]
}

func (cs *constStack) pushUnknown(n int) {
	for i := 0; i < n; i++ {
		cs.vals = append(cs.vals, nil)
	}
}

func (cs *constStack) copy() *constStack {
	dup := &constStack{vals: make([]*uint256.Int, len(cs.vals))}
	copy(dup.vals, cs.vals)
	return dup
}

// walk explores one path starting at pc. depth is relative to the enclosing
// frame's entry (the whole program for the entry frame, the BEGINSUB for a
// subroutine body); floor is the absolute stack depth underneath the frame.
// sub is nil in the entry frame.
func (v *validator) walk(pc uint64, depth, floor int, sub *subMeta, consts *constStack) error {
	for {
		if pc >= uint64(len(v.code)) {
			// Running off the end of code is an implicit STOP.
			return nil
		}
		op := OpCode(v.code[pc])
		operation := &v.jt[op]
		if !operation.valid {
			return fmt.Errorf("%w: op %#x, pos %d", ErrUndefinedInstruction, byte(op), pc)
		}
		if have, ok := v.depths[pc]; ok {
			if have != depth {
				return fmt.Errorf("%w: have %d, want %d, pos %d", ErrConflictingStack, depth, have, pc)
			}
			// Rejoined an already explored region with a matching depth.
			return nil
		}
		v.depths[pc] = depth
		if sub != nil && depth > sub.maxRel {
			sub.maxRel = depth
		}
		// Underflow is frame relative: a subroutine body may not eat into its
		// caller's operands. Overflow is absolute.
		if want := operation.minStack; depth < want {
			return fmt.Errorf("%w: at pos %d", ErrStackUnderflow{stackLen: depth, required: want}, pc)
		}
		if limit := operation.maxStack; floor+depth > limit {
			return fmt.Errorf("%w: at pos %d", ErrStackOverflow{stackLen: floor + depth, limit: limit}, pc)
		}

		switch {
		case op.IsPush():
			consts.push(pushImmediate(v.code, pc, operation.immediate))
			depth++
			pc += uint64(1 + operation.immediate)

		case op == JUMP:
			target := consts.pop()
			depth--
			dests, err := v.jumpDests(pc, target)
			if err != nil {
				return err
			}
			for i, dest := range dests {
				if err := v.checkDest(pc, dest, JUMPDEST); err != nil {
					return err
				}
				branch := consts
				if i < len(dests)-1 {
					branch = consts.copy()
				}
				if err := v.walk(dest, depth, floor, sub, branch); err != nil {
					return err
				}
			}
			return nil

		case op == JUMPI:
			target := consts.pop()
			consts.pop() // condition
			depth -= 2
			dests, err := v.jumpDests(pc, target)
			if err != nil {
				return err
			}
			for _, dest := range dests {
				if err := v.checkDest(pc, dest, JUMPDEST); err != nil {
					return err
				}
				if err := v.walk(dest, depth, floor, sub, consts.copy()); err != nil {
					return err
				}
			}
			pc++ // fall through on the false branch

		case op == JUMPSUB:
			target := consts.pop()
			depth--
			dests, err := v.jumpDests(pc, target)
			if err != nil {
				return err
			}
			net, returns, err := v.callSites(pc, depth, floor, dests, sub)
			if err != nil {
				return err
			}
			if !returns {
				// No destination ever returns; the fall through is unreachable.
				return nil
			}
			depth += net
			pc++

		case op == RETURNSUB:
			if sub != nil {
				if sub.returns && sub.net != depth {
					return fmt.Errorf("%w: subroutine returns with depth %d, want %d, pos %d", ErrConflictingStack, depth, sub.net, pc)
				}
				sub.net, sub.returns = depth, true
			}
			// In the entry frame the instruction is legal to reach; whether a
			// matching JUMPSUB happened is the runtime's return-stack check.
			return nil

		case operation.halts || operation.reverts:
			return nil

		default:
			// Anything else is interpreted only through its declared arity.
			pops := operation.minStack
			pushes := pops + int(params.StackLimit) - operation.maxStack
			consts.popN(pops)
			consts.pushUnknown(pushes)
			depth += pushes - pops
			pc += uint64(1 + operation.immediate)
		}
	}
}

// callSites analyses every declared destination of the JUMPSUB at pc and
// reconciles them into a single post-return stack effect for the call site.
// depth and floor describe the operand stack after the destination operand
// is consumed; sub is the frame the call site sits in, nil for the entry
// frame.
func (v *validator) callSites(pc uint64, depth, floor int, dests []uint64, sub *subMeta) (net int, returns bool, err error) {
	have := false
	for _, dest := range dests {
		if err := v.checkDest(pc, dest, BEGINSUB); err != nil {
			return 0, false, err
		}
		si := v.subs[dest]
		if si == nil {
			si = new(subMeta)
			v.subs[dest] = si
			if err := v.walk(dest, 0, floor+depth, si, new(constStack)); err != nil {
				return 0, false, err
			}
			si.done = true
			if si.assumed && (!si.returns || si.net != 0) {
				return 0, false, fmt.Errorf("%w: recursive subroutine at %d is not stack neutral", ErrConflictingStack, dest)
			}
		}
		dNet, dReturns := 0, true
		if si.done {
			dNet, dReturns = si.net, si.returns
			if abs, limit := floor+depth+si.maxRel, int(params.StackLimit); abs > limit {
				return 0, false, fmt.Errorf("%w: at pos %d", ErrStackOverflow{stackLen: abs, limit: limit}, pc)
			}
			// The callee's peak rides on top of this frame's current depth
			// and so counts toward the enclosing frame's own peak.
			if sub != nil && depth+si.maxRel > sub.maxRel {
				sub.maxRel = depth + si.maxRel
			}
		} else {
			// The body is still being analysed, so this call is recursive.
			// Assume a stack-neutral, returning body; the assumption is
			// verified once the body's own analysis completes. The absolute
			// stack height of recursive nests stays a runtime concern, the
			// same as the return-stack bound.
			si.assumed = true
		}
		if !have {
			net, returns, have = dNet, dReturns, true
		} else if net != dNet || returns != dReturns {
			return 0, false, fmt.Errorf("%w: destinations of call at %d disagree on stack effect", ErrConflictingStack, pc)
		}
	}
	return net, returns, nil
}

// jumpDests resolves the destination operand of the jump at pc: the
// statically known value on top of the shadow stack when there is one,
// otherwise the declared edges for this site. A dynamic jump with no
// declared edge cannot be proven safe and rejects the program.
func (v *validator) jumpDests(pc uint64, target *uint256.Int) ([]uint64, error) {
	if target != nil {
		udest, overflow := target.Uint64WithOverflow()
		if overflow {
			return nil, fmt.Errorf("%w: dest overflows, pos %d", ErrInvalidJump, pc)
		}
		return []uint64{udest}, nil
	}
	declared := v.table.Targets(uint32(pc))
	if len(declared) == 0 {
		return nil, fmt.Errorf("%w: dynamic jump with no declared edge, pos %d", ErrInvalidJump, pc)
	}
	dests := make([]uint64, len(declared))
	for i, d := range declared {
		dests[i] = uint64(d)
	}
	return dests, nil
}

// checkDest accepts only the landing marker appropriate for the jump kind,
// on an instruction boundary inside the code.
func (v *validator) checkDest(pc, dest uint64, marker OpCode) error {
	if dest >= uint64(len(v.code)) || OpCode(v.code[dest]) != marker || !v.bits.codeSegment(dest) {
		return fmt.Errorf("%w: dest %d, pos %d", ErrInvalidJump, dest, pc)
	}
	return nil
}
