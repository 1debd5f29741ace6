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
	"sort"
)

// JumpDestEntry declares one legal dynamic-jump edge: the jump at Source may
// transfer control to Dest. Both offsets live in the uint24 domain.
type JumpDestEntry struct {
	Source uint32
	Dest   uint32
}

// JumpDestTable is the pre-declared set of legal dynamic-jump edges, sorted
// ascending by (Source, Dest) with no duplicate pairs. A source may appear
// with several destinations; the value on the stack picks between them at
// run time. The table is immutable after parsing.
type JumpDestTable []JumpDestEntry

// jumpDestRecordSize is the wire size of one edge: two uint24 offsets,
// most significant byte first.
const jumpDestRecordSize = 6

// ParseJumpDestTable decodes the raw record sequence. Unsorted or duplicate
// records reject the whole table: the loader is required to hand over a
// canonical table, nothing is silently fixed up here.
func ParseJumpDestTable(raw []byte) (JumpDestTable, error) {
	if len(raw)%jumpDestRecordSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedJumpDestTable, len(raw), jumpDestRecordSize)
	}
	tbl := make(JumpDestTable, 0, len(raw)/jumpDestRecordSize)
	for i := 0; i < len(raw); i += jumpDestRecordSize {
		entry := JumpDestEntry{
			Source: uint32(raw[i])<<16 | uint32(raw[i+1])<<8 | uint32(raw[i+2]),
			Dest:   uint32(raw[i+3])<<16 | uint32(raw[i+4])<<8 | uint32(raw[i+5]),
		}
		if n := len(tbl); n > 0 {
			prev := tbl[n-1]
			if entry.Source < prev.Source || (entry.Source == prev.Source && entry.Dest <= prev.Dest) {
				return nil, fmt.Errorf("%w: record %d out of order", ErrMalformedJumpDestTable, n)
			}
		}
		tbl = append(tbl, entry)
	}
	return tbl, nil
}

// Encode returns the canonical record form of the table, the exact inverse
// of ParseJumpDestTable.
func (t JumpDestTable) Encode() []byte {
	out := make([]byte, 0, len(t)*jumpDestRecordSize)
	for _, entry := range t {
		out = append(out,
			byte(entry.Source>>16), byte(entry.Source>>8), byte(entry.Source),
			byte(entry.Dest>>16), byte(entry.Dest>>8), byte(entry.Dest))
	}
	return out
}

// Has reports whether the exact (source, dest) edge is declared.
func (t JumpDestTable) Has(source, dest uint32) bool {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].Source > source || (t[i].Source == source && t[i].Dest >= dest)
	})
	return i < len(t) && t[i].Source == source && t[i].Dest == dest
}

// Targets returns every declared destination for the jump at source, in
// ascending order.
func (t JumpDestTable) Targets(source uint32) []uint32 {
	lo := sort.Search(len(t), func(i int) bool {
		return t[i].Source >= source
	})
	var dests []uint32
	for i := lo; i < len(t) && t[i].Source == source; i++ {
		dests = append(dests, t[i].Dest)
	}
	return dests
}
