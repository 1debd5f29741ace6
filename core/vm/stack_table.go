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
	"github.com/ethvm/go-subvm/params"
)

func minStack(pops, push int) int {
	return pops
}

// maxStack encodes both the stack limit and the operation's net effect: the
// largest pre-operation stack length that won't overflow. The validator
// recovers push-pop as StackLimit-maxStack.
func maxStack(pops, push int) int {
	return int(params.StackLimit) + pops - push
}

func minDupStack(n int) int {
	return minStack(n, n+1)
}

func maxDupStack(n int) int {
	return maxStack(n, n+1)
}

func minSwapStack(n int) int {
	return minStack(n, n)
}

func maxSwapStack(n int) int {
	return maxStack(n, n)
}
