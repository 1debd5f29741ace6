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
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"
)

// ValidatorCache memoizes validation verdicts keyed by the Keccak-256 of the
// code and its jumpdest table. Validation is pure, so a cached verdict is as
// good as a fresh one; hosts that re-create the same program repeatedly skip
// the traversal entirely.
type ValidatorCache struct {
	verdicts *lru.Cache
}

// NewValidatorCache creates a verdict cache holding up to size entries.
func NewValidatorCache(size int) *ValidatorCache {
	cache, _ := lru.New(size)
	return &ValidatorCache{verdicts: cache}
}

// Validate behaves exactly like the package-level Validate, consulting the
// cache first.
func (c *ValidatorCache) Validate(code []byte, table JumpDestTable) error {
	key := validationKey(code, table)
	if verdict, ok := c.verdicts.Get(key); ok {
		if verdict == nil {
			return nil
		}
		return verdict.(error)
	}
	err := Validate(code, table)
	if err == nil {
		c.verdicts.Add(key, nil)
	} else {
		c.verdicts.Add(key, err)
	}
	return err
}

func validationKey(code []byte, table JumpDestTable) [32]byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(code)
	hasher.Write(table.Encode())
	var key [32]byte
	hasher.Sum(key[:0])
	return key
}
