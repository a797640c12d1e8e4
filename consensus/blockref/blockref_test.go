// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package blockref

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBlockRefCompareOrdersByRoundThenAuthorThenDigest(t *testing.T) {
	low := NewBlockRef(1, 0, common.Hash{})
	high := NewBlockRef(2, 0, common.Hash{})
	if !low.Less(high) {
		t.Fatalf("expected round 1 to sort before round 2")
	}

	sameRoundLowAuthor := NewBlockRef(1, 0, common.Hash{})
	sameRoundHighAuthor := NewBlockRef(1, 1, common.Hash{})
	if !sameRoundLowAuthor.Less(sameRoundHighAuthor) {
		t.Fatalf("expected author 0 to sort before author 1 at the same round")
	}

	lowDigest := NewBlockRef(1, 0, common.HexToHash("0x01"))
	highDigest := NewBlockRef(1, 0, common.HexToHash("0x02"))
	if !lowDigest.Less(highDigest) {
		t.Fatalf("expected lower digest to sort first when round and author match")
	}

	if lowDigest.Compare(lowDigest) != 0 {
		t.Fatalf("expected a ref to compare equal to itself")
	}
}

func TestBlockRefIsGenesis(t *testing.T) {
	genesis := NewBlockRef(GenesisRound, 0, common.Hash{})
	if !genesis.IsGenesis() {
		t.Fatalf("expected round %d to be genesis", GenesisRound)
	}
	nonGenesis := NewBlockRef(GenesisRound+1, 0, common.Hash{})
	if nonGenesis.IsGenesis() {
		t.Fatalf("expected round %d to not be genesis", GenesisRound+1)
	}
}

func TestSortRefsIsStableUnderShuffle(t *testing.T) {
	refs := []BlockRef{
		NewBlockRef(3, 1, common.HexToHash("0x03")),
		NewBlockRef(1, 0, common.HexToHash("0x01")),
		NewBlockRef(2, 5, common.HexToHash("0x02")),
		NewBlockRef(1, 2, common.HexToHash("0x00")),
	}
	SortRefs(refs)
	for i := 1; i < len(refs); i++ {
		if !refs[i-1].Less(refs[i]) {
			t.Fatalf("refs not sorted ascending at index %d: %s then %s", i, refs[i-1], refs[i])
		}
	}
}
