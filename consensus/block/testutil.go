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

package block

import (
	"encoding/binary"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/common"
)

// TestDigest deterministically derives a digest from a block's identity, so
// test fixtures never need to hand-roll hashes.
func TestDigest(round uint64, author blockref.AuthorityIndex) common.Hash {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], round)
	binary.BigEndian.PutUint32(buf[8:], uint32(author))
	return common.BytesToHash(buf[:])
}

// NewTestBlock builds a VerifiedBlock for round/author with the given
// ancestors, deriving its digest deterministically via TestDigest so fixture
// construction never needs real signatures.
func NewTestBlock(round uint64, author blockref.AuthorityIndex, ancestors []blockref.BlockRef) *VerifiedBlock {
	ref := blockref.NewBlockRef(round, author, TestDigest(round, author))
	sorted := make([]blockref.BlockRef, len(ancestors))
	copy(sorted, ancestors)
	blockref.SortRefs(sorted)
	return NewVerifiedBlock(ref, sorted, nil)
}

// TestDAG builds a fully connected DAG fixture spanning [1, numRounds] with
// numAuthorities blocks per round, where every block at round r>1 cites every
// block from round r-1 as an ancestor. This mirrors the dag() test helper
// used throughout the original block-manager test suite to exercise
// multi-round causal-history scenarios.
func TestDAG(numRounds int, numAuthorities int) []*VerifiedBlock {
	var blocks []*VerifiedBlock
	var previousRound []blockref.BlockRef
	for round := 1; round <= numRounds; round++ {
		var currentRound []blockref.BlockRef
		for author := 0; author < numAuthorities; author++ {
			b := NewTestBlock(uint64(round), blockref.AuthorityIndex(author), previousRound)
			blocks = append(blocks, b)
			currentRound = append(currentRound, b.Reference())
		}
		previousRound = currentRound
	}
	return blocks
}
