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

// Package blockref defines the content-addressed identity of a block in the
// DAG: a (round, author, digest) tuple with a total lexicographic order.
package blockref

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// AuthorityIndex identifies a validator's position within the committee.
type AuthorityIndex uint32

// Value returns the plain numeric index, for use in label-friendly contexts
// such as metrics and log fields.
func (a AuthorityIndex) Value() uint32 { return uint32(a) }

// GenesisRound is the implicit round containing one block per authority.
// Blocks at or below this round are never suspended.
const GenesisRound uint64 = 0

// BlockRef is the Copy-cheap, comparable, hashable identity of a block.
// The zero value is not a reserved "absent" marker: round 0, author 0, zero
// digest is an ordinary genesis-round ref, so callers must not rely on the
// zero value meaning "absent".
type BlockRef struct {
	Round  uint64
	Author AuthorityIndex
	Digest common.Hash
}

// NewBlockRef builds a BlockRef from its three components.
func NewBlockRef(round uint64, author AuthorityIndex, digest common.Hash) BlockRef {
	return BlockRef{Round: round, Author: author, Digest: digest}
}

// Compare orders two refs by (round, author, digest), ascending. It returns
// a negative number if r sorts before other, zero if equal, positive
// otherwise.
func (r BlockRef) Compare(other BlockRef) int {
	if r.Round != other.Round {
		if r.Round < other.Round {
			return -1
		}
		return 1
	}
	if r.Author != other.Author {
		if r.Author < other.Author {
			return -1
		}
		return 1
	}
	return bytes.Compare(r.Digest[:], other.Digest[:])
}

// Less reports whether r sorts strictly before other.
func (r BlockRef) Less(other BlockRef) bool {
	return r.Compare(other) < 0
}

// IsGenesis reports whether r belongs to the implicit genesis round.
func (r BlockRef) IsGenesis() bool {
	return r.Round <= GenesisRound
}

// IsGenesisRelativeTo reports whether r's round is at or below the given
// genesis round, a deployment-configurable generalization of IsGenesis for
// protocols that start their DAG at a non-zero round (e.g. after a restart
// from a snapshot). Rounds at or below it are never suspended, and are
// treated as implicitly present when referenced as an ancestor.
func (r BlockRef) IsGenesisRelativeTo(genesisRound uint64) bool {
	return r.Round <= genesisRound
}

func (r BlockRef) String() string {
	return fmt.Sprintf("B(%d,%d,%s)", r.Round, r.Author, r.Digest.Hex())
}

// Slot is a potential leader position within a round: the pair (round,
// authority) without committing to a specific digest.
type Slot struct {
	Round  uint64
	Author AuthorityIndex
}

// NewSlot builds a Slot for the given round and authority.
func NewSlot(round uint64, author AuthorityIndex) Slot {
	return Slot{Round: round, Author: author}
}

func (s Slot) String() string {
	return fmt.Sprintf("Slot(%d,%d)", s.Round, s.Author)
}

// SortRefs sorts refs ascending in place, using Compare.
func SortRefs(refs []BlockRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
}
