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

// Package dagstore defines the BlockManager's external collaborator: the
// causally-closed store of already-admitted blocks, plus a reference
// in-memory implementation.
package dagstore

import (
	"errors"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
)

// ErrStorageFailure wraps any error surfaced by a DagStore implementation.
// Callers should use errors.Is(err, ErrStorageFailure) rather than comparing
// against the underlying driver's own sentinel errors.
var ErrStorageFailure = errors.New("dagstore: storage failure")

// DagStore is the BlockManager's view of the causally-closed set of
// already-admitted blocks. Implementations must be safe for concurrent use
// by a single writer and multiple readers.
type DagStore interface {
	// Contains reports whether ref has already been admitted.
	Contains(ref blockref.BlockRef) (bool, error)

	// ContainsMany is the batched form of Contains, preserving the order of
	// refs in the returned slice.
	ContainsMany(refs []blockref.BlockRef) ([]bool, error)

	// Accept durably admits blocks. Implementations may assume blocks are
	// already causally closed with respect to the store (every ancestor of
	// every block has either already been accepted or is present in the same
	// batch at a strictly lower round).
	Accept(blocks []*block.VerifiedBlock) error
}
