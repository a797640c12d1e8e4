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

// Package block defines the verified, immutable block payload the
// BlockManager operates on. Verification (signatures, schema) happens
// upstream; everything here assumes it has already passed.
package block

import (
	"fmt"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/rlp"
)

// VerifiedBlock is an immutable, already-verified block as received from the
// network layer. Ancestors are sorted ascending and are all strictly lower
// round than the block itself (except for genesis blocks, which have none).
type VerifiedBlock struct {
	ref       blockref.BlockRef
	author    blockref.AuthorityIndex
	ancestors []blockref.BlockRef
	bytes     []byte
}

// wireBlock is the RLP wire encoding of a VerifiedBlock. Kept distinct from
// VerifiedBlock itself so the exported type can keep unexported fields and
// derived accessors, matching the teacher's convention of a small private
// "on disk"/"on wire" struct next to the public type (see
// core/ubtemit/types.go's OutboxEnvelope alongside QueuedDiffV1).
type wireBlock struct {
	Round     uint64
	Author    blockref.AuthorityIndex
	Digest    [32]byte
	Ancestors []wireRef
	Payload   []byte
}

type wireRef struct {
	Round  uint64
	Author blockref.AuthorityIndex
	Digest [32]byte
}

// NewVerifiedBlock builds a VerifiedBlock from its parts. ancestors must
// already be sorted ascending by the caller (the verification layer is
// expected to have validated and normalized it); this constructor neither
// re-sorts nor copies it.
func NewVerifiedBlock(ref blockref.BlockRef, ancestors []blockref.BlockRef, payload []byte) *VerifiedBlock {
	b := &VerifiedBlock{
		ref:       ref,
		author:    ref.Author,
		ancestors: ancestors,
	}
	data, err := rlp.EncodeToBytes(toWire(b, payload))
	if err != nil {
		// Encoding a plain struct of fixed-width ints and byte slices cannot
		// fail; a failure here means rlp itself is broken.
		panic(fmt.Sprintf("block: failed to encode verified block %s: %v", ref, err))
	}
	b.bytes = data
	return b
}

func toWire(b *VerifiedBlock, payload []byte) *wireBlock {
	w := &wireBlock{
		Round:   b.ref.Round,
		Author:  b.author,
		Digest:  b.ref.Digest,
		Payload: payload,
	}
	w.Ancestors = make([]wireRef, len(b.ancestors))
	for i, a := range b.ancestors {
		w.Ancestors[i] = wireRef{Round: a.Round, Author: a.Author, Digest: a.Digest}
	}
	return w
}

// Reference returns the block's own identity.
func (b *VerifiedBlock) Reference() blockref.BlockRef { return b.ref }

// Round returns the block's round, a shorthand for Reference().Round.
func (b *VerifiedBlock) Round() uint64 { return b.ref.Round }

// Author returns the authority that produced the block.
func (b *VerifiedBlock) Author() blockref.AuthorityIndex { return b.author }

// Ancestors returns the block's sorted ancestor references. The returned
// slice must not be mutated by callers.
func (b *VerifiedBlock) Ancestors() []blockref.BlockRef { return b.ancestors }

// Bytes returns the RLP-encoded wire form of the block.
func (b *VerifiedBlock) Bytes() []byte { return b.bytes }

// DecodeVerifiedBlock parses the wire form produced by Bytes/NewVerifiedBlock.
func DecodeVerifiedBlock(data []byte) (*VerifiedBlock, error) {
	var w wireBlock
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return nil, fmt.Errorf("block: decode verified block: %w", err)
	}
	ancestors := make([]blockref.BlockRef, len(w.Ancestors))
	for i, a := range w.Ancestors {
		ancestors[i] = blockref.NewBlockRef(a.Round, a.Author, a.Digest)
	}
	b := &VerifiedBlock{
		ref:       blockref.NewBlockRef(w.Round, w.Author, w.Digest),
		author:    w.Author,
		ancestors: ancestors,
		bytes:     data,
	}
	return b, nil
}

func (b *VerifiedBlock) String() string {
	return fmt.Sprintf("VerifiedBlock{%s, %d ancestors}", b.ref, len(b.ancestors))
}
