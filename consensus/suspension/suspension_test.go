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

package suspension

import (
	"testing"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
)

func TestInsertSuspendedPopulatesReverseDepsAndMissing(t *testing.T) {
	idx := NewIndex()
	parent := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	b := block.NewTestBlock(2, 0, []blockref.BlockRef{parent})

	idx.InsertSuspended(b, map[blockref.BlockRef]struct{}{parent: {}})

	if !idx.ContainsSuspended(b.Reference()) {
		t.Fatalf("expected block to be suspended")
	}
	if !idx.ContainsMissing(parent) {
		t.Fatalf("expected parent to be missing")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 suspended block, got %d", idx.Len())
	}
}

func TestResolveDependencyReturnsWaitersAndClearsMissing(t *testing.T) {
	idx := NewIndex()
	parent := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	childA := block.NewTestBlock(2, 0, []blockref.BlockRef{parent})
	childB := block.NewTestBlock(2, 1, []blockref.BlockRef{parent})

	idx.InsertSuspended(childA, map[blockref.BlockRef]struct{}{parent: {}})
	idx.InsertSuspended(childB, map[blockref.BlockRef]struct{}{parent: {}})

	waiters := idx.ResolveDependency(parent)
	if len(waiters) != 2 {
		t.Fatalf("expected 2 waiters, got %d", len(waiters))
	}
	if idx.ContainsMissing(parent) {
		t.Fatalf("expected parent to no longer be missing after resolution")
	}

	sbA, ok := idx.Get(childA.Reference())
	if !ok {
		t.Fatalf("expected childA to still be suspended pending removal")
	}
	if len(sbA.MissingAncestors()) != 0 {
		t.Fatalf("expected childA's missing ancestors to be empty after resolution")
	}
}

func TestRemoveSuspendedCleansUpReverseDeps(t *testing.T) {
	idx := NewIndex()
	parentA := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	parentB := blockref.NewBlockRef(1, 1, block.TestDigest(1, 1))
	b := block.NewTestBlock(2, 0, []blockref.BlockRef{parentA, parentB})

	idx.InsertSuspended(b, map[blockref.BlockRef]struct{}{parentA: {}, parentB: {}})
	idx.RemoveSuspended(b.Reference())

	if idx.ContainsSuspended(b.Reference()) {
		t.Fatalf("expected block to no longer be suspended")
	}
	if idx.ContainsMissing(parentA) || idx.ContainsMissing(parentB) {
		t.Fatalf("expected no dangling missing entries after removal")
	}
	if len(idx.MissingRefs()) != 0 {
		t.Fatalf("expected empty missing set, got %v", idx.MissingRefs())
	}
}

func TestEvictMissingDropsBlocksDependingOnlyOnTheEvictedKey(t *testing.T) {
	idx := NewIndex()
	orphanAncestor := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	b := block.NewTestBlock(2, 0, []blockref.BlockRef{orphanAncestor})
	idx.InsertSuspended(b, map[blockref.BlockRef]struct{}{orphanAncestor: {}})

	dropped := idx.EvictMissing(orphanAncestor)
	if len(dropped) != 1 || dropped[0] != b.Reference() {
		t.Fatalf("expected %s to be dropped, got %v", b.Reference(), dropped)
	}
	if idx.ContainsSuspended(b.Reference()) {
		t.Fatalf("expected dropped block to no longer be suspended")
	}
	if idx.ContainsMissing(orphanAncestor) {
		t.Fatalf("expected evicted ref to no longer be missing")
	}
}

func TestEvictMissingLeavesBlockSuspendedIfOtherAncestorsRemain(t *testing.T) {
	idx := NewIndex()
	evicted := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	stillMissing := blockref.NewBlockRef(1, 1, block.TestDigest(1, 1))
	b := block.NewTestBlock(2, 0, []blockref.BlockRef{evicted, stillMissing})
	idx.InsertSuspended(b, map[blockref.BlockRef]struct{}{evicted: {}, stillMissing: {}})

	dropped := idx.EvictMissing(evicted)
	if len(dropped) != 0 {
		t.Fatalf("expected no blocks dropped while another ancestor remains missing, got %v", dropped)
	}
	if !idx.ContainsSuspended(b.Reference()) {
		t.Fatalf("expected block to remain suspended")
	}
	sb, ok := idx.Get(b.Reference())
	if !ok {
		t.Fatalf("expected to find suspended block")
	}
	if _, ok := sb.MissingAncestors()[evicted]; ok {
		t.Fatalf("expected evicted ancestor to be dropped from the block's own missing set")
	}
	if _, ok := sb.MissingAncestors()[stillMissing]; !ok {
		t.Fatalf("expected the other ancestor to remain in the block's missing set")
	}
}

// TestInsertSuspendedClearsOwnRefFromMissing covers cross-invariant 5: a ref
// already present in missing (because some other suspended block cites it as
// a still-outstanding ancestor) must be removed from missing the moment its
// own payload is inserted into suspended, even though it cannot yet be
// admitted. A ref must never be a key of both maps at once.
func TestInsertSuspendedClearsOwnRefFromMissing(t *testing.T) {
	idx := NewIndex()
	a := blockref.NewBlockRef(1, 0, block.TestDigest(1, 0))
	b := blockref.NewBlockRef(2, 0, block.TestDigest(2, 0))
	c := block.NewTestBlock(3, 0, []blockref.BlockRef{b})

	// c cites b, which hasn't arrived yet: b enters missing.
	idx.InsertSuspended(c, map[blockref.BlockRef]struct{}{b: {}})
	if !idx.ContainsMissing(b) {
		t.Fatalf("expected b to be missing before it arrives")
	}

	// b itself arrives, citing a (not yet seen), so b is suspended in turn.
	bBlock := block.NewTestBlock(2, 0, []blockref.BlockRef{a})
	idx.InsertSuspended(bBlock, map[blockref.BlockRef]struct{}{a: {}})

	if idx.ContainsMissing(b) {
		t.Fatalf("b must not remain in missing once its payload is suspended")
	}
	if !idx.ContainsSuspended(b) {
		t.Fatalf("expected b to be suspended")
	}
}

func TestSuspendedRefsAreSorted(t *testing.T) {
	idx := NewIndex()
	for author := 2; author >= 0; author-- {
		b := block.NewTestBlock(1, blockref.AuthorityIndex(author), nil)
		idx.InsertSuspended(b, map[blockref.BlockRef]struct{}{
			blockref.NewBlockRef(0, 9, block.TestDigest(0, 9)): {},
		})
	}
	refs := idx.SuspendedRefs()
	for i := 1; i < len(refs); i++ {
		if !refs[i-1].Less(refs[i]) {
			t.Fatalf("suspended refs not sorted at index %d", i)
		}
	}
}
