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

// Package suspension holds the in-memory index of blocks that cannot yet be
// admitted because one or more ancestors are missing from the DagStore.
package suspension

import (
	"fmt"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/log"
)

// SuspendedBlock pairs a not-yet-admittable block with the set of ancestor
// refs still missing from the DagStore.
type SuspendedBlock struct {
	Block            *block.VerifiedBlock
	missingAncestors map[blockref.BlockRef]struct{}
}

// MissingAncestors returns the set of ancestor refs still outstanding. The
// returned map must not be mutated by callers.
func (s *SuspendedBlock) MissingAncestors() map[blockref.BlockRef]struct{} {
	return s.missingAncestors
}

// Index tracks three maps that must always agree with each other:
//
//   - suspended: ref -> the SuspendedBlock waiting on it
//   - reverseDeps: missing ref -> set of suspended refs that depend on it
//   - missing: the set of refs referenced by at least one suspended block
//     but not yet seen
//
// Every mutating method preserves the following cross-invariants:
//  1. every suspended[ref].missingAncestors is non-empty, except between
//     ResolveDependency emptying it and the caller's RemoveSuspended.
//  2. dep is a key of reverseDeps iff some suspended block's
//     missingAncestors contains dep.
//  3. reverseDeps[dep] contains ref iff suspended[ref].missingAncestors
//     contains dep.
//  4. dep is a key of missing iff reverseDeps[dep] is non-empty and dep is
//     not itself a key of suspended.
//  5. missing and suspended are disjoint key sets (a block is never both
//     suspended and missing at once).
//  6. len(missing) <= len(reverseDeps).
type Index struct {
	suspended   map[blockref.BlockRef]*SuspendedBlock
	reverseDeps map[blockref.BlockRef]map[blockref.BlockRef]struct{}
	missing     map[blockref.BlockRef]struct{}
}

// NewIndex builds an empty suspension index.
func NewIndex() *Index {
	return &Index{
		suspended:   make(map[blockref.BlockRef]*SuspendedBlock),
		reverseDeps: make(map[blockref.BlockRef]map[blockref.BlockRef]struct{}),
		missing:     make(map[blockref.BlockRef]struct{}),
	}
}

// InsertSuspended registers b as suspended on the given set of missing
// ancestor refs. It is the caller's responsibility to ensure b is not
// already suspended.
//
// b's own ref is removed from missing, if present: its payload is now held
// (as the SuspendedBlock itself), even though it cannot yet be admitted. A
// ref may not be simultaneously a key of both suspended and missing.
func (idx *Index) InsertSuspended(b *block.VerifiedBlock, missingAncestors map[blockref.BlockRef]struct{}) {
	ref := b.Reference()
	idx.suspended[ref] = &SuspendedBlock{Block: b, missingAncestors: missingAncestors}
	delete(idx.missing, ref)
	for dep := range missingAncestors {
		if idx.reverseDeps[dep] == nil {
			idx.reverseDeps[dep] = make(map[blockref.BlockRef]struct{})
		}
		idx.reverseDeps[dep][ref] = struct{}{}
		if _, held := idx.suspended[dep]; !held {
			idx.missing[dep] = struct{}{}
		}
	}
}

// ResolveDependency records that dep has now been admitted, and returns the
// set of suspended refs that depended on it. It does not unsuspend anything
// itself; the caller (the admission engine) decides whether each returned
// ref is now fully satisfied.
func (idx *Index) ResolveDependency(dep blockref.BlockRef) []blockref.BlockRef {
	waiters, ok := idx.reverseDeps[dep]
	if !ok {
		return nil
	}
	refs := make([]blockref.BlockRef, 0, len(waiters))
	for ref := range waiters {
		sb, ok := idx.suspended[ref]
		if !ok {
			// The suspension and reverse-dependency maps have drifted out
			// of sync, which should be impossible by construction.
			log.Crit("suspension: reverse dependency points at unknown suspended block", "dep", dep, "ref", ref)
		}
		delete(sb.missingAncestors, dep)
		refs = append(refs, ref)
	}
	delete(idx.reverseDeps, dep)
	delete(idx.missing, dep)
	blockref.SortRefs(refs)
	return refs
}

// RemoveSuspended removes ref from the suspended set entirely, along with
// any reverse-dependency bookkeeping for its still-missing ancestors. It is
// called once ResolveDependency (or a cascade of it) has emptied
// MissingAncestors for ref, or when ref is evicted.
func (idx *Index) RemoveSuspended(ref blockref.BlockRef) *SuspendedBlock {
	sb, ok := idx.suspended[ref]
	if !ok {
		return nil
	}
	delete(idx.suspended, ref)
	for dep := range sb.missingAncestors {
		waiters := idx.reverseDeps[dep]
		delete(waiters, ref)
		if len(waiters) == 0 {
			delete(idx.reverseDeps, dep)
			delete(idx.missing, dep)
		}
	}
	return sb
}

// EvictMissing permanently forgets dep, the way EvictionPolicy reclaims a
// missing-set entry that a Byzantine flood manufactured: dep is removed
// from the missing set, and every suspended block that was waiting on it
// has that single dependency dropped. A waiter left with no remaining
// missing ancestors is not admitted (dep was never actually received) —
// it is dropped from the index entirely, its memory reclaimed, and its ref
// is included in the returned slice.
func (idx *Index) EvictMissing(dep blockref.BlockRef) []blockref.BlockRef {
	waiters, ok := idx.reverseDeps[dep]
	if !ok {
		return nil
	}
	var dropped []blockref.BlockRef
	for ref := range waiters {
		sb, ok := idx.suspended[ref]
		if !ok {
			log.Crit("suspension: reverse dependency points at unknown suspended block", "dep", dep, "ref", ref)
			continue
		}
		delete(sb.missingAncestors, dep)
		if len(sb.missingAncestors) == 0 {
			idx.RemoveSuspended(ref)
			dropped = append(dropped, ref)
			// Its payload is no longer held, so any block still waiting on
			// it turns it back into a missing ref.
			if len(idx.reverseDeps[ref]) > 0 {
				idx.missing[ref] = struct{}{}
			}
		}
	}
	delete(idx.reverseDeps, dep)
	delete(idx.missing, dep)
	blockref.SortRefs(dropped)
	return dropped
}

// ContainsSuspended reports whether ref is currently suspended.
func (idx *Index) ContainsSuspended(ref blockref.BlockRef) bool {
	_, ok := idx.suspended[ref]
	return ok
}

// Get returns the SuspendedBlock for ref, if suspended.
func (idx *Index) Get(ref blockref.BlockRef) (*SuspendedBlock, bool) {
	sb, ok := idx.suspended[ref]
	return sb, ok
}

// ContainsMissing reports whether ref is currently referenced by at least
// one suspended block but has not yet arrived.
func (idx *Index) ContainsMissing(ref blockref.BlockRef) bool {
	_, ok := idx.missing[ref]
	return ok
}

// MissingRefs returns a snapshot of the current missing set. The returned
// map is a copy and safe for the caller to retain.
func (idx *Index) MissingRefs() map[blockref.BlockRef]struct{} {
	out := make(map[blockref.BlockRef]struct{}, len(idx.missing))
	for ref := range idx.missing {
		out[ref] = struct{}{}
	}
	return out
}

// SuspendedRefs returns a sorted snapshot of every currently suspended ref.
func (idx *Index) SuspendedRefs() []blockref.BlockRef {
	refs := make([]blockref.BlockRef, 0, len(idx.suspended))
	for ref := range idx.suspended {
		refs = append(refs, ref)
	}
	blockref.SortRefs(refs)
	return refs
}

// Len returns the number of currently suspended blocks.
func (idx *Index) Len() int {
	return len(idx.suspended)
}

func (idx *Index) String() string {
	return fmt.Sprintf("suspension.Index{suspended=%d, missing=%d}", len(idx.suspended), len(idx.missing))
}
