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

// Package eviction bounds the suspension index's memory footprint by
// capping the size of the missing set, evicting the missing refs farthest
// from the current round when the cap is exceeded. It is the Go analogue of
// kaspad's orphan-block eviction (consensus/blockdag/dag.go's
// maxOrphanBlocks/orphanBlock), adapted to a round-distance metric instead
// of an expiration timestamp.
package eviction

import (
	"sort"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/dagconsensus/blockmanager/consensus/suspension"
)

// Policy bounds the suspension index's missing set and decides which
// missing refs to evict when the bound is exceeded.
type Policy struct {
	// ProtectedWindow is the number of rounds on either side of the current
	// round whose missing refs are never evicted, regardless of count.
	ProtectedWindow uint64

	// MaxMissing is the maximum number of distinct refs the missing set may
	// hold before eviction kicks in. Always active; there is no zero-value
	// opt-out (Open Question #1 of the design notes).
	MaxMissing int
}

// DefaultMaxMissing is used when a Config does not set one explicitly.
const DefaultMaxMissing = 10_000

// DefaultProtectedWindow mirrors the Rust implementation's window of rounds
// that are never subject to eviction pressure.
const DefaultProtectedWindow = 50

// NewPolicy builds a Policy with defaults substituted for zero fields.
func NewPolicy(protectedWindow uint64, maxMissing int) Policy {
	if maxMissing <= 0 {
		maxMissing = DefaultMaxMissing
	}
	return Policy{ProtectedWindow: protectedWindow, MaxMissing: maxMissing}
}

// victim pairs a missing ref with its distance from the current round, for
// sorting.
type victim struct {
	ref      blockref.BlockRef
	distance uint64
}

// SelectVictims returns the missing refs that must be evicted to bring the
// missing set back at or under p.MaxMissing, given the current round. Refs
// inside the protected window [currentRound-ProtectedWindow,
// currentRound+ProtectedWindow] are never selected; if eviction cannot
// bring the set under the cap without evicting a protected ref,
// SelectVictims evicts as many unprotected refs as it can and leaves the
// rest (the missing set is allowed to exceed MaxMissing only while every
// remaining entry is protected). The caller is responsible for actually
// reclaiming each victim via suspension.Index.EvictMissing.
func (p Policy) SelectVictims(idx *suspension.Index, currentRound uint64) []blockref.BlockRef {
	missingSet := idx.MissingRefs()
	refs := make([]blockref.BlockRef, 0, len(missingSet))
	for ref := range missingSet {
		refs = append(refs, ref)
	}
	if len(refs) <= p.MaxMissing {
		return nil
	}
	overflow := len(refs) - p.MaxMissing

	lowerBound, hasLower := subUint64(currentRound, p.ProtectedWindow)
	upperBound := currentRound + p.ProtectedWindow

	candidates := make([]victim, 0, len(refs))
	for _, ref := range refs {
		if ref.Round <= upperBound && (!hasLower || ref.Round >= lowerBound) {
			continue
		}
		candidates = append(candidates, victim{ref: ref, distance: roundDistance(ref.Round, currentRound)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance > candidates[j].distance
		}
		// Ties favor preserving the past: a gap behind the current round
		// blocks progress, a gap ahead of it merely defers a decision.
		return candidates[j].ref.Less(candidates[i].ref)
	})

	if overflow > len(candidates) {
		overflow = len(candidates)
	}
	victims := make([]blockref.BlockRef, overflow)
	for i := 0; i < overflow; i++ {
		victims[i] = candidates[i].ref
	}
	return victims
}

func roundDistance(round, currentRound uint64) uint64 {
	if round >= currentRound {
		return round - currentRound
	}
	return currentRound - round
}

// subUint64 subtracts b from a without underflowing, returning false if the
// result would be negative.
func subUint64(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
