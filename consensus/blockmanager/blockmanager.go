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

// Package blockmanager implements the admission engine that sits between a
// feed of verified blocks and a causally-closed DagStore, suspending blocks
// with missing ancestors and admitting them once their causal history is
// complete.
package blockmanager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/dagconsensus/blockmanager/consensus/dagstore"
	"github.com/dagconsensus/blockmanager/consensus/eviction"
	"github.com/dagconsensus/blockmanager/consensus/quorum"
	"github.com/dagconsensus/blockmanager/consensus/suspension"
	"github.com/ethereum/go-ethereum/log"
)

// BlockManager is the suspension-and-admission gatekeeper between a verified
// block feed and a DagStore. A single BlockManager must only ever be driven
// by one writer calling TryAccept at a time; diagnostic reads
// (MissingBlocks, SuspendedBlockRefs) may run concurrently with each other
// and with TryAccept.
type BlockManager struct {
	cfg    Config
	store  dagstore.DagStore
	policy eviction.Policy

	mu  sync.RWMutex
	idx *suspension.Index

	// quorumRound is R_cur: the highest round for which 2f+1 distinct
	// authors' blocks have been admitted. EvictionPolicy and the
	// future-horizon check are both centered on this round, per spec,
	// rather than on the raw highest round seen (which a Byzantine flood
	// could otherwise push arbitrarily far forward).
	quorumRound  uint64
	roundAuthors map[uint64]map[blockref.AuthorityIndex]struct{}
}

// New builds a BlockManager over the given DagStore.
func New(cfg Config, store dagstore.DagStore) (*BlockManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BlockManager{
		cfg:          cfg,
		store:        store,
		policy:       cfg.evictionPolicy(),
		idx:          suspension.NewIndex(),
		roundAuthors: make(map[uint64]map[blockref.AuthorityIndex]struct{}),
	}, nil
}

// TryAccept attempts to admit blocks into the DagStore. Blocks whose causal
// history is already complete (every ancestor already admitted, either in
// the DagStore or earlier in this same batch) are admitted immediately, in
// ascending (round, author, digest) order. Blocks missing at least one
// ancestor are suspended until that ancestor arrives in a later call.
//
// Admitting a block may itself satisfy the dependency of one or more
// already-suspended blocks; those are unsuspended and admitted too, via a
// breadth-first worklist rather than recursion, so a long dependency chain
// cannot overflow the call stack.
func (bm *BlockManager) TryAccept(ctx context.Context, blocks []*block.VerifiedBlock) ([]*block.VerifiedBlock, map[blockref.BlockRef]struct{}, error) {
	defer func(start time.Time) { tryAcceptLatency.UpdateSince(start) }(time.Now())

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sorted := make([]*block.VerifiedBlock, len(blocks))
	copy(sorted, blocks)
	sortBlocksByRound(sorted)

	bm.mu.Lock()
	defer bm.mu.Unlock()

	missingBefore := bm.idx.MissingRefs()

	var admitted []*block.VerifiedBlock
	acceptedInBatch := make(map[blockref.BlockRef]struct{})

	for _, b := range sorted {
		blocksProcessedTotal.Inc(1)
		ref := b.Reference()

		if bm.idx.ContainsSuspended(ref) {
			continue
		}
		if _, ok := acceptedInBatch[ref]; ok {
			continue
		}
		if already, err := bm.store.Contains(ref); err != nil {
			return nil, nil, fmt.Errorf("blockmanager: checking dagstore membership: %w", err)
		} else if already {
			continue
		}

		if bm.exceedsFutureHorizon(ref) {
			blocksDroppedHorizon.Inc(1)
			log.Debug("blockmanager: dropping block beyond future horizon", "ref", ref, "quorumRound", bm.quorumRound)
			continue
		}
		missingAncestors, err := bm.unresolvedAncestors(b, acceptedInBatch)
		if err != nil {
			return nil, nil, err
		}

		if len(missingAncestors) == 0 {
			if err := bm.admit(b, acceptedInBatch, &admitted); err != nil {
				return nil, nil, err
			}
			bm.cascadeUnsuspend(ref, acceptedInBatch, &admitted)
			continue
		}

		bm.idx.InsertSuspended(b, missingAncestors)
		authorCounters.suspendedCounter(b.Author()).Inc(1)
		suspendedGauge.Update(int64(bm.idx.Len()))
	}

	bm.evict()

	missingAfter := bm.idx.MissingRefs()
	newlyMissing := make(map[blockref.BlockRef]struct{})
	for ref := range missingAfter {
		if _, ok := missingBefore[ref]; !ok {
			newlyMissing[ref] = struct{}{}
		}
	}

	refs := make([]blockref.BlockRef, len(admitted))
	for i, b := range admitted {
		refs[i] = b.Reference()
	}
	blockref.SortRefs(refs)
	byRef := make(map[blockref.BlockRef]*block.VerifiedBlock, len(admitted))
	for _, b := range admitted {
		byRef[b.Reference()] = b
	}
	ordered := make([]*block.VerifiedBlock, len(refs))
	for i, ref := range refs {
		ordered[i] = byRef[ref]
	}

	missingGauge.Update(int64(len(missingAfter)))
	blocksAdmittedTotal.Inc(int64(len(ordered)))

	return ordered, newlyMissing, nil
}

// unresolvedAncestors returns the subset of b's ancestors that are neither
// already in the DagStore nor already admitted earlier in this batch.
func (bm *BlockManager) unresolvedAncestors(b *block.VerifiedBlock, acceptedInBatch map[blockref.BlockRef]struct{}) (map[blockref.BlockRef]struct{}, error) {
	ancestors := b.Ancestors()
	toQuery := make([]blockref.BlockRef, 0, len(ancestors))
	for _, a := range ancestors {
		if a.IsGenesisRelativeTo(bm.cfg.GenesisRound) {
			continue
		}
		if _, ok := acceptedInBatch[a]; ok {
			continue
		}
		toQuery = append(toQuery, a)
	}
	if len(toQuery) == 0 {
		return nil, nil
	}

	present, err := bm.store.ContainsMany(toQuery)
	if err != nil {
		return nil, fmt.Errorf("blockmanager: batched dagstore membership check: %w", err)
	}

	missing := make(map[blockref.BlockRef]struct{})
	for i, a := range toQuery {
		if !present[i] {
			missing[a] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return missing, nil
}

// admit writes b to the DagStore and records it as admitted.
func (bm *BlockManager) admit(b *block.VerifiedBlock, acceptedInBatch map[blockref.BlockRef]struct{}, admitted *[]*block.VerifiedBlock) error {
	if err := bm.store.Accept([]*block.VerifiedBlock{b}); err != nil {
		return fmt.Errorf("blockmanager: accepting block %s: %w", b.Reference(), err)
	}
	acceptedInBatch[b.Reference()] = struct{}{}
	*admitted = append(*admitted, b)
	bm.recordQuorumProgress(b)
	return nil
}

// recordQuorumProgress tracks, per round, the set of distinct authors whose
// blocks have been admitted. Once a round reaches 2f+1 distinct authors for
// the first time, it becomes the new R_cur and a quorum.Update is published
// for the leader-timeout ticker (spec §6). Leader-election is out of scope
// for this module; leaderSlotAuthor below is a deterministic placeholder
// that only decides which authority a given leader *slot* maps to, not who
// is allowed to lead.
func (bm *BlockManager) recordQuorumProgress(b *block.VerifiedBlock) {
	round := b.Round()
	if round <= bm.quorumRound {
		return
	}
	authors, ok := bm.roundAuthors[round]
	if !ok {
		authors = make(map[blockref.AuthorityIndex]struct{})
		bm.roundAuthors[round] = authors
	}
	authors[b.Author()] = struct{}{}

	if len(authors) < bm.cfg.quorumThreshold() {
		return
	}
	bm.quorumRound = round
	for r := range bm.roundAuthors {
		if r <= round {
			delete(bm.roundAuthors, r)
		}
	}

	if bm.cfg.QuorumSignal == nil || bm.cfg.NumLeadersPerRound <= 0 {
		return
	}
	leaders := make([]*blockref.Slot, bm.cfg.NumLeadersPerRound)
	for i := range leaders {
		leaderAuthor := leaderSlotAuthor(round, i, bm.cfg.NumAuthorities)
		if _, ok := authors[leaderAuthor]; ok {
			slot := blockref.NewSlot(round, leaderAuthor)
			leaders[i] = &slot
		}
	}
	bm.cfg.QuorumSignal.Publish(quorum.Update{Round: round, Leaders: leaders})
}

// leaderSlotAuthor deterministically maps leader slot i of round to an
// authority index via round-robin. It is a placeholder for the real
// leader-election rule, which is explicitly out of scope for this module.
func leaderSlotAuthor(round uint64, slot int, numAuthorities int) blockref.AuthorityIndex {
	return blockref.AuthorityIndex((round + uint64(slot)) % uint64(numAuthorities))
}

// cascadeUnsuspend walks the worklist of suspended blocks that may now be
// admittable because ref was just admitted, breadth-first so an arbitrarily
// long dependency chain never recurses.
func (bm *BlockManager) cascadeUnsuspend(ref blockref.BlockRef, acceptedInBatch map[blockref.BlockRef]struct{}, admitted *[]*block.VerifiedBlock) {
	worklist := []blockref.BlockRef{ref}
	for len(worklist) > 0 {
		dep := worklist[0]
		worklist = worklist[1:]

		waiters := bm.idx.ResolveDependency(dep)
		for _, waiterRef := range waiters {
			sb, ok := bm.idx.Get(waiterRef)
			if !ok {
				log.Crit("blockmanager: suspended block vanished mid-cascade", "ref", waiterRef)
				continue
			}
			if len(sb.MissingAncestors()) > 0 {
				continue
			}
			bm.idx.RemoveSuspended(waiterRef)
			if err := bm.admit(sb.Block, acceptedInBatch, admitted); err != nil {
				log.Error("blockmanager: failed to admit unsuspended block", "ref", waiterRef, "err", err)
				continue
			}
			authorCounters.unsuspendedCounter(sb.Block.Author()).Inc(1)
			worklist = append(worklist, waiterRef)
		}
	}
	suspendedGauge.Update(int64(bm.idx.Len()))
}

// evict reclaims missing-set space once it exceeds the configured cap,
// dropping (never admitting) any suspended block left with no remaining
// missing ancestors as a result.
func (bm *BlockManager) evict() {
	victims := bm.policy.SelectVictims(bm.idx, bm.quorumRound)
	var droppedTotal int
	for _, ref := range victims {
		dropped := bm.idx.EvictMissing(ref)
		droppedTotal += len(dropped)
		log.Debug("blockmanager: evicted missing ref", "ref", ref, "quorumRound", bm.quorumRound, "droppedSuspended", len(dropped))
	}
	if len(victims) > 0 {
		blocksEvictedTotal.Inc(int64(len(victims)))
		blocksDroppedOnEviction.Inc(int64(droppedTotal))
		missingGauge.Update(int64(len(bm.idx.MissingRefs())))
		suspendedGauge.Update(int64(bm.idx.Len()))
	}
}

// exceedsFutureHorizon reports whether ref's round lies further ahead of
// R_cur (the current quorum round) than the configured MaxFutureHorizon.
func (bm *BlockManager) exceedsFutureHorizon(ref blockref.BlockRef) bool {
	if ref.Round <= bm.quorumRound {
		return false
	}
	return ref.Round-bm.quorumRound > bm.cfg.MaxFutureHorizon
}

// MissingBlocks returns a snapshot of every ref currently referenced by a
// suspended block but not yet seen.
func (bm *BlockManager) MissingBlocks() map[blockref.BlockRef]struct{} {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.idx.MissingRefs()
}

// SuspendedBlockRefs returns a sorted snapshot of every currently suspended
// block ref.
func (bm *BlockManager) SuspendedBlockRefs() []blockref.BlockRef {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.idx.SuspendedRefs()
}

// QuorumRound returns R_cur, the highest round for which 2f+1 distinct
// authors' blocks have been admitted so far. It is the round EvictionPolicy
// and the future-horizon check are centered on.
func (bm *BlockManager) QuorumRound() uint64 {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.quorumRound
}

func sortBlocksByRound(blocks []*block.VerifiedBlock) {
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Reference().Less(blocks[j].Reference())
	})
}
