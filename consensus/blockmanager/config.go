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

package blockmanager

import (
	"fmt"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/dagconsensus/blockmanager/consensus/eviction"
	"github.com/dagconsensus/blockmanager/consensus/quorum"
)

// Config holds the BlockManager's tunable parameters.
type Config struct {
	// NumAuthorities is the committee size; AuthorityIndex values must be
	// strictly less than this.
	NumAuthorities int

	// NumLeadersPerRound is N, the number of leader slots considered per
	// round by the leader-timeout ticker's weight schedule.
	NumLeadersPerRound int

	// QuorumSignal, if non-nil and NumLeadersPerRound is positive, receives
	// a quorum.Update every time a round's 2f+1 quorum is newly reached.
	// Leader-election itself is out
	// of scope; slot occupancy is derived from leaderSlotAuthor, a
	// deterministic round-robin placeholder (see blockmanager.go).
	QuorumSignal *quorum.Signal

	// MaxFutureHorizon is the maximum number of rounds a block's round may
	// lie ahead of R_cur (the current quorum round) before it is dropped
	// instead of suspended.
	MaxFutureHorizon uint64

	// GenesisRound is the highest round treated as implicit: refs at or
	// below it are never suspended, and are treated as already present
	// whenever another block lists one as an ancestor. Defaults to
	// blockref.GenesisRound (0); deployments that bootstrap a DAG from a
	// snapshot at a later round configure this instead.
	GenesisRound uint64

	// ProtectedWindow is the number of rounds on either side of the current
	// round whose missing refs are immune to eviction.
	ProtectedWindow uint64

	// MaxMissing caps the size of the missing set before eviction starts
	// reclaiming space. Zero selects eviction.DefaultMaxMissing.
	MaxMissing int

	// LeaderTimeout is the base per-round leader timeout, before any
	// per-leader weight reduction is applied.
	LeaderTimeout uint64 // milliseconds, kept as an integer to avoid importing time in config math

	// LeaderTimeoutWeights gives, in leader-slot order, the fraction (in
	// basis points out of 10_000) of LeaderTimeout to subtract once that
	// slot's leader block has arrived. Must have exactly NumLeadersPerRound
	// entries when both it and NumLeadersPerRound are non-zero.
	LeaderTimeoutWeights []uint32
}

// Validate checks that c describes a usable configuration.
func (c *Config) Validate() error {
	if c.NumAuthorities <= 0 {
		return fmt.Errorf("blockmanager: num-authorities must be > 0")
	}
	if c.MaxFutureHorizon == 0 {
		return fmt.Errorf("blockmanager: max-future-horizon must be > 0")
	}
	if c.MaxMissing < 0 {
		return fmt.Errorf("blockmanager: max-missing must be >= 0")
	}
	if c.NumLeadersPerRound < 0 {
		return fmt.Errorf("blockmanager: num-leaders-per-round must be >= 0")
	}
	if len(c.LeaderTimeoutWeights) > 0 && c.NumLeadersPerRound > 0 && len(c.LeaderTimeoutWeights) != c.NumLeadersPerRound {
		return fmt.Errorf("blockmanager: leader-timeout-weights has %d entries, want %d (num-leaders-per-round)", len(c.LeaderTimeoutWeights), c.NumLeadersPerRound)
	}
	for i, w := range c.LeaderTimeoutWeights {
		if w > 10_000 {
			return fmt.Errorf("blockmanager: leader-timeout-weight[%d] = %d exceeds 10000 basis points", i, w)
		}
	}
	return nil
}

// quorumThreshold returns 2f+1 for the configured committee size, the
// number of distinct authors that must admit a block at the same round
// before that round is considered to have reached quorum.
func (c *Config) quorumThreshold() int {
	f := (c.NumAuthorities - 1) / 3
	return 2*f + 1
}

// evictionPolicy builds the eviction.Policy this config implies.
func (c *Config) evictionPolicy() eviction.Policy {
	return eviction.NewPolicy(c.ProtectedWindow, c.MaxMissing)
}

// DefaultConfig returns a Config with the teacher's convention of sane,
// explicit defaults rather than relying on Go zero values for anything the
// algorithm depends on.
func DefaultConfig(numAuthorities int) Config {
	return Config{
		NumAuthorities:     numAuthorities,
		NumLeadersPerRound: 1,
		MaxFutureHorizon:   50,
		GenesisRound:       blockref.GenesisRound,
		ProtectedWindow:    eviction.DefaultProtectedWindow,
		MaxMissing:         eviction.DefaultMaxMissing,
		LeaderTimeout:      2000,
	}
}
