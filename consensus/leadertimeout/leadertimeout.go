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

// Package leadertimeout drives the per-round leader timeout: a ticker that
// fires after a base duration, shortened as leaders for the round arrive.
package leadertimeout

import (
	"context"
	"time"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/dagconsensus/blockmanager/consensus/quorum"
	"github.com/ethereum/go-ethereum/log"
)

// basisPointsFull is 100%, expressed in basis points.
const basisPointsFull = 10_000

// Task watches a quorum.Signal and fires OnTimeout once per round, either
// after the full BaseTimeout elapses or earlier once enough of the round's
// leaders have arrived to satisfy the configured weight schedule.
type Task struct {
	signal      *quorum.Signal
	baseTimeout time.Duration
	// weights[i] is the basis-point reduction applied once the leader at
	// slot i has arrived, evaluated in slot order starting at 0 and
	// stopping at the first absent slot, mirroring the Rust
	// calculate_leader_timeout's "prefix of known leaders" rule.
	weights   []uint32
	onTimeout func(round uint64)

	updates chan quorum.Update
}

// NewTask builds a Task. weights may be nil or shorter than the committee's
// leader count; any slot beyond len(weights) contributes no reduction.
func NewTask(signal *quorum.Signal, baseTimeout time.Duration, weights []uint32, onTimeout func(round uint64)) *Task {
	return &Task{
		signal:      signal,
		baseTimeout: baseTimeout,
		weights:     weights,
		onTimeout:   onTimeout,
		updates:     make(chan quorum.Update, 16),
	}
}

// Run subscribes to the quorum signal and drives the timeout loop until ctx
// is cancelled. It is meant to be run in its own goroutine.
func (t *Task) Run(ctx context.Context) error {
	sub := t.signal.Subscribe(t.updates)
	defer sub.Unsubscribe()

	var currentRound uint64
	var leaders []*blockref.Slot
	// lastRoundStart anchors the deadline for currentRound: the timer
	// always fires at lastRoundStart + calculateLeaderTimeout(...), never
	// at "remaining time measured from now", so repeated same-round
	// updates shrink the deadline instead of repeatedly pushing it out
	// (mirrors last_quorum_time in leader_timeout.rs).
	lastRoundStart := time.Now()

	timer := time.NewTimer(t.baseTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-sub.Err():
			if err != nil {
				log.Error("leadertimeout: quorum subscription failed", "err", err)
			}
			return err

		case u := <-t.updates:
			if u.Round < currentRound {
				continue
			}
			if u.Round > currentRound {
				// A newer round's update implies the current round's
				// timeout already fired elsewhere; fast-forward and
				// re-anchor the deadline to this round's start.
				currentRound = u.Round
				leaders = nil
				lastRoundStart = time.Now()
			}
			if leadersEqual(leaders, u.Leaders) {
				// No-op update for the same leader set: reprocessing it
				// must not postpone the deadline (leader_timeout.rs
				// guards the identical case before resetting the timer).
				continue
			}
			leaders = u.Leaders
			deadline := lastRoundStart.Add(calculateLeaderTimeout(t.baseTimeout, t.weights, leaders))
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(remaining)

		case <-timer.C:
			round := currentRound
			currentRound++
			leaders = nil
			lastRoundStart = time.Now()
			timer.Reset(t.baseTimeout)
			if t.onTimeout != nil {
				t.onTimeout(round)
			}
		}
	}
}

// leadersEqual reports whether a and b name the same arrived leader in
// every slot, treating a nil slot as "not yet arrived" in both.
func leadersEqual(a, b []*blockref.Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if (a[i] == nil) != (b[i] == nil) {
			return false
		}
		if a[i] != nil && *a[i] != *b[i] {
			return false
		}
	}
	return true
}

// calculateLeaderTimeout applies the weight schedule to base, stopping at
// the first round-leader slot that has not yet arrived.
func calculateLeaderTimeout(base time.Duration, weights []uint32, leaders []*blockref.Slot) time.Duration {
	var reduceBP uint32
	for i, w := range weights {
		if i >= len(leaders) || leaders[i] == nil {
			break
		}
		reduceBP += w
	}
	if reduceBP >= basisPointsFull {
		return 0
	}
	return base * time.Duration(basisPointsFull-reduceBP) / basisPointsFull
}
