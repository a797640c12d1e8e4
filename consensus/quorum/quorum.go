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

// Package quorum carries the round-quorum updates that drive the
// leader-timeout ticker. Computing quorum itself is out of scope here; this
// package only defines the update payload and the fan-out mechanism.
package quorum

import (
	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/event"
)

// Update describes the leaders known to have quorum support for a round, in
// leader-slot order. A nil entry at position i means slot i's leader has not
// yet reached quorum.
type Update struct {
	Round   uint64
	Leaders []*blockref.Slot
}

// Signal is a multi-subscriber broadcaster for quorum Updates, replacing the
// Rust side's tokio::sync::watch channel with the teacher's own
// event.Feed/event.Subscription idiom (see the eth package's use of
// event.Feed for chain-head notifications).
type Signal struct {
	feed event.Feed
}

// NewSignal builds an empty quorum Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Publish broadcasts u to every current subscriber. It never blocks longer
// than it takes to hand u to each subscriber's channel buffer.
func (s *Signal) Publish(u Update) int {
	return s.feed.Send(u)
}

// Subscribe registers ch to receive every future Update. The returned
// Subscription must be closed by the caller when no longer needed.
func (s *Signal) Subscribe(ch chan<- Update) event.Subscription {
	return s.feed.Subscribe(ch)
}
