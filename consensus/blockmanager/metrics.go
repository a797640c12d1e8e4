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
	"sync"

	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	blocksProcessedTotal    = metrics.NewRegisteredCounter("consensus/blockmanager/blocks/processed", nil)
	blocksAdmittedTotal     = metrics.NewRegisteredCounter("consensus/blockmanager/blocks/admitted", nil)
	blocksDroppedHorizon    = metrics.NewRegisteredCounter("consensus/blockmanager/blocks/dropped/horizon", nil)
	blocksEvictedTotal      = metrics.NewRegisteredCounter("consensus/blockmanager/blocks/evicted", nil)
	blocksDroppedOnEviction = metrics.NewRegisteredCounter("consensus/blockmanager/blocks/dropped/eviction", nil)
	suspendedGauge          = metrics.NewRegisteredGauge("consensus/blockmanager/suspended", nil)
	missingGauge            = metrics.NewRegisteredGauge("consensus/blockmanager/missing", nil)
	tryAcceptLatency        = metrics.NewRegisteredTimer("consensus/blockmanager/tryaccept/latency", nil)
)

// perAuthorCounters lazily creates and caches the suspended/unsuspended
// counters for each authority, the Go equivalent of the Rust node_metrics'
// per-hostname labeled counters in block_manager.rs.
type perAuthorCounters struct {
	mu          sync.Mutex
	suspended   map[blockref.AuthorityIndex]*metrics.Counter
	unsuspended map[blockref.AuthorityIndex]*metrics.Counter
}

var authorCounters = &perAuthorCounters{
	suspended:   make(map[blockref.AuthorityIndex]*metrics.Counter),
	unsuspended: make(map[blockref.AuthorityIndex]*metrics.Counter),
}

func (p *perAuthorCounters) suspendedCounter(author blockref.AuthorityIndex) *metrics.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.suspended[author]
	if !ok {
		name := fmt.Sprintf("consensus/blockmanager/suspended/author/%d", author.Value())
		c = metrics.NewRegisteredCounter(name, nil)
		p.suspended[author] = c
	}
	return c
}

func (p *perAuthorCounters) unsuspendedCounter(author blockref.AuthorityIndex) *metrics.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.unsuspended[author]
	if !ok {
		name := fmt.Sprintf("consensus/blockmanager/unsuspended/author/%d", author.Value())
		c = metrics.NewRegisteredCounter(name, nil)
		p.unsuspended[author] = c
	}
	return c
}
