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

package dagstore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
)

// dagBlockPrefix namespaces every key written by MemDagStore, the way
// every rawdb accessor in the teacher prefixes its keys (see
// ubtOutboxEventPrefix in core/rawdb/accessors_ubt_outbox.go).
var dagBlockPrefix = []byte("dag-block-")

// decidedCacheSize bounds the in-process cache of recently-admitted blocks,
// mirroring avalanchego's decidedCache sizing in
// snow/engine/snowman/transitive.go.
const decidedCacheSize = 4096

// dagBlockKey encodes a BlockRef as a big-endian sortable key: round first so
// a prefix scan naturally walks rounds in order, then author, then digest.
func dagBlockKey(ref blockref.BlockRef) []byte {
	key := make([]byte, len(dagBlockPrefix)+8+4+common32)
	n := copy(key, dagBlockPrefix)
	binary.BigEndian.PutUint64(key[n:], ref.Round)
	n += 8
	binary.BigEndian.PutUint32(key[n:], uint32(ref.Author))
	n += 4
	copy(key[n:], ref.Digest[:])
	return key
}

const common32 = 32

// MemDagStore is a reference DagStore backed by an in-memory
// ethdb.KeyValueStore, the same storage abstraction the teacher's
// OutboxStore uses over a persistent leveldb handle
// (core/ubtemit/outbox_store.go). Swapping memorydb.New() for a disk-backed
// ethdb.Database is a one-line change for a production deployment.
type MemDagStore struct {
	mu    sync.RWMutex
	db    ethdb.KeyValueStore
	cache *lru.Cache[blockref.BlockRef, *block.VerifiedBlock]
}

// NewMemDagStore builds an empty in-memory DagStore.
func NewMemDagStore() *MemDagStore {
	return &MemDagStore{
		db:    memorydb.New(),
		cache: lru.NewCache[blockref.BlockRef, *block.VerifiedBlock](decidedCacheSize),
	}
}

// Contains reports whether ref has already been admitted.
func (s *MemDagStore) Contains(ref blockref.BlockRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.cache.Get(ref); ok {
		return true, nil
	}
	has, err := s.db.Has(dagBlockKey(ref))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return has, nil
}

// ContainsMany is the batched form of Contains.
func (s *MemDagStore) ContainsMany(refs []blockref.BlockRef) ([]bool, error) {
	out := make([]bool, len(refs))
	for i, ref := range refs {
		has, err := s.Contains(ref)
		if err != nil {
			return nil, err
		}
		out[i] = has
	}
	return out, nil
}

// Accept durably admits blocks, writing all of them in a single batch.
func (s *MemDagStore) Accept(blocks []*block.VerifiedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for _, b := range blocks {
		key := dagBlockKey(b.Reference())
		if err := batch.Put(key, b.Bytes()); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	if err := batch.Write(); err != nil {
		log.Error("dagstore: failed to flush accepted blocks batch", "count", len(blocks), "err", err)
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	for _, b := range blocks {
		s.cache.Add(b.Reference(), b)
	}
	return nil
}

// Get returns the accepted block for ref, if present.
func (s *MemDagStore) Get(ref blockref.BlockRef) (*block.VerifiedBlock, error) {
	s.mu.RLock()
	if b, ok := s.cache.Get(ref); ok {
		s.mu.RUnlock()
		return b, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.db.Get(dagBlockKey(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	b, err := block.DecodeVerifiedBlock(data)
	if err != nil {
		return nil, err
	}
	s.cache.Add(ref, b)
	return b, nil
}

// Close releases the underlying database handle.
func (s *MemDagStore) Close() error {
	return s.db.Close()
}
