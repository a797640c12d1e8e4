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
	"testing"

	"github.com/dagconsensus/blockmanager/consensus/block"
	"github.com/dagconsensus/blockmanager/consensus/blockref"
)

func TestMemDagStoreAcceptAndContains(t *testing.T) {
	store := NewMemDagStore()
	defer store.Close()

	b := block.NewTestBlock(1, 0, nil)
	ref := b.Reference()

	has, err := store.Contains(ref)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if has {
		t.Fatalf("expected block to be absent before Accept")
	}

	if err := store.Accept([]*block.VerifiedBlock{b}); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	has, err = store.Contains(ref)
	if err != nil {
		t.Fatalf("Contains after Accept: %v", err)
	}
	if !has {
		t.Fatalf("expected block to be present after Accept")
	}

	got, err := store.Get(ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Reference() != ref {
		t.Fatalf("Get returned wrong block: %s", got.Reference())
	}
}

func TestMemDagStoreContainsManyPreservesOrder(t *testing.T) {
	store := NewMemDagStore()
	defer store.Close()

	present := block.NewTestBlock(1, 0, nil)
	if err := store.Accept([]*block.VerifiedBlock{present}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	absent := block.NewTestBlock(1, 1, nil)

	results, err := store.ContainsMany([]blockref.BlockRef{present.Reference(), absent.Reference()})
	if err != nil {
		t.Fatalf("ContainsMany: %v", err)
	}
	if len(results) != 2 || !results[0] || results[1] {
		t.Fatalf("unexpected ContainsMany result: %v", results)
	}
}
