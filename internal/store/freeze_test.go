package store

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/freezer"
	"github.com/klingon-tech/cellnode/pkg/types"
)

func TestFreezeBlock_FallsBackToArchiveAfterEviction(t *testing.T) {
	s := newTestStore()
	arc, err := freezer.Open(t.TempDir(), freezer.DefaultMaxFileSize)
	if err != nil {
		t.Fatalf("freezer.Open: %v", err)
	}
	defer arc.Close()
	s.SetArchive(arc)

	blk := genesisBlock()
	hash := blk.Header.Hash()
	if err := s.InsertBlock(blk); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}

	if err := s.FreezeBlock(hash); err != nil {
		t.Fatalf("FreezeBlock: %v", err)
	}

	if has, _ := s.db.Has(bodyKey(hash)); has {
		t.Fatal("FreezeBlock left the hot body entry in place")
	}

	got, err := s.GetBlock(hash)
	if err != nil {
		t.Fatalf("GetBlock after freeze: %v", err)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Outputs[0].Capacity != 5000 {
		t.Fatalf("archived body mismatch: %+v", got.Transactions)
	}
	if got.Header.Hash() != hash {
		t.Fatalf("header hash mismatch after freeze round trip")
	}

	// The header itself must still come straight from the hot store.
	if _, err := s.GetHeader(hash); err != nil {
		t.Fatalf("GetHeader after freeze: %v", err)
	}
}

func TestFreezeBlock_IsIdempotent(t *testing.T) {
	s := newTestStore()
	arc, err := freezer.Open(t.TempDir(), freezer.DefaultMaxFileSize)
	if err != nil {
		t.Fatalf("freezer.Open: %v", err)
	}
	defer arc.Close()
	s.SetArchive(arc)

	blk := genesisBlock()
	hash := blk.Header.Hash()
	if err := s.InsertBlock(blk); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	if err := s.FreezeBlock(hash); err != nil {
		t.Fatalf("first FreezeBlock: %v", err)
	}
	if err := s.FreezeBlock(hash); err != nil {
		t.Fatalf("second FreezeBlock: %v", err)
	}

	got, err := s.GetBlock(hash)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("expected 1 transaction after repeated freeze, got %d", len(got.Transactions))
	}
}

func TestGetBody_WithoutArchiveReturnsNotFound(t *testing.T) {
	s := newTestStore()
	if _, err := s.GetBody(types.Hash256{0x01}); err == nil {
		t.Fatal("expected error for a block never inserted and no archive configured")
	}
}
