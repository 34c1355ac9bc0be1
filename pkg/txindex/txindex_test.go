package txindex

import (
	"testing"

	"github.com/gochain/ledgernode/pkg/chainmodel"
)

func TestIndexBlockThenLookup(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error opening index: %v", err)
	}
	defer idx.Close()

	tx := chainmodel.Transaction{Coinbase: true, Outputs: []chainmodel.Output{{Address: "a", Amount: 1}}}
	tx.ComputeID()
	b := &chainmodel.Block{Header: chainmodel.Header{Index: 7}, Transactions: []chainmodel.Transaction{tx}}

	if err := idx.IndexBlock(b); err != nil {
		t.Fatalf("unexpected error indexing block: %v", err)
	}

	height, found, err := idx.Lookup(tx.ID)
	if err != nil {
		t.Fatalf("unexpected error looking up tx: %v", err)
	}
	if !found {
		t.Fatalf("expected tx to be found")
	}
	if height != 7 {
		t.Fatalf("expected height 7, got %d", height)
	}
}

func TestLookupMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error opening index: %v", err)
	}
	defer idx.Close()

	_, found, err := idx.Lookup("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestRebuildReindexesAllBlocks(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error opening index: %v", err)
	}
	defer idx.Close()

	var blocks []*chainmodel.Block
	for h := uint64(0); h < 3; h++ {
		tx := chainmodel.Transaction{Coinbase: true, Outputs: []chainmodel.Output{{Address: "a", Amount: 1}}}
		tx.ComputeID()
		blocks = append(blocks, &chainmodel.Block{Header: chainmodel.Header{Index: h}, Transactions: []chainmodel.Transaction{tx}})
	}

	if err := Rebuild(idx, blocks); err != nil {
		t.Fatalf("unexpected error rebuilding: %v", err)
	}

	for _, b := range blocks {
		height, found, err := idx.Lookup(b.Transactions[0].ID)
		if err != nil || !found {
			t.Fatalf("expected tx at height %d to be found, err=%v found=%v", b.Header.Index, err, found)
		}
		if height != b.Header.Index {
			t.Fatalf("expected height %d, got %d", b.Header.Index, height)
		}
	}
}
