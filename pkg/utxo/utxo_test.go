package utxo

import (
	"testing"

	"github.com/gochain/ledgernode/pkg/chainmodel"
)

func TestApplyBlockCoinbaseOnlyAddsOutputs(t *testing.T) {
	s := New()
	tx := chainmodel.Transaction{Coinbase: true, Outputs: []chainmodel.Output{{Address: "genesis", Amount: 0}}}
	tx.ComputeID()
	b := &chainmodel.Block{Header: chainmodel.Header{Index: 0}, Transactions: []chainmodel.Transaction{tx}}

	s.ApplyBlock(b)

	op := chainmodel.Outpoint{TxID: tx.ID, Index: 0}
	e := s.Get(op)
	if e == nil {
		t.Fatalf("expected coinbase output present in UTXO set")
	}
	if !e.IsCoinbase || e.Address != "genesis" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestApplyBlockSpendRemovesInputsAddsOutputs(t *testing.T) {
	s := New()
	op := chainmodel.Outpoint{TxID: "parent", Index: 0}
	s.Put(op, &Entry{Amount: 5, Address: "A", BlockHeight: 1})

	spend := chainmodel.Transaction{
		Inputs:  []chainmodel.Input{{Outpoint: op}},
		Outputs: []chainmodel.Output{{Address: "B", Amount: 3}, {Address: "A", Amount: 2}},
	}
	spend.ComputeID()
	b := &chainmodel.Block{Header: chainmodel.Header{Index: 2}, Transactions: []chainmodel.Transaction{spend}}

	s.ApplyBlock(b)

	if s.Get(op) != nil {
		t.Fatalf("expected spent outpoint removed")
	}
	if e := s.Get(chainmodel.Outpoint{TxID: spend.ID, Index: 0}); e == nil || e.Amount != 3 {
		t.Fatalf("expected first output present with amount 3, got %+v", e)
	}
}

func TestRebuildMatchesIncrementalApply(t *testing.T) {
	gen := chainmodel.Transaction{Coinbase: true, Outputs: []chainmodel.Output{{Address: "genesis", Amount: 0}}}
	gen.ComputeID()
	b0 := &chainmodel.Block{Header: chainmodel.Header{Index: 0}, Transactions: []chainmodel.Transaction{gen}}

	incremental := New()
	incremental.ApplyBlock(b0)

	rebuilt := Rebuild([]*chainmodel.Block{b0})

	opA := chainmodel.Outpoint{TxID: gen.ID, Index: 0}
	if (incremental.Get(opA) == nil) != (rebuilt.Get(opA) == nil) {
		t.Fatalf("rebuild diverged from incremental application")
	}
}

func TestForAddressFiltersByOwner(t *testing.T) {
	s := New()
	s.Put(chainmodel.Outpoint{TxID: "t1", Index: 0}, &Entry{Amount: 1, Address: "A"})
	s.Put(chainmodel.Outpoint{TxID: "t2", Index: 0}, &Entry{Amount: 2, Address: "B"})

	forA := s.ForAddress("A")
	if len(forA) != 1 {
		t.Fatalf("expected exactly one UTXO for address A, got %d", len(forA))
	}
}
