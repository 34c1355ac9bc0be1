package candidate

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/cryptoprim"
	"github.com/gochain/ledgernode/pkg/mempool"
	"github.com/gochain/ledgernode/pkg/utxo"
)

type fakeChain struct{ tip *chainmodel.Block }

func (f fakeChain) Tip() *chainmodel.Block { return f.tip }
func (f fakeChain) Height() uint64 {
	if f.tip == nil {
		return 0
	}
	return f.tip.Header.Index + 1
}

func TestBuildGenesisCandidateHasSoleCoinbase(t *testing.T) {
	u := utxo.New()
	mp := mempool.New(u, config.Default())
	b := New(fakeChain{nil}, mp, u, config.Default())

	blk, err := b.Build("miner-addr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blk.Header.Index != 0 {
		t.Fatalf("expected genesis candidate at index 0, got %d", blk.Header.Index)
	}
	if len(blk.Transactions) != 1 || !blk.Transactions[0].IsCoinbase() {
		t.Fatalf("expected sole coinbase transaction")
	}
	if blk.Transactions[0].Outputs[0].Amount != config.Default().BlockSubsidy {
		t.Fatalf("expected coinbase reward to equal subsidy with no fees")
	}
}

func TestBuildIncludesMempoolTxAndAccruesFee(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	addr := cryptoprim.Address(priv.PubKey().SerializeCompressed())
	op := chainmodel.Outpoint{TxID: "parent", Index: 0}

	u := utxo.New()
	u.Put(op, &utxo.Entry{Amount: 10, Address: addr})
	cfg := config.Default()
	mp := mempool.New(u, cfg)

	pub := priv.PubKey().SerializeCompressed()
	tx := &chainmodel.Transaction{
		Inputs:  []chainmodel.Input{{Outpoint: op, PubKey: pub}},
		Outputs: []chainmodel.Output{{Address: "dst", Amount: 6}},
	}
	preimage := tx.SigningPreimage()
	sig := btcecdsa.Sign(priv, preimage[:])
	tx.Inputs[0].Signature = sig.Serialize()
	tx.ComputeID()

	if err := mp.Admit(tx, 1); err != nil {
		t.Fatalf("unexpected admit error: %v", err)
	}

	b := New(fakeChain{nil}, mp, u, cfg)
	blk, err := b.Build("miner-addr")
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if len(blk.Transactions) != 2 {
		t.Fatalf("expected coinbase + 1 spend, got %d transactions", len(blk.Transactions))
	}
	wantReward := cfg.BlockSubsidy + 4 // fee = 10 - 6
	if blk.Transactions[0].Outputs[0].Amount != wantReward {
		t.Fatalf("expected coinbase reward %d including fee, got %d", wantReward, blk.Transactions[0].Outputs[0].Amount)
	}
}
