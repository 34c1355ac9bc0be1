// Package candidate assembles unmined block templates for an external
// miner to search a nonce over (spec §4.7, §1: nonce-search happens
// outside this process). No fork choice is performed; a candidate always
// extends the current tip.
package candidate

import (
	"fmt"
	"time"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/mempool"
	"github.com/gochain/ledgernode/pkg/utxo"
	"github.com/gochain/ledgernode/pkg/validate"
)

// ChainTip is the minimal chain view Builder needs.
type ChainTip interface {
	Tip() *chainmodel.Block
	Height() uint64
}

// Builder assembles candidate blocks from the current tip and mempool.
type Builder struct {
	chain   ChainTip
	mempool *mempool.Mempool
	utxo    *utxo.Set
	cfg     *config.Config
}

// New creates a Builder bound to chain, mempool and the live UTXO set.
func New(chain ChainTip, mp *mempool.Mempool, u *utxo.Set, cfg *config.Config) *Builder {
	return &Builder{chain: chain, mempool: mp, utxo: u, cfg: cfg}
}

// Build assembles a new, unsolved candidate block paying minerAddress. The
// coinbase is placed at position 0, the Merkle root is computed over the
// full transaction set, and Bits/PreviousHash/Index are set to extend the
// current tip (or to start the chain at genesis if it is empty). Nonce is
// left at zero for the external miner to search.
//
// Each mempool transaction's fee is recomputed against the live UTXO set
// rather than trusted from admission time, since the set may have moved
// since the transaction was admitted; any transaction that no longer
// validates is silently dropped from the candidate rather than failing the
// whole build.
func (b *Builder) Build(minerAddress string) (*chainmodel.Block, error) {
	if minerAddress == "" {
		return nil, fmt.Errorf("miner address must not be empty")
	}

	tip := b.chain.Tip()
	var index uint64
	var prevHash string
	// bits always reflects the live config, not the tip's own header: the
	// retargeter (spec §4.6) updates cfg.Bits in place, and a candidate
	// built after an adjustment boundary must carry the new difficulty.
	bits := b.cfg.Bits
	if tip == nil {
		index = 0
		prevHash = "0"
	} else {
		index = tip.Header.Index + 1
		prevHash = tip.HeaderHashHex()
	}

	lookup := validate.LiveLookup(b.utxo)
	pending := b.mempool.TakeForBlock(int(b.cfg.MaxBlockTx) - 1)

	var fees uint64
	included := make([]chainmodel.Transaction, 0, len(pending))
	for _, tx := range pending {
		fee, err := validate.ValidateTx(tx, lookup, index, b.cfg)
		if err != nil {
			continue
		}
		fees += fee
		included = append(included, *tx)
	}

	reward := chainmodel.Subsidy(index, b.cfg.BlockSubsidy, b.cfg.HalvingInterval) + fees
	coinbase := chainmodel.Transaction{
		Coinbase: true,
		Outputs:  []chainmodel.Output{{Address: minerAddress, Amount: reward}},
	}
	coinbase.ComputeID()

	txs := make([]chainmodel.Transaction, 0, len(included)+1)
	txs = append(txs, coinbase)
	txs = append(txs, included...)

	blk := &chainmodel.Block{
		Header: chainmodel.Header{
			Index:        index,
			PreviousHash: prevHash,
			Timestamp:    time.Now().UnixMilli(),
			Bits:         bits,
			Nonce:        0,
		},
		Transactions: txs,
	}
	blk.Header.MerkleRoot = chainmodel.MerkleRoot(chainmodel.TxIDs(blk.Transactions))
	return blk, nil
}
