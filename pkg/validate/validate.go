// Package validate implements the validation engine: stateful transaction
// and block validation per spec §4.4, including the coinbase-maturity and
// signature-verification rules the teacher's own validation left stubbed
// out.
package validate

import (
	"fmt"
	"time"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/cryptoprim"
	"github.com/gochain/ledgernode/pkg/nodeerr"
	"github.com/gochain/ledgernode/pkg/target"
	"github.com/gochain/ledgernode/pkg/utxo"
)

// EntryLookup abstracts however the caller obtains a UTXO entry for an
// outpoint: the live set for mempool admission, or a temporary in-progress
// map for intra-block validation.
type EntryLookup interface {
	Lookup(op chainmodel.Outpoint) *utxo.Entry
}

// liveLookup adapts *utxo.Set to EntryLookup.
type liveLookup struct{ set *utxo.Set }

func (l liveLookup) Lookup(op chainmodel.Outpoint) *utxo.Entry { return l.set.Get(op) }

// LiveLookup wraps a live UTXO set for use as an EntryLookup.
func LiveLookup(s *utxo.Set) EntryLookup { return liveLookup{set: s} }

// mapLookup adapts a plain map (the §4.4.2 "temporary map") to EntryLookup.
type mapLookup map[string]*utxo.Entry

func (m mapLookup) Lookup(op chainmodel.Outpoint) *utxo.Entry { return m[op.String()] }

// ValidateTx performs stateful validation of a single transaction against
// lookup at currentHeight, per spec §4.4.1. It returns the computed fee on
// success.
func ValidateTx(tx *chainmodel.Transaction, lookup EntryLookup, currentHeight uint64, cfg *config.Config) (fee uint64, err error) {
	if tx.IsCoinbase() {
		if len(tx.Inputs) != 0 {
			return 0, fmt.Errorf("coinbase must have no inputs: %w", nodeerr.InvalidTransaction)
		}
		if len(tx.Outputs) == 0 {
			return 0, fmt.Errorf("coinbase must have at least one output: %w", nodeerr.InvalidTransaction)
		}
		for _, out := range tx.Outputs {
			if out.Amount == 0 {
				return 0, fmt.Errorf("coinbase output amount must be positive: %w", nodeerr.InvalidTransaction)
			}
		}
		return 0, nil
	}

	if len(tx.Inputs) == 0 {
		return 0, fmt.Errorf("spend must have at least one input: %w", nodeerr.InvalidTransaction)
	}
	if len(tx.Outputs) == 0 {
		return 0, fmt.Errorf("spend must have at least one output: %w", nodeerr.InvalidTransaction)
	}
	for _, out := range tx.Outputs {
		if out.Amount == 0 {
			return 0, fmt.Errorf("output amount must be positive: %w", nodeerr.InvalidTransaction)
		}
	}

	seen := make(map[chainmodel.Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.Outpoint]; dup {
			return 0, fmt.Errorf("duplicate input outpoint %s: %w", in.Outpoint, nodeerr.InvalidTransaction)
		}
		seen[in.Outpoint] = struct{}{}
	}

	preimage := tx.SigningPreimage()

	var sumIn, sumOut uint64
	for _, in := range tx.Inputs {
		entry := lookup.Lookup(in.Outpoint)
		if entry == nil {
			return 0, fmt.Errorf("no such UTXO %s: %w", in.Outpoint, nodeerr.InvalidTransaction)
		}
		if entry.IsCoinbase && currentHeight-entry.BlockHeight < cfg.CoinbaseMaturity {
			return 0, fmt.Errorf("coinbase not mature: %w", nodeerr.InvalidTransaction)
		}
		addr := cryptoprim.Address(in.PubKey)
		if addr != entry.Address {
			return 0, fmt.Errorf("pubkey does not match UTXO address: %w", nodeerr.InvalidTransaction)
		}
		if !cryptoprim.Verify(in.PubKey, preimage[:], in.Signature) {
			return 0, fmt.Errorf("signature verification failed: %w", nodeerr.InvalidTransaction)
		}
		sumIn += entry.Amount
	}
	for _, out := range tx.Outputs {
		sumOut += out.Amount
	}
	if sumIn < sumOut {
		return 0, fmt.Errorf("insufficient input value: %w", nodeerr.InvalidTransaction)
	}

	return sumIn - sumOut, nil
}

// ChainTip is the minimal view of the chain ValidateBlock needs: the
// current tip (nil if the chain is empty).
type ChainTip interface {
	Tip() *chainmodel.Block
}

// ValidateBlock performs full, atomic block validation per spec §4.4.2. On
// success it returns the block's total fees and the temporary UTXO map
// reflecting the block's effect, which the caller commits by calling
// utxo.Set.ApplyBlock with the same block (the two are equivalent once
// validation has succeeded).
func ValidateBlock(b *chainmodel.Block, chain ChainTip, liveUTXO *utxo.Set, cfg *config.Config, now time.Time) (fees uint64, err error) {
	tip := chain.Tip()
	if tip == nil {
		if b.Header.Index != 0 {
			return 0, fmt.Errorf("genesis must have index 0: %w", nodeerr.InvalidBlock)
		}
	} else {
		if b.Header.Index != tip.Header.Index+1 {
			return 0, fmt.Errorf("block index %d does not extend tip %d: %w", b.Header.Index, tip.Header.Index, nodeerr.InvalidBlock)
		}
		if b.Header.PreviousHash != tip.HeaderHashHex() {
			return 0, fmt.Errorf("previousHash does not match tip: %w", nodeerr.InvalidBlock)
		}
	}

	maxFuture := now.Add(2 * time.Hour).UnixMilli()
	if b.Header.Timestamp > maxFuture {
		return 0, fmt.Errorf("timestamp too far in the future: %w", nodeerr.InvalidBlock)
	}

	wantRoot := chainmodel.MerkleRoot(chainmodel.TxIDs(b.Transactions))
	if wantRoot != b.Header.MerkleRoot {
		return 0, fmt.Errorf("merkle root mismatch: %w", nodeerr.InvalidBlock)
	}

	hash := b.HeaderHash()
	if !target.HashMeetsBits(hash, b.Header.Bits) {
		return 0, fmt.Errorf("header hash does not meet target: %w", nodeerr.InvalidBlock)
	}

	temp := mapLookup(liveUTXO.Snapshot())

	coinbaseCount := 0
	var totalFees uint64
	for _, tx := range b.Transactions {
		if tx.IsCoinbase() {
			coinbaseCount++
			if len(tx.Outputs) == 0 {
				return 0, fmt.Errorf("coinbase must have at least one output: %w", nodeerr.InvalidBlock)
			}
			for i, out := range tx.Outputs {
				// The genesis coinbase may carry a zero-amount output.
				if out.Amount == 0 && b.Header.Index != 0 {
					return 0, fmt.Errorf("coinbase output amount must be positive: %w", nodeerr.InvalidBlock)
				}
				op := chainmodel.Outpoint{TxID: tx.ID, Index: uint32(i)}
				temp[op.String()] = &utxo.Entry{Amount: out.Amount, Address: out.Address, BlockHeight: b.Header.Index, IsCoinbase: true}
			}
			continue
		}

		fee, verr := ValidateTx(&tx, temp, b.Header.Index, cfg)
		if verr != nil {
			return 0, fmt.Errorf("transaction %s: %w", tx.ID, verr)
		}
		totalFees += fee

		for _, in := range tx.Inputs {
			delete(temp, in.Outpoint.String())
		}
		for i, out := range tx.Outputs {
			op := chainmodel.Outpoint{TxID: tx.ID, Index: uint32(i)}
			temp[op.String()] = &utxo.Entry{Amount: out.Amount, Address: out.Address, BlockHeight: b.Header.Index, IsCoinbase: false}
		}
	}

	if coinbaseCount != 1 {
		return 0, fmt.Errorf("block must contain exactly one coinbase, found %d: %w", coinbaseCount, nodeerr.InvalidBlock)
	}
	if len(b.Transactions) == 0 || !b.Transactions[0].IsCoinbase() {
		return 0, fmt.Errorf("coinbase must be at position 0: %w", nodeerr.InvalidBlock)
	}

	var coinbaseOut uint64
	for _, out := range b.Transactions[0].Outputs {
		coinbaseOut += out.Amount
	}
	maxReward := chainmodel.Subsidy(b.Header.Index, cfg.BlockSubsidy, cfg.HalvingInterval) + totalFees
	if coinbaseOut > maxReward {
		return 0, fmt.Errorf("coinbase output %d exceeds subsidy+fees %d: %w", coinbaseOut, maxReward, nodeerr.InvalidBlock)
	}

	return totalFees, nil
}
