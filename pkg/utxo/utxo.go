// Package utxo maintains the unspent-transaction-output set: the
// authoritative record of spendable value, keyed by outpoint and
// rebuildable by replaying the chain from genesis.
package utxo

import (
	"sync"

	"github.com/gochain/ledgernode/pkg/chainmodel"
)

// Entry is one unspent output.
type Entry struct {
	Amount      uint64 `json:"amount"`
	Address     string `json:"address"`
	BlockHeight uint64 `json:"blockHeight"`
	IsCoinbase  bool   `json:"isCoinbase"`
}

// Set is the live UTXO map, guarded by a RWMutex so concurrent readers
// (API handlers) don't block each other while the single writer critical
// section (spec §5) mutates it.
type Set struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty UTXO set.
func New() *Set {
	return &Set{entries: make(map[string]*Entry)}
}

// Get returns the entry for an outpoint, or nil if absent.
func (s *Set) Get(op chainmodel.Outpoint) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[op.String()]
}

// Put inserts or overwrites an entry.
func (s *Set) Put(op chainmodel.Outpoint, e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[op.String()] = e
}

// Remove deletes an entry.
func (s *Set) Remove(op chainmodel.Outpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, op.String())
}

// Reset clears the set, used before a full rebuild.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// ForAddress returns every unspent outpoint paying address.
func (s *Set) ForAddress(address string) map[chainmodel.Outpoint]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[chainmodel.Outpoint]*Entry)
	for key, e := range s.entries {
		if e.Address != address {
			continue
		}
		out[parseOutpoint(key)] = e
	}
	return out
}

// ApplyBlock folds a block's transactions into the live set: for the
// coinbase, only outputs are added; for each spend, inputs are removed and
// outputs are added. Callers must have already validated the block — this
// method performs no validation, only the state transition.
func (s *Set) ApplyBlock(b *chainmodel.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range b.Transactions {
		for _, in := range tx.Inputs {
			delete(s.entries, in.Outpoint.String())
		}
		for i, out := range tx.Outputs {
			op := chainmodel.Outpoint{TxID: tx.ID, Index: uint32(i)}
			s.entries[op.String()] = &Entry{
				Amount:      out.Amount,
				Address:     out.Address,
				BlockHeight: b.Header.Index,
				IsCoinbase:  tx.IsCoinbase(),
			}
		}
	}
}

// Snapshot returns a copy of the live entries (each entry copied), suitable for a
// validation engine to mutate speculatively before committing (spec
// §4.4.2: "snapshot UTXO into a temporary map").
func (s *Set) Snapshot() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Entry, len(s.entries))
	for k, v := range s.entries {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Rebuild clears the set and replays blocks in height order, applying each
// in turn. Callers are expected to pass blocks already known to be valid
// (e.g. loaded from the chain store on startup).
func Rebuild(blocks []*chainmodel.Block) *Set {
	s := New()
	for _, b := range blocks {
		s.ApplyBlock(b)
	}
	return s
}

func parseOutpoint(key string) chainmodel.Outpoint {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			idx := uint32(0)
			for _, c := range key[i+1:] {
				idx = idx*10 + uint32(c-'0')
			}
			return chainmodel.Outpoint{TxID: key[:i], Index: idx}
		}
	}
	return chainmodel.Outpoint{TxID: key}
}
