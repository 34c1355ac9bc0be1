// Package mempool holds validated, unconfirmed transactions: admission,
// double-spend tracking via an outpoint-reservation set, and eviction on
// block acceptance. Feerate-based prioritization and eviction are out of
// scope (spec.md §1 Non-goals); transactions are kept and offered to the
// candidate assembler in first-admitted order.
package mempool

import (
	"fmt"
	"sync"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/nodeerr"
	"github.com/gochain/ledgernode/pkg/utxo"
	"github.com/gochain/ledgernode/pkg/validate"
)

// Mempool is the process-wide pool of pending transactions.
type Mempool struct {
	mu       sync.RWMutex
	byID     map[string]*chainmodel.Transaction
	order    []string // insertion order, for TakeForBlock
	reserved map[chainmodel.Outpoint]string
	utxo     *utxo.Set
	cfg      *config.Config
}

// New creates an empty mempool bound to the live UTXO set it validates
// against.
func New(u *utxo.Set, cfg *config.Config) *Mempool {
	return &Mempool{
		byID:     make(map[string]*chainmodel.Transaction),
		reserved: make(map[chainmodel.Outpoint]string),
		utxo:     u,
		cfg:      cfg,
	}
}

// Admit validates tx and inserts it into the pool. A transaction already
// present by id is an idempotent success (spec §4.5, §7). Admitting a
// transaction that spends an outpoint already reserved by another mempool
// transaction is rejected as a double spend.
func (m *Mempool) Admit(tx *chainmodel.Transaction, currentHeight uint64) error {
	if tx.ID == "" {
		tx.ComputeID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[tx.ID]; exists {
		return nil
	}

	for _, in := range tx.Inputs {
		if holder, reserved := m.reserved[in.Outpoint]; reserved && holder != tx.ID {
			return fmt.Errorf("mempool double spend of %s: %w", in.Outpoint, nodeerr.InvalidTransaction)
		}
	}

	if _, err := validate.ValidateTx(tx, validate.LiveLookup(m.utxo), currentHeight, m.cfg); err != nil {
		return err
	}

	m.byID[tx.ID] = tx
	m.order = append(m.order, tx.ID)
	for _, in := range tx.Inputs {
		m.reserved[in.Outpoint] = tx.ID
	}
	return nil
}

// Get returns a pending transaction by id, or nil.
func (m *Mempool) Get(id string) *chainmodel.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// All returns every pending transaction, in insertion order.
func (m *Mempool) All() []*chainmodel.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*chainmodel.Transaction, 0, len(m.order))
	for _, id := range m.order {
		if tx, ok := m.byID[id]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// Len reports how many transactions are pending.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// IsReserved reports whether some mempool transaction already spends op.
func (m *Mempool) IsReserved(op chainmodel.Outpoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reserved[op]
	return ok
}

// RemoveMined drops the given transaction ids (now confirmed in an
// accepted block) and releases the outpoints they reserved.
func (m *Mempool) RemoveMined(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ids)
}

func (m *Mempool) removeLocked(ids []string) {
	toRemove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		toRemove[id] = struct{}{}
	}
	for id := range toRemove {
		tx, ok := m.byID[id]
		if !ok {
			continue
		}
		delete(m.byID, id)
		for _, in := range tx.Inputs {
			if m.reserved[in.Outpoint] == id {
				delete(m.reserved, in.Outpoint)
			}
		}
	}
	if len(toRemove) == 0 {
		return
	}
	kept := m.order[:0:0]
	for _, id := range m.order {
		if _, removed := toRemove[id]; !removed {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

// TakeForBlock returns up to maxCount pending transactions in insertion
// order, for the candidate assembler (spec §4.7). It does not remove them;
// removal happens only once the block they end up in is accepted.
func (m *Mempool) TakeForBlock(maxCount int) []*chainmodel.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.order)
	if maxCount < n {
		n = maxCount
	}
	out := make([]*chainmodel.Transaction, 0, n)
	for i := 0; i < n; i++ {
		if tx, ok := m.byID[m.order[i]]; ok {
			out = append(out, tx)
		}
	}
	return out
}
