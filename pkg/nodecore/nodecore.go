// Package nodecore holds the single piece of shared mutable state the
// spec's concurrency model describes (§5): chain, UTXO, and mempool are one
// process-wide region, mutated only inside one critical section covering
// "validate -> mutate -> persist -> gossip". The gossip seen-sets are
// guarded separately, by gossip.Node's own lock. Neither the ingress API nor the gossip layer touch chain,
// UTXO, or mempool directly — they only ever call through Core.
package nodecore

import (
	"fmt"
	"sync"
	"time"

	"github.com/gochain/ledgernode/pkg/candidate"
	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/chainstore"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/gossip"
	"github.com/gochain/ledgernode/pkg/logger"
	"github.com/gochain/ledgernode/pkg/mempool"
	"github.com/gochain/ledgernode/pkg/retarget"
	"github.com/gochain/ledgernode/pkg/txindex"
	"github.com/gochain/ledgernode/pkg/validate"
)

// Broadcaster is the subset of the gossip layer Core needs: fan-out for
// newly admitted transactions and newly accepted blocks. It is set after
// construction since gossip itself depends on Core's handlers, and the
// two are built in the same wiring step by cmd/ledgernode.
type Broadcaster interface {
	BroadcastTx(tx *chainmodel.Transaction)
	BroadcastBlock(b *chainmodel.Block)
}

// Core is the single-writer facade over chain, UTXO, and mempool state.
type Core struct {
	mu         sync.Mutex
	store      *chainstore.Store
	mempool    *mempool.Mempool
	builder    *candidate.Builder
	txidx      *txindex.Index
	cfg        *config.Config
	configPath string
	broadcast  Broadcaster
	log        *logger.Logger
}

// New wires a Core from already-open components. configPath may be empty,
// in which case a retarget adjustment still updates cfg in memory but is
// not persisted (used by tests that have no on-disk config). SetBroadcaster
// must be called once the gossip layer exists.
func New(store *chainstore.Store, mp *mempool.Mempool, builder *candidate.Builder, txidx *txindex.Index, cfg *config.Config, configPath string, log *logger.Logger) *Core {
	return &Core{store: store, mempool: mp, builder: builder, txidx: txidx, cfg: cfg, configPath: configPath, log: log}
}

// SetBroadcaster wires the gossip fan-out used after a local admission or
// acceptance.
func (c *Core) SetBroadcaster(b Broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast = b
}

// SubmitTx validates and admits tx, persisting it only into the mempool
// (transactions are persisted to disk as part of the block that confirms
// them, not independently). On success it gossips the transaction to
// peers, unless fromGossip is set (the transaction arrived from a peer and
// gossip.Node already handles rebroadcast via its seen-set).
func (c *Core) SubmitTx(tx *chainmodel.Transaction, fromGossip bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.ID == "" {
		tx.ComputeID()
	}
	// Admit checks coinbase maturity as currentHeight-confirmingHeight, so
	// currentHeight must be the tip's own height (spec §8.4), not the chain
	// length (store.Height(), one past the tip) — passing the chain length
	// would let a spend one block short of maturity in.
	tipHeight := uint64(0)
	if h := c.store.Height(); h > 0 {
		tipHeight = h - 1
	}
	if err := c.mempool.Admit(tx, tipHeight); err != nil {
		return "", err
	}
	if !fromGossip && c.broadcast != nil {
		c.broadcast.BroadcastTx(tx)
	}
	return tx.ID, nil
}

// SubmitBlock validates, persists, and applies b, removing its
// transactions from the mempool and gossiping it onward unless it arrived
// from gossip itself.
func (c *Core) SubmitBlock(b *chainmodel.Block, fromGossip bool) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := validate.ValidateBlock(b, c.store, c.store.UTXO(), c.cfg, time.Now()); err != nil {
		return 0, err
	}

	if err := c.store.Append(b); err != nil {
		return 0, fmt.Errorf("persisting block at height %d: %w", b.Header.Index, err)
	}

	c.maybeRetarget(b)

	ids := make([]string, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		ids = append(ids, tx.ID)
	}
	c.mempool.RemoveMined(ids)

	if c.txidx != nil {
		if err := c.txidx.IndexBlock(b); err != nil {
			c.log.Warn("nodecore: tx index update failed for block %d: %v", b.Header.Index, err)
		}
	}

	if !fromGossip && c.broadcast != nil {
		c.broadcast.BroadcastBlock(b)
	}
	return b.Header.Index, nil
}

// maybeRetarget runs the difficulty adjustment after a block lands on an
// interval boundary (spec §4.6: "runs after a block is accepted"),
// updating cfg.Bits in place and persisting it atomically with the block
// that triggered it. Must be called with mu held.
func (c *Core) maybeRetarget(tip *chainmodel.Block) {
	height := tip.Header.Index
	if height == 0 || height%c.cfg.AdjustEvery != 0 {
		return
	}
	prior := c.store.BlockAt(height - c.cfg.AdjustEvery)
	if prior == nil {
		return
	}

	actualSec := (tip.Header.Timestamp - prior.Header.Timestamp) / 1000
	expectedSec := int64(c.cfg.AdjustEvery * c.cfg.TargetBlockTimeSec)
	newBits := retarget.NextBits(c.cfg.Bits, actualSec, expectedSec)
	if newBits == c.cfg.Bits {
		return
	}
	c.cfg.Bits = newBits
	c.log.Info("nodecore: retargeted bits to 0x%08x at height %d", newBits, height)

	if c.configPath != "" {
		if err := config.Save(c.configPath, c.cfg); err != nil {
			c.log.Warn("nodecore: failed to persist retargeted bits: %v", err)
		}
	}
}

// Tip returns the current chain height: the number of stored blocks, 0 for
// an empty chain.
func (c *Core) Tip() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Height()
}

// TipBlock returns the current chain tip block, or nil.
func (c *Core) TipBlock() *chainmodel.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Tip()
}

// Chain returns every stored block, height-ordered.
func (c *Core) Chain() []*chainmodel.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Blocks()
}

// BlockAt returns the block at height h, or nil.
func (c *Core) BlockAt(h uint64) *chainmodel.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.BlockAt(h)
}

// Mempool returns every pending transaction, insertion-ordered.
func (c *Core) Mempool() []*chainmodel.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mempool.All()
}

// UTXOEntry is the subset of utxo.Entry exposed to API callers.
type UTXOEntry struct {
	Amount      uint64
	BlockHeight uint64
	IsCoinbase  bool
}

// UTXOsFor returns the spendable outputs owned by address.
func (c *Core) UTXOsFor(address string) map[chainmodel.Outpoint]UTXOEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.store.UTXO().ForAddress(address)
	out := make(map[chainmodel.Outpoint]UTXOEntry, len(entries))
	for op, e := range entries {
		out[op] = UTXOEntry{Amount: e.Amount, BlockHeight: e.BlockHeight, IsCoinbase: e.IsCoinbase}
	}
	return out
}

// FindTx looks up a transaction by id, first in the mempool then across
// confirmed blocks via the tx index, returning the confirming height (or
// nil if still pending).
func (c *Core) FindTx(id string) (tx *chainmodel.Transaction, height *uint64, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pending := c.mempool.Get(id); pending != nil {
		return pending, nil, true
	}

	if c.txidx == nil {
		return nil, nil, false
	}
	h, idxFound, err := c.txidx.Lookup(id)
	if err != nil || !idxFound {
		return nil, nil, false
	}
	b := c.store.BlockAt(h)
	if b == nil {
		return nil, nil, false
	}
	for i := range b.Transactions {
		if b.Transactions[i].ID == id {
			return &b.Transactions[i], &h, true
		}
	}
	return nil, nil, false
}

// Candidate builds a fresh, unsolved block template paying minerAddress.
func (c *Core) Candidate(minerAddress string) (*chainmodel.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builder.Build(minerAddress)
}

// Config returns the live chain configuration.
func (c *Core) Config() *config.Config {
	return c.cfg
}

// GossipHandlers adapts Core to the callbacks the gossip layer invokes for
// inbound peer traffic. Errors are logged and otherwise swallowed: a peer
// relaying something invalid is the peer's problem, not a reason to tear
// down the connection (spec §7, Transient/peer errors are absorbed).
func (c *Core) GossipHandlers() gossip.Handlers {
	return gossip.Handlers{
		OnTx: func(tx *chainmodel.Transaction) {
			if _, err := c.SubmitTx(tx, true); err != nil {
				c.log.Warn("nodecore: rejected gossiped tx %s: %v", tx.ID, err)
			}
		},
		OnBlock: func(b *chainmodel.Block) {
			if _, err := c.SubmitBlock(b, true); err != nil {
				c.log.Warn("nodecore: rejected gossiped block %d: %v", b.Header.Index, err)
			}
		},
		OnTip: func() uint64 { return c.Tip() },
	}
}
