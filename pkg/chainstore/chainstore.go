// Package chainstore is the durable block store and in-memory chain tip
// tracker (spec §4.3). Each block is persisted as one canonical-JSON file
// per height; Open replays the directory in height order (not filename
// lexicographic order) to rebuild the in-memory chain and UTXO set.
package chainstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/nodeerr"
	"github.com/gochain/ledgernode/pkg/utxo"
)

const blockFileSuffix = ".json"

// Store is the append-only, height-indexed block store. It keeps every
// block in memory as well, since the chain has no pruning (spec.md
// Non-goals).
type Store struct {
	mu     sync.RWMutex
	dir    string
	blocks []*chainmodel.Block // index i holds height i
	utxo   *utxo.Set
}

// Open loads dir, replaying any persisted blocks in height order and
// rebuilding the UTXO set from them. A missing dir is created empty (an
// empty chain, genesis still to come); any other I/O or decode failure is
// reported as nodeerr.Fatal per spec §7, since a corrupt chain on disk is
// not something the node can safely run on top of.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chain store directory %s: %w", dir, nodeerr.Fatal)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading chain store directory %s: %w", dir, nodeerr.Fatal)
	}

	heights := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blockFileSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), blockFileSuffix)
		h, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		heights = append(heights, h)
	}
	sort.Ints(heights)

	s := &Store{dir: dir, utxo: utxo.New()}
	for i, h := range heights {
		if h != i {
			return nil, fmt.Errorf("chain store missing or out-of-order height %d: %w", i, nodeerr.Fatal)
		}
		b, err := s.readBlock(h)
		if err != nil {
			return nil, err
		}
		s.blocks = append(s.blocks, b)
	}
	s.utxo = utxo.Rebuild(s.blocks)

	return s, nil
}

func (s *Store) blockPath(height uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(height, 10)+blockFileSuffix)
}

func (s *Store) readBlock(height int) (*chainmodel.Block, error) {
	raw, err := os.ReadFile(s.blockPath(uint64(height)))
	if err != nil {
		return nil, fmt.Errorf("reading block at height %d: %w", height, nodeerr.Fatal)
	}
	var b chainmodel.Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding block at height %d: %w", height, nodeerr.Fatal)
	}
	return &b, nil
}

// Append persists b as the new tip and applies it to the UTXO set. The
// caller is responsible for having already validated b against the
// current tip (spec §5: validate, then mutate, then persist).
func (s *Store) Append(b *chainmodel.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding block at height %d: %w", b.Header.Index, err)
	}
	tmp := s.blockPath(b.Header.Index) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing block at height %d: %w", b.Header.Index, nodeerr.Fatal)
	}
	if err := os.Rename(tmp, s.blockPath(b.Header.Index)); err != nil {
		return fmt.Errorf("committing block at height %d: %w", b.Header.Index, nodeerr.Fatal)
	}

	s.blocks = append(s.blocks, b)
	s.utxo.ApplyBlock(b)
	return nil
}

// Tip returns the current chain tip, or nil for an empty chain.
func (s *Store) Tip() *chainmodel.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.blocks) == 0 {
		return nil
	}
	return s.blocks[len(s.blocks)-1]
}

// Height returns the current chain height (number of blocks stored).
func (s *Store) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.blocks))
}

// BlockAt returns the block at height h, or nil if out of range.
func (s *Store) BlockAt(h uint64) *chainmodel.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h >= uint64(len(s.blocks)) {
		return nil
	}
	return s.blocks[h]
}

// Blocks returns every stored block, height-ordered.
func (s *Store) Blocks() []*chainmodel.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chainmodel.Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// UTXO returns the live UTXO set maintained alongside the block store.
func (s *Store) UTXO() *utxo.Set {
	return s.utxo
}
