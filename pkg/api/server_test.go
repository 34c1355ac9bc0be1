package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gochain/ledgernode/pkg/candidate"
	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/chainstore"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/logger"
	"github.com/gochain/ledgernode/pkg/mempool"
	"github.com/gochain/ledgernode/pkg/nodecore"
	"github.com/gochain/ledgernode/pkg/target"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := chainstore.Open(dir)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	cfg := config.Default()
	mp := mempool.New(store.UTXO(), cfg)
	builder := candidate.New(store, mp, store.UTXO(), cfg)
	core := nodecore.New(store, mp, builder, nil, cfg, "", logger.NewLogger(logger.DefaultConfig()))
	return New(core, logger.NewLogger(logger.DefaultConfig()), nil)
}

func TestGetTipEmptyChainReturnsNull(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tip", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "null\n" {
		t.Fatalf("expected null body for empty chain, got %q", rec.Body.String())
	}
}

func TestSubmitBlockThenFetchByHeight(t *testing.T) {
	srv := newTestServer(t)

	candReq := httptest.NewRequest(http.MethodGet, "/block/candidate/miner", nil)
	candRec := httptest.NewRecorder()
	srv.ServeHTTP(candRec, candReq)
	if candRec.Code != http.StatusOK {
		t.Fatalf("expected 200 building candidate, got %d: %s", candRec.Code, candRec.Body.String())
	}

	// The candidate is unsolved; step its nonce until the header meets its
	// bits, as the external miner would, before posting it.
	var cand chainmodel.Block
	if err := json.Unmarshal(candRec.Body.Bytes(), &cand); err != nil {
		t.Fatalf("unexpected error decoding candidate: %v", err)
	}
	for !target.HashMeetsBits(cand.HeaderHash(), cand.Header.Bits) {
		cand.Header.Nonce++
	}
	solved, err := json.Marshal(&cand)
	if err != nil {
		t.Fatalf("unexpected error encoding solved block: %v", err)
	}

	submitReq := httptest.NewRequest(http.MethodPost, "/blocks", bytes.NewReader(solved))
	submitRec := httptest.NewRecorder()
	srv.ServeHTTP(submitRec, submitReq)
	if submitRec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting block, got %d: %s", submitRec.Code, submitRec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(submitRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if resp["ok"] != true {
		t.Fatalf("expected ok=true, got %v", resp)
	}

	blockReq := httptest.NewRequest(http.MethodGet, "/block/0", nil)
	blockRec := httptest.NewRecorder()
	srv.ServeHTTP(blockRec, blockReq)
	if blockRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching block 0, got %d", blockRec.Code)
	}
}

func TestGetBlockOutOfRangeReturns404(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/block/99", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
