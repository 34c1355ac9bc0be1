// Package api exposes the ingress HTTP surface (spec §6): the exact route
// table wallet CLIs, miners, and explorers consume, routed with
// gorilla/mux in the teacher's explorer-API idiom.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/logger"
	"github.com/gochain/ledgernode/pkg/nodecore"
	"github.com/gochain/ledgernode/pkg/nodeerr"
)

// Server is the ingress HTTP API.
type Server struct {
	core   *nodecore.Core
	log    *logger.Logger
	router *mux.Router
}

// New builds a Server routed exactly per the spec's table, with the
// gossip layer's WebSocket upgrade mounted alongside it.
func New(core *nodecore.Core, log *logger.Logger, gossipUpgrade http.HandlerFunc) *Server {
	s := &Server{core: core, log: log, router: mux.NewRouter()}

	s.router.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/chain", s.handleChain).Methods(http.MethodGet)
	s.router.HandleFunc("/tip", s.handleTip).Methods(http.MethodGet)
	s.router.HandleFunc("/block/candidate/{addr}", s.handleCandidate).Methods(http.MethodGet)
	s.router.HandleFunc("/block/{h}", s.handleBlockByHeight).Methods(http.MethodGet)
	s.router.HandleFunc("/mempool", s.handleMempool).Methods(http.MethodGet)
	s.router.HandleFunc("/utxos/{addr}", s.handleUTXOs).Methods(http.MethodGet)
	s.router.HandleFunc("/tx/{id}", s.handleTxByID).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions", s.handleSubmitTx).Methods(http.MethodPost)
	s.router.HandleFunc("/blocks", s.handleSubmitBlock).Methods(http.MethodPost)
	if gossipUpgrade != nil {
		s.router.HandleFunc("/peer", gossipUpgrade)
	}
	s.router.Use(loggingMiddleware(log))

	return s
}

// ServeHTTP satisfies http.Handler, so Server can be passed directly to
// http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("api: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing left to do but note it.
		_ = err
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps the spec §7 error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nodeerr.MalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, nodeerr.InvalidTransaction):
		return http.StatusBadRequest
	case errors.Is(err, nodeerr.InvalidBlock):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Config())
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Chain())
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.TipBlock())
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["h"]
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid height %q: %w", raw, nodeerr.MalformedRequest))
		return
	}
	b := s.core.BlockAt(h)
	if b == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no block at height %d", h))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Mempool())
}

type utxoEntryDTO struct {
	TxID        string `json:"txid"`
	Index       uint32 `json:"index"`
	Amount      uint64 `json:"amount"`
	BlockHeight uint64 `json:"blockHeight"`
	IsCoinbase  bool   `json:"isCoinbase"`
}

func (s *Server) handleUTXOs(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	entries := s.core.UTXOsFor(addr)
	dtos := make([]utxoEntryDTO, 0, len(entries))
	for op, e := range entries {
		dtos = append(dtos, utxoEntryDTO{TxID: op.TxID, Index: op.Index, Amount: e.Amount, BlockHeight: e.BlockHeight, IsCoinbase: e.IsCoinbase})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"utxos": dtos})
}

func (s *Server) handleTxByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, height, found := s.core.FindTx(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such transaction %s", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tx": tx, "blockHeight": height})
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var tx chainmodel.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding transaction: %w", nodeerr.MalformedRequest))
		return
	}
	id, err := s.core.SubmitTx(&tx, false)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}

func (s *Server) handleSubmitBlock(w http.ResponseWriter, r *http.Request) {
	var b chainmodel.Block
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding block: %w", nodeerr.MalformedRequest))
		return
	}
	height, err := s.core.SubmitBlock(&b, false)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "height": height})
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	blk, err := s.core.Candidate(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, blk)
}
