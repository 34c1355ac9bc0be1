package gossip

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/logger"
)

func newTestLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	return logger.NewLogger(cfg)
}

func TestBroadcastTxReachesConnectedPeer(t *testing.T) {
	var mu sync.Mutex
	var received *chainmodel.Transaction
	done := make(chan struct{})

	serverNode := New(Handlers{
		OnTx: func(tx *chainmodel.Transaction) {
			mu.Lock()
			received = tx
			mu.Unlock()
			close(done)
		},
	}, newTestLogger())

	srv := httptest.NewServer(http.HandlerFunc(serverNode.HandleUpgrade))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	clientNode := New(Handlers{}, newTestLogger())
	clientNode.Dial(wsURL)

	waitForPeers(t, serverNode, 1)

	tx := &chainmodel.Transaction{ID: "tx1"}
	clientNode.BroadcastTx(tx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tx to reach server node")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.ID != "tx1" {
		t.Fatalf("expected to receive tx1, got %+v", received)
	}
}

func TestSeenTxIsNotReprocessed(t *testing.T) {
	n := New(Handlers{}, newTestLogger())
	tx := &chainmodel.Transaction{ID: "dup"}

	if n.markSeenTx(tx.ID) {
		t.Fatalf("expected first mark to report unseen")
	}
	if !n.markSeenTx(tx.ID) {
		t.Fatalf("expected second mark to report already seen")
	}
}

func waitForPeers(t *testing.T, n *Node, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.PeerCount() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d peers, have %d", want, n.PeerCount())
}
