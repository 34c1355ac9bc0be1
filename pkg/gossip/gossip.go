// Package gossip implements the flood-fill peer network (spec §4.8):
// persistent full-duplex JSON-framed connections over WebSockets, a fixed
// 2-second reconnect delay, and per-node dedup sets so a transaction or
// block is forwarded to each peer at most once. It replaces the teacher's
// libp2p/DHT/pubsub stack, which this node's flat flood topology has no
// use for (no peer discovery, no routing, a small fixed peer set).
package gossip

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/logger"
)

const reconnectDelay = 2 * time.Second

// MessageType distinguishes the frames exchanged between peers.
type MessageType string

const (
	MessageTx     MessageType = "tx"
	MessageBlock  MessageType = "block"
	MessageGetTip MessageType = "get_tip"
	MessageTip    MessageType = "tip"
)

// Message is the JSON envelope every peer frame uses.
type Message struct {
	Type  MessageType             `json:"type"`
	Tx    *chainmodel.Transaction `json:"tx,omitempty"`
	Block *chainmodel.Block       `json:"block,omitempty"`
	Tip   uint64                  `json:"tip,omitempty"`
}

// Handlers are the node callbacks invoked for inbound gossip traffic. The
// node wires these to mempool admission and block acceptance; gossip
// itself holds no chain or mempool state.
type Handlers struct {
	OnTx    func(tx *chainmodel.Transaction)
	OnBlock func(b *chainmodel.Block)
	OnTip   func() uint64
}

// peer is one live or reconnecting outbound/inbound connection.
type peer struct {
	url  string // empty for inbound-only peers we don't redial
	mu   sync.Mutex
	conn *websocket.Conn
}

// Node is the gossip layer: a set of peer connections, flood rebroadcast,
// and dedup tracking.
type Node struct {
	mu       sync.RWMutex
	peers    map[*peer]struct{}
	seenTx   map[string]struct{}
	seenBlk  map[string]struct{}
	handlers Handlers
	upgrader websocket.Upgrader
	log      *logger.Logger
	closing  chan struct{}
}

// New creates a gossip Node bound to handlers.
func New(handlers Handlers, log *logger.Logger) *Node {
	return &Node{
		peers:    make(map[*peer]struct{}),
		seenTx:   make(map[string]struct{}),
		seenBlk:  make(map[string]struct{}),
		handlers: handlers,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log,
		closing:  make(chan struct{}),
	}
}

// HandleUpgrade upgrades an inbound HTTP request to a peer WebSocket
// connection and starts reading from it.
func (n *Node) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.Warn("gossip: inbound upgrade failed: %v", err)
		return
	}
	p := &peer{conn: conn}
	n.addPeer(p)
	go n.readLoop(p)
}

// Dial connects outbound to url and keeps the connection alive, redialing
// after a fixed delay on any disconnect. Redial is idempotent: calling Dial
// again for a url already being dialed has no additional effect beyond the
// existing loop.
func (n *Node) Dial(url string) {
	n.mu.Lock()
	for existing := range n.peers {
		if existing.url == url {
			n.mu.Unlock()
			return
		}
	}
	p := &peer{url: url}
	n.peers[p] = struct{}{}
	n.mu.Unlock()
	go n.dialLoop(p)
}

func (n *Node) addPeer(p *peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[p] = struct{}{}
}

func (n *Node) removePeer(p *peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, p)
}

func (n *Node) dialLoop(p *peer) {
	for {
		select {
		case <-n.closing:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(p.url, nil)
		if err != nil {
			n.log.Warn("gossip: dial %s failed: %v, retrying in %s", p.url, err, reconnectDelay)
			time.Sleep(reconnectDelay)
			continue
		}

		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()

		n.readLoop(p) // blocks until the connection drops

		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()

		select {
		case <-n.closing:
			return
		default:
			time.Sleep(reconnectDelay)
		}
	}
}

func (n *Node) readLoop(p *peer) {
	defer func() {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if p.url == "" {
			n.removePeer(p)
		}
	}()

	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			n.log.Warn("gossip: read from peer failed: %v", err)
			return
		}
		n.handle(p, msg)
	}
}

func (n *Node) handle(from *peer, msg Message) {
	switch msg.Type {
	case MessageTx:
		if msg.Tx == nil {
			return
		}
		if n.markSeenTx(msg.Tx.ID) {
			return
		}
		if n.handlers.OnTx != nil {
			n.handlers.OnTx(msg.Tx)
		}
		n.broadcastExcept(from, msg)

	case MessageBlock:
		if msg.Block == nil {
			return
		}
		hash := msg.Block.HeaderHashHex()
		if n.markSeenBlock(hash) {
			return
		}
		if n.handlers.OnBlock != nil {
			n.handlers.OnBlock(msg.Block)
		}
		n.broadcastExcept(from, msg)

	case MessageGetTip:
		if n.handlers.OnTip == nil {
			return
		}
		n.send(from, Message{Type: MessageTip, Tip: n.handlers.OnTip()})

	case MessageTip:
		// Informational only; a received tip is not acted on.
	}
}

// markSeenTx reports whether id was already seen, recording it if not.
func (n *Node) markSeenTx(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seenTx[id]; ok {
		return true
	}
	n.seenTx[id] = struct{}{}
	return false
}

func (n *Node) markSeenBlock(hash string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seenBlk[hash]; ok {
		return true
	}
	n.seenBlk[hash] = struct{}{}
	return false
}

// BroadcastTx floods tx to every peer, as if freshly received locally.
func (n *Node) BroadcastTx(tx *chainmodel.Transaction) {
	if n.markSeenTx(tx.ID) {
		return
	}
	n.broadcastExcept(nil, Message{Type: MessageTx, Tx: tx})
}

// BroadcastBlock floods b to every peer, as if freshly accepted locally.
func (n *Node) BroadcastBlock(b *chainmodel.Block) {
	if n.markSeenBlock(b.HeaderHashHex()) {
		return
	}
	n.broadcastExcept(nil, Message{Type: MessageBlock, Block: b})
}

func (n *Node) broadcastExcept(except *peer, msg Message) {
	n.mu.RLock()
	peers := make([]*peer, 0, len(n.peers))
	for p := range n.peers {
		if p != except {
			peers = append(peers, p)
		}
	}
	n.mu.RUnlock()

	for _, p := range peers {
		n.send(p, msg)
	}
}

func (n *Node) send(p *peer, msg Message) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		n.log.Warn("gossip: write to peer failed: %v", err)
	}
}

// PeerCount reports the number of currently tracked peers (connected or
// reconnecting).
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Close stops all dial loops and closes every live connection.
func (n *Node) Close() error {
	close(n.closing)
	n.mu.Lock()
	defer n.mu.Unlock()
	var firstErr error
	for p := range n.peers {
		p.mu.Lock()
		if p.conn != nil {
			if err := p.conn.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("closing peer connection: %w", err)
			}
		}
		p.mu.Unlock()
	}
	return firstErr
}
