// Package chainmodel defines the wire/data types shared by every core
// component: outpoints, outputs, inputs, transactions, blocks, their
// canonical preimages, and the subsidy schedule.
package chainmodel

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gochain/ledgernode/pkg/cryptoprim"
)

// Outpoint identifies one previous transaction output.
type Outpoint struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
}

// String renders the outpoint as the "txid:index" key used throughout the
// UTXO set and the mempool's reservation set.
func (o Outpoint) String() string {
	return o.TxID + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// Output pays amount to address.
type Output struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Input spends an Outpoint, proving ownership with a public key and a
// signature over the transaction's signing preimage.
type Input struct {
	Outpoint  Outpoint `json:"outpoint"`
	PubKey    []byte   `json:"pubKey"`
	Signature []byte   `json:"signature"`
}

// Transaction is either a coinbase (no inputs) or a spend (one or more
// inputs). ID is deterministic and excludes signatures; see ComputeID.
type Transaction struct {
	ID       string   `json:"id"`
	Coinbase bool     `json:"coinbase"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
}

// IsCoinbase reports whether tx has no inputs and is marked as coinbase.
func (tx *Transaction) IsCoinbase() bool {
	return tx.Coinbase && len(tx.Inputs) == 0
}

type txIDInput struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
	PubKey string `json:"pubKey"`
}

type txIDOutput struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type txIDPreimage struct {
	Inputs  []txIDInput  `json:"inputs"`
	Outputs []txIDOutput `json:"outputs"`
}

// idPreimage builds the canonicalization used for the transaction id: for
// each input, only (txid, index, pubKey); for each output, (address,
// amount). Signatures are excluded so the id is stable across re-signing.
func (tx *Transaction) idPreimage() []byte {
	p := txIDPreimage{
		Inputs:  make([]txIDInput, len(tx.Inputs)),
		Outputs: make([]txIDOutput, len(tx.Outputs)),
	}
	for i, in := range tx.Inputs {
		p.Inputs[i] = txIDInput{TxID: in.Outpoint.TxID, Index: in.Outpoint.Index, PubKey: hexEncode(in.PubKey)}
	}
	for i, out := range tx.Outputs {
		p.Outputs[i] = txIDOutput{Address: out.Address, Amount: out.Amount}
	}
	data, err := json.Marshal(p)
	if err != nil {
		// json.Marshal only fails on unsupported types; none appear here.
		panic(fmt.Sprintf("chainmodel: marshal id preimage: %v", err))
	}
	return data
}

type signingInput struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
}

type signingPreimage struct {
	Inputs  []signingInput `json:"inputs"`
	Outputs []txIDOutput   `json:"outputs"`
}

// SigningPreimage returns the sighash-ALL preimage every input signs: SHA-256
// over canonical JSON of {inputs:[{txid,index}], outputs:[{address,amount}]}.
func (tx *Transaction) SigningPreimage() [32]byte {
	p := signingPreimage{
		Inputs:  make([]signingInput, len(tx.Inputs)),
		Outputs: make([]txIDOutput, len(tx.Outputs)),
	}
	for i, in := range tx.Inputs {
		p.Inputs[i] = signingInput{TxID: in.Outpoint.TxID, Index: in.Outpoint.Index}
	}
	for i, out := range tx.Outputs {
		p.Outputs[i] = txIDOutput{Address: out.Address, Amount: out.Amount}
	}
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("chainmodel: marshal signing preimage: %v", err))
	}
	return cryptoprim.SHA256(data)
}

// ComputeID computes and sets tx.ID, returning it.
func (tx *Transaction) ComputeID() string {
	sum := cryptoprim.SHA256(tx.idPreimage())
	tx.ID = hexEncode(sum[:])
	return tx.ID
}

// Header is a block's fixed-size metadata.
type Header struct {
	Index        uint64 `json:"index"`
	PreviousHash string `json:"previousHash"`
	Timestamp    int64  `json:"timestamp"` // milliseconds since epoch
	MerkleRoot   string `json:"merkleRoot"`
	Nonce        uint64 `json:"nonce"`
	Bits         uint32 `json:"bits"`
}

// Block is a Header plus an ordered transaction list, conventionally with
// the coinbase at position 0.
type Block struct {
	Header       Header        `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// HeaderHash is SHA-256 over the pipe-delimited concatenation
// index|previousHash|timestamp|merkleRoot|nonce|bits.
func (b *Block) HeaderHash() [32]byte {
	preimage := fmt.Sprintf("%d|%s|%d|%s|%d|%d",
		b.Header.Index, b.Header.PreviousHash, b.Header.Timestamp,
		b.Header.MerkleRoot, b.Header.Nonce, b.Header.Bits)
	return cryptoprim.SHA256([]byte(preimage))
}

// HeaderHashHex is HeaderHash hex-encoded, the form used for previousHash
// and gossip seen-sets.
func (b *Block) HeaderHashHex() string {
	h := b.HeaderHash()
	return hexEncode(h[:])
}

// MerkleRoot computes the Merkle root of the block's transaction ids with
// odd-layer duplication: an odd layer duplicates its last element before
// pairing. The empty list hashes to sha256("").
func MerkleRoot(txIDs []string) string {
	if len(txIDs) == 0 {
		empty := cryptoprim.SHA256(nil)
		return hexEncode(empty[:])
	}

	layer := make([][]byte, len(txIDs))
	for i, id := range txIDs {
		layer[i] = []byte(id)
	}

	for len(layer) > 1 {
		if len(layer)%2 == 1 {
			layer = append(layer, layer[len(layer)-1])
		}
		next := make([][]byte, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			combined := append(append([]byte{}, layer[i]...), layer[i+1]...)
			h := cryptoprim.SHA256(combined)
			next = append(next, h[:])
		}
		layer = next
	}

	return hexEncode(layer[0])
}

// TxIDs extracts the ordered transaction id list of a block.
func TxIDs(txs []Transaction) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return ids
}

// Subsidy computes the block reward for height h given a starting subsidy
// and halving interval: floor(blockSubsidy / 2^floor(h/halvingInterval)),
// clamped at 0.
func Subsidy(h, blockSubsidy, halvingInterval uint64) uint64 {
	if halvingInterval == 0 {
		return blockSubsidy
	}
	halvings := h / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return blockSubsidy >> halvings
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}
