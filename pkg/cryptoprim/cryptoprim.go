// Package cryptoprim holds the hashing, address-derivation, and signature
// primitives the rest of the node is built on: SHA-256, RIPEMD-160,
// secp256k1 ECDSA verification over a fixed 32-byte preimage.
package cryptoprim

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// RIPEMD160 returns the RIPEMD-160 digest of data.
func RIPEMD160(data []byte) [20]byte {
	h := ripemd160.New()
	h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Address derives the 40-character lowercase-hex node address for a
// compressed secp256k1 public key: hex(RIPEMD160(SHA256(pubKey))).
func Address(pubKey []byte) string {
	sh := SHA256(pubKey)
	rh := RIPEMD160(sh[:])
	return hex.EncodeToString(rh[:])
}

// Verify reports whether sig (DER-encoded ECDSA) is a valid signature by
// pubKey (compressed secp256k1, 33 bytes) over msg (the 32-byte signing
// preimage). Any decoding failure is treated as an invalid signature, never
// as an error or a panic.
func Verify(pubKey, msg, sig []byte) bool {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsed, err := btcecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(msg, key)
}
