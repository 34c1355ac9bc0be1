package cryptoprim

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

func TestAddressDeterministic(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()

	a1 := Address(pub)
	a2 := Address(pub)
	if a1 != a2 {
		t.Fatalf("address not deterministic: %s != %s", a1, a2)
	}
	if len(a1) != 40 {
		t.Fatalf("expected 40 hex chars, got %d (%s)", len(a1), a1)
	}

	sh := SHA256(pub)
	rh := RIPEMD160(sh[:])
	if Address(pub) != hexEncode(rh[:]) {
		t.Fatalf("address does not equal ripemd160(sha256(pub))")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	msg := SHA256([]byte("signing preimage"))

	sig := btcecdsa.Sign(priv, msg[:])
	der := sig.Serialize()

	pub := priv.PubKey().SerializeCompressed()
	if !Verify(pub, msg[:], der) {
		t.Fatalf("expected valid signature to verify")
	}

	other, _ := btcec.NewPrivateKey()
	if Verify(other.PubKey().SerializeCompressed(), msg[:], der) {
		t.Fatalf("expected signature to fail against wrong pubkey")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if Verify([]byte("not a pubkey"), []byte("msg"), []byte("not a sig")) {
		t.Fatalf("expected garbage input to fail verification, not panic or error")
	}
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
