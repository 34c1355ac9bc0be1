package retarget

import (
	"math/big"
	"testing"

	"github.com/gochain/ledgernode/pkg/target"
)

func TestNextBitsUnchangedWhenOnSchedule(t *testing.T) {
	oldBits := uint32(0x1d00ffff)
	got := NextBits(oldBits, 2016*10, 2016*10)
	if got != oldBits {
		t.Fatalf("expected bits unchanged when actual==expected, got %x want %x", got, oldBits)
	}
}

func TestNextBitsClampsRatioHigh(t *testing.T) {
	oldBits := uint32(0x1d00ffff)
	oldTarget := target.BitsToTarget(oldBits)

	// Blocks arrived far faster than expected (actual << expected): uncapped
	// ratio would shrink the target toward zero, clamp caps the shrink at
	// 1/4 the old target.
	fast := NextBits(oldBits, 10, 1000)
	fastTarget := target.BitsToTarget(fast)
	minTarget := new(big.Int).Div(oldTarget, big.NewInt(4))
	if fastTarget.Cmp(minTarget) < 0 {
		t.Fatalf("expected target clamped to at least old target/4, got %s want >= %s", fastTarget, minTarget)
	}

	// Blocks arrived far slower than expected (actual >> expected): clamp
	// caps growth at 4x the old target.
	slow := NextBits(oldBits, 1000, 10)
	slowTarget := target.BitsToTarget(slow)
	maxTarget := new(big.Int).Mul(oldTarget, big.NewInt(4))
	if slowTarget.Cmp(maxTarget) > 0 {
		t.Fatalf("expected target clamped to at most 4x old target, got %s want <= %s", slowTarget, maxTarget)
	}
}

func TestNextBitsWorkedExampleShrinksOnFastBlocks(t *testing.T) {
	// spec §8.5: actual=5s, expected=100s -> ratio clamped to 4 -> new
	// target = old target / 4 (fast blocks shrink the target).
	oldBits := uint32(0x1d00ffff)
	oldTarget := target.BitsToTarget(oldBits)
	want := new(big.Int).Div(oldTarget, big.NewInt(4))

	got := target.BitsToTarget(NextBits(oldBits, 5, 100))
	if got.Cmp(want) != 0 {
		t.Fatalf("expected new target == old/4 per spec worked example, got %s want %s", got, want)
	}
}

func TestNextBitsNeverBelowOne(t *testing.T) {
	got := NextBits(1, 1000, 1) // bits=1 decodes to target 0, so even a 4x scale stays below 1
	gotTarget := target.BitsToTarget(got)
	if gotTarget.Sign() < 1 {
		t.Fatalf("expected target floored at 1, got %s", gotTarget.String())
	}
}
