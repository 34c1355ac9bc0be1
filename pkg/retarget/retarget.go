// Package retarget implements the periodic difficulty adjustment (spec
// §4.6, Design Note §9): all scaling is done in math/big, never as a
// lossy float ratio.
package retarget

import (
	"math/big"

	"github.com/gochain/ledgernode/pkg/target"
)

// clampMinNum/clampMinDen and clampMaxNum/clampMaxDen express the ratio clamp bounds
// [0.25, 4.0] as an exact rational (1/4 .. 4/1) rather than a float.
const (
	clampMinNum, clampMinDen = 1, 4
	clampMaxNum, clampMaxDen = 4, 1
)

// NextBits computes the new "bits" word after an adjustment interval.
// The new target scales the old target by actualSec/expectedSec, clamped
// to [0.25, 4.0]: target shrinks when blocks arrived too fast (actual <
// expected) and grows when they arrived too slow (actual > expected),
// floored at 1 before re-encoding.
func NextBits(oldBits uint32, actualSec, expectedSec int64) uint32 {
	if actualSec < 1 {
		actualSec = 1
	}
	if expectedSec < 1 {
		expectedSec = 1
	}

	num := big.NewInt(actualSec)
	den := big.NewInt(expectedSec)

	// Clamp num/den to [clampMinNum/clampMinDen, clampMaxNum/clampMaxDen]
	// by cross-multiplication, staying in exact integer arithmetic.
	minNum := big.NewInt(clampMinNum)
	minDen := big.NewInt(clampMinDen)
	maxNum := big.NewInt(clampMaxNum)
	maxDen := big.NewInt(clampMaxDen)

	// num/den < minNum/minDen  <=>  num*minDen < minNum*den
	lhs := new(big.Int).Mul(num, minDen)
	rhs := new(big.Int).Mul(minNum, den)
	if lhs.Cmp(rhs) < 0 {
		num, den = minNum, minDen
	}

	// num/den > maxNum/maxDen  <=>  num*maxDen > maxNum*den
	lhs = new(big.Int).Mul(num, maxDen)
	rhs = new(big.Int).Mul(maxNum, den)
	if lhs.Cmp(rhs) > 0 {
		num, den = maxNum, maxDen
	}

	oldTarget := target.BitsToTarget(oldBits)
	newTarget := new(big.Int).Mul(oldTarget, num)
	newTarget.Div(newTarget, den)

	if newTarget.Sign() < 1 {
		newTarget = big.NewInt(1)
	}

	return target.TargetToBits(newTarget)
}
