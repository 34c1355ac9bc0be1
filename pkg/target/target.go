// Package target implements compact-target ("bits") arithmetic: the 32-bit
// packed representation of a 256-bit proof-of-work threshold, its inverse,
// and hash-vs-target comparison.
package target

import "math/big"

// BitsToTarget decodes a 32-bit "bits" word into its 256-bit target.
// bits is interpreted as: size = top byte, mantissa = low 23 bits (bit 23
// is a sign flag, always clear here).
//
//	if size <= 3: target = mantissa >> (8 * (3 - size))
//	else:         target = mantissa << (8 * (size - 3))
func BitsToTarget(bits uint32) *big.Int {
	size := bits >> 24
	mantissa := bits & 0x007fffff

	t := big.NewInt(int64(mantissa))
	if size <= 3 {
		shift := uint(8 * (3 - size))
		return t.Rsh(t, shift)
	}
	shift := uint(8 * (size - 3))
	return t.Lsh(t, shift)
}

// TargetToBits encodes a 256-bit target into the smallest "bits" word that
// represents it, choosing size so the top 3 bytes of target fit in the
// 24-bit mantissa with bit 23 clear; if bit 23 would be set, the mantissa is
// shifted right by one byte and size is incremented to compensate.
func TargetToBits(t *big.Int) uint32 {
	if t.Sign() <= 0 {
		return 0
	}

	b := t.Bytes() // big-endian, no leading zero byte
	size := uint32(len(b))

	var mantissaBytes [3]byte
	switch {
	case size <= 3:
		// left-align into the high bytes of the mantissa, matching
		// BitsToTarget's size<=3 decode (mantissa >> 8*(3-size)).
		copy(mantissaBytes[:size], b)
	default:
		copy(mantissaBytes[:], b[:3])
	}

	mantissa := uint32(mantissaBytes[0])<<16 | uint32(mantissaBytes[1])<<8 | uint32(mantissaBytes[2])

	if mantissa&0x00800000 != 0 {
		// bit 23 set: shift mantissa right by a byte, bump size.
		mantissa >>= 8
		size++
	}

	return size<<24 | (mantissa & 0x007fffff)
}

// HashMeetsBits reports whether hash, read as a big-endian 256-bit unsigned
// integer, is at or below the target encoded by bits.
func HashMeetsBits(hash [32]byte, bits uint32) bool {
	h := new(big.Int).SetBytes(hash[:])
	return h.Cmp(BitsToTarget(bits)) <= 0
}
