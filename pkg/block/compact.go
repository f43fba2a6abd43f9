package block

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/INT-devs/intcoin/pkg/types"
)

// ErrNonCanonicalTarget is returned when a compact target encoding is not
// in its minimal, non-negative form.
var ErrNonCanonicalTarget = errors.New("target is not in canonical compact form")

// MaxTargetCompact is the loosest (easiest) difficulty this chain accepts,
// the PoW analogue of Bitcoin's genesis nBits.
const MaxTargetCompact = 0x1e0fffff

// ExpandTarget decodes a compact ("nBits"-style) 32-bit target into the
// full 256-bit threshold it represents: the low 3 bytes are a mantissa,
// the high byte an exponent giving the mantissa's byte position.
func ExpandTarget(compact uint32) *uint256.Int {
	exponent := compact >> 24
	mantissa := compact & 0x007fffff

	target := new(uint256.Int).SetUint64(uint64(mantissa))
	if exponent <= 3 {
		return target.Rsh(target, uint(8*(3-exponent)))
	}
	return target.Lsh(target, uint(8*(exponent-3)))
}

// CompactFromTarget encodes a 256-bit threshold into its minimal compact
// form, the inverse of ExpandTarget.
func CompactFromTarget(target *uint256.Int) uint32 {
	if target.IsZero() {
		return 0
	}
	b := target.Bytes()
	exponent := len(b)

	var mantissa uint32
	switch {
	case exponent <= 3:
		for _, v := range b {
			mantissa = mantissa<<8 | uint32(v)
		}
		mantissa <<= uint(8 * (3 - exponent))
	default:
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}

	// The sign bit (0x00800000) must not be set by the mantissa's own
	// magnitude; if it would be, shift one byte right and bump the
	// exponent, matching Bitcoin's canonical nBits rule.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	return uint32(exponent)<<24 | mantissa
}

// IsCanonicalCompactTarget reports whether compact is already in its
// minimal, non-negative encoding — i.e. CompactFromTarget(ExpandTarget(c))
// == c and the sign bit is clear.
func IsCanonicalCompactTarget(compact uint32) bool {
	if compact&0x00800000 != 0 {
		return false
	}
	if compact == 0 {
		return true
	}
	return CompactFromTarget(ExpandTarget(compact)) == compact
}

// hashMeetsTarget reports whether hash, interpreted as a big-endian
// 256-bit integer, is at or below the threshold compact decodes to.
func hashMeetsTarget(hash types.Hash, compact uint32) bool {
	h := new(uint256.Int).SetBytes(hash[:])
	return h.Cmp(ExpandTarget(compact)) <= 0
}

// Work returns a quantity proportional to 2**256 / (target + 1), the
// cumulative-work contribution of a block solved at the given compact
// target — used to compare chains of competing tips. Computed as
// (maxUint256 - target) / (target + 1) + 1 to avoid overflowing 256 bits.
func Work(compact uint32) *uint256.Int {
	target := ExpandTarget(compact)
	maxVal := new(uint256.Int).SetAllOne()
	denom := new(uint256.Int).AddUint64(target, 1)
	if denom.IsZero() {
		return new(uint256.Int).Set(maxVal)
	}
	numerator := new(uint256.Int).Sub(maxVal, target)
	result := new(uint256.Int).Div(numerator, denom)
	return result.AddUint64(result, 1)
}
