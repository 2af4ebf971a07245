package scale

import "math"

// Equal compares scale and timing fields plus the effective scale by raw
// float bits, so +0 and -0 differ and NaN equals NaN of the same payload.
// The sync flag, type and modifier set are not compared directly.
func (d *Data) Equal(other *Data) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	return sameBits(d.scale, other.scale) &&
		sameBits(d.prevScale, other.prevScale) &&
		sameBits(d.fromScale, other.fromScale) &&
		sameBits(d.toScale, other.toScale) &&
		d.scaleTicks == other.scaleTicks &&
		d.totalTicks == other.totalTicks &&
		sameBits(d.Scale(), other.Scale())
}

func sameBits(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}
