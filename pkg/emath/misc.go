package emath

import(
	"math"

	"golang.org/x/exp/constraints"
)

// Some functions that only operate on basic types, that are useful

// The IEC 61966-2-1 constants for the sRGB transfer function.
const(
	SRGBLinearThreshold = 0.0031308
	SRGBLinearSlope     = 12.92
	SRGBScale           = 1.055
	SRGBOffset          = 0.055
	SRGBExponent        = 1.0 / 2.4
)

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// `f` is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= SRGBLinearThreshold {
		return SRGBLinearSlope * f
	}
	return SRGBScale * math.Pow(f, SRGBExponent) - SRGBOffset
}

func Clip[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo { return lo }
	if v > hi { return hi }
	return v
}

// ClipUnit clamps to [0,1]. NaN passes through; callers that quantize
// must deal with it.
func ClipUnit(v float64) float64 { return Clip(v, 0.0, 1.0) }

// ToByte quantizes a [0,1] value to a byte, rounding to nearest and
// saturating at 0 and 255. NaN maps to 0.
func ToByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(ClipUnit(v) * 255.0))
}
