package truecolor

import(
	"math"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

// A ChannelFunc maps a single channel value to a new value. Most stages
// in the pipeline are ChannelFuncs; saturation enhancement is the odd one
// out, as it needs all three channels of a pixel.
type ChannelFunc func(Config, float64) float64

// Normalize rescales a raw reflectance sample by the scale factor. There
// is no clipping; negative and >1.0 values are handled by later stages.
func Normalize(cfg Config, raw float64) float64 {
	return raw / cfg.ScaleFactor()
}

// AdjustContrast applies the rational midtone contrast curve. `tx` is
// the midtone anchor, `ty` the highlight anchor, `maxC` the reflectance
// that maps to full brightness.
func AdjustContrast(x, tx, ty, maxC float64) float64 {
	c := emath.ClipUnit(x / maxC)
	return c * (c*(tx/maxC + ty - 1) - ty) / (c*(2*tx/maxC - 1) - tx/maxC)
}

func Contrast(cfg Config, x float64) float64 {
	return AdjustContrast(x, cfg.MidReflectance(), contrastHighlightAnchor, cfg.MaxReflectance())
}

// Gamma applies the offset power curve, scaled so [0,1] maps onto [0,1].
func Gamma(cfg Config, x float64) float64 {
	return (math.Pow(x + cfg.GammaOffset(), cfg.Gamma()) - cfg.GammaOffsetPow()) / cfg.GammaOffsetRange()
}

// Tone is the per-channel part of the pipeline that runs before
// saturation enhancement.
func Tone(cfg Config, x float64) float64 {
	return Gamma(cfg, Contrast(cfg, x))
}

// EnhanceSaturation pushes each channel away from the pixel's gray
// average by the saturation factor, then clips to [0,1]. This clip is the
// only thing that brings values back into range before encoding.
func EnhanceSaturation(sat, r, g, b float64) (float64, float64, float64) {
	avg := (r + g + b) / 3.0 * (1 - sat)
	return emath.ClipUnit(avg + r*sat), emath.ClipUnit(avg + g*sat), emath.ClipUnit(avg + b*sat)
}

// EncodeSRGB is the sRGB transfer function, linear light to display values.
func EncodeSRGB(cfg Config, x float64) float64 {
	return emath.GammaExpand_F64(x)
}
