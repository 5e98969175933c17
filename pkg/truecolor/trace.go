package truecolor

import(
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

// A PixelTrace records the value of a single pixel at every stage of the
// pipeline. It is for debugging; tiles never build these.
type PixelTrace struct {
	Raw         [3]int32
	Normalized  [3]float64
	Contrast    [3]float64
	Gamma       [3]float64
	Saturated   [3]float64
	Encoded     [3]float64
	Output      [3]uint8
}

// TracePixel pushes one raw RGB sample through the same stage functions
// the Processor uses.
func TracePixel(cfg Config, r, g, b int32) PixelTrace {
	pt := PixelTrace{Raw: [3]int32{r, g, b}}

	for i := 0; i < 3; i++ {
		pt.Normalized[i] = Normalize(cfg, float64(pt.Raw[i]))
		pt.Contrast[i]   = Contrast(cfg, pt.Normalized[i])
		pt.Gamma[i]      = Gamma(cfg, pt.Contrast[i])
	}

	pt.Saturated[0], pt.Saturated[1], pt.Saturated[2] =
		EnhanceSaturation(cfg.Saturation(), pt.Gamma[0], pt.Gamma[1], pt.Gamma[2])

	for i := 0; i < 3; i++ {
		pt.Encoded[i] = EncodeSRGB(cfg, pt.Saturated[i])
		pt.Output[i]  = emath.ToByte(pt.Encoded[i])
	}

	return pt
}

// Color is the traced output as a colorful.Color (sRGB encoded).
func (pt PixelTrace)Color() colorful.Color {
	return colorful.Color{R: pt.Encoded[0], G: pt.Encoded[1], B: pt.Encoded[2]}
}

func (pt PixelTrace)String() string {
	f3 := func(v [3]float64) string { return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2]) }

	str := "----- Pixel trace -----\n"
	str += fmt.Sprintf("Raw                : [%12d, %12d, %12d]\n", pt.Raw[0], pt.Raw[1], pt.Raw[2])
	str += fmt.Sprintf("Normalized         : %s\n", f3(pt.Normalized))
	str += fmt.Sprintf("Contrast           : %s\n", f3(pt.Contrast))
	str += fmt.Sprintf("Gamma              : %s\n", f3(pt.Gamma))
	str += fmt.Sprintf("Saturated          : %s\n", f3(pt.Saturated))
	str += fmt.Sprintf("Encoded (sRGB)     : %s\n", f3(pt.Encoded))
	str += fmt.Sprintf("Output(RGB24)      : [%12d, %12d, %12d]\n", pt.Output[0], pt.Output[1], pt.Output[2])

	h, c, l := pt.Color().Clamped().Hcl()
	str += fmt.Sprintf("Output             : %s, HCL(%.1f, %.3f, %.3f)\n", pt.Color().Clamped().Hex(), h, c, l)

	return str
}
