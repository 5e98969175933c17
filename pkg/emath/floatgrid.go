package emath

import(
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// FindMinMaxAtPercentile returns the values at the two percentiles (in
// [0,1]) of the grid. Zeros are skipped, as they are nodata in a band.
func (g *Grid[T])FindMinMaxAtPercentile(minPrct, maxPrct float64) (float64, float64) {
	vals := []float64{}
	for _, v := range g.values {
		if v != 0 {
			vals = append(vals, float64(v))
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}

	sort.Float64s(vals)

	iMin := int(minPrct * float64(len(vals)))
	iMax := int(maxPrct * float64(len(vals)))
	if iMin < 0          { iMin = 0 }
	if iMin >= len(vals) { iMin = len(vals)-1 }
	if iMax < 0          { iMax = 0 }
	if iMax >= len(vals) { iMax = len(vals)-1 }

	return vals[iMin], vals[iMax]
}

// ToImg renders the grid as grayscale, stretched between the 1st and 99th
// percentile and gamma encoded to look normal for human vision. The title
// is drawn in the top left.
func (g *Grid[T])ToImg(title string) image.Image {
	lo, hi := g.FindMinMaxAtPercentile(0.01, 0.99)
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewRGBA64(image.Rect(0, 0, g.Dx(), g.Dy()))
	for x:=0; x<g.Dx(); x++ {
		for y:=0; y<g.Dy(); y++ {
			gray := GammaExpand_F64(ClipUnit((float64(g.Get(x,y)) - lo) / span))
			v := uint16(gray * 65535.0)
			img.Set(x, y, color.RGBA64{v, v, v, 0xFFFF})
		}
	}

	if title == "" {
		return img
	}
	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,0,1)
	dc.DrawString(title, 4, 14)
	return dc.Image()
}

// WriteImg saves ToImg as a PNG.
func (g *Grid[T])WriteImg(title, filename string) error {
	if err := gg.SavePNG(filename, g.ToImg(title)); err != nil {
		return fmt.Errorf("grid WriteImg %s: %w", filename, err)
	}
	return nil
}
