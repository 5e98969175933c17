package truecolor

import(
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// LinearTile exposes a Triple that has been through Processor.Linear as
// an HDR image, so it can be written out and inspected in HDR tools
// before the display encoding squashes it. Implements hdr.Image.
type LinearTile struct {
	Triple
}

// Implement image.Image
func (lt LinearTile)ColorModel() color.Model       { return hdrcolor.RGBModel }
func (lt LinearTile)Bounds() image.Rectangle       { return image.Rect(0, 0, lt.Dx(), lt.Dy()) }
func (lt LinearTile)At(x, y int) color.Color       { return lt.HDRAt(x, y) }

// Implement hdr.Image
func (lt LinearTile)Size() int                     { return lt.Dx() * lt.Dy() }
func (lt LinearTile)HDRAt(x, y int) hdrcolor.Color {
	return hdrcolor.RGB{R: lt.R.Get(x, y), G: lt.G.Get(x, y), B: lt.B.Get(x, y)}
}

// WriteToHDR outputs a Radiance RGBE file.
func (lt LinearTile)WriteToHDR(filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("LinearTile.WriteToHDR, open+w '%s': %w", filename, err)
	}

	if err := rgbe.Encode(writer, lt); err != nil {
		writer.Close()
		return fmt.Errorf("LinearTile.WriteToHDR, encoding RGBE file: %w", err)
	}
	return writer.Close()
}
