package rasterio

import(
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/abworrall/s2-truecolor/pkg/emath"
	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// OverviewSink wraps another sink, and as windows go past draws a
// downsampled copy of each into a quicklook image. On Close the quicklook
// is saved as a PNG, with the window grid drawn over it.
//
// It is an EncodingSink whatever it wraps, so it never forces encoding
// onto the writer goroutine.
type OverviewSink struct {
	inner     raster.Sink
	filename  string
	grid      raster.BlockGrid
	scale     float64
	caption   string

	mu        sync.Mutex
	img       *image.RGBA
}

// NewOverviewSink makes a quicklook no bigger than maxDim on its long side.
func NewOverviewSink(inner raster.Sink, filename string, grid raster.BlockGrid, maxDim int, caption string) *OverviewSink {
	scale := 1.0
	if long := max(grid.Width, grid.Height); long > maxDim && maxDim > 0 {
		scale = float64(maxDim) / float64(long)
	}

	w := int(math.Ceil(float64(grid.Width) * scale))
	h := int(math.Ceil(float64(grid.Height) * scale))

	return &OverviewSink{
		inner:    inner,
		filename: filename,
		grid:     grid,
		scale:    scale,
		caption:  caption,
		img:      image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

func (ov *OverviewSink)Image() *image.RGBA { return ov.img }

func (ov *OverviewSink)draw(w raster.Window, pix []uint8) {
	tile := raster.TileImage(raster.Window{Width: w.Width, Height: w.Height}, pix)
	s2d := emath.Identity().Translate(float64(w.ColOff), float64(w.RowOff)).Scale(ov.scale, ov.scale)

	ov.mu.Lock()
	defer ov.mu.Unlock()
	draw.ApproxBiLinear.Transform(ov.img, s2d.F64(), tile, tile.Bounds(), draw.Src, nil)
}

// EncodeWindow draws the window into the quicklook, then lets the wrapped
// sink encode it, if it knows how to.
func (ov *OverviewSink)EncodeWindow(w raster.Window, pix []uint8) (raster.EncodedWindow, error) {
	if err := raster.CheckTileBuffer(w, pix); err != nil {
		return raster.EncodedWindow{}, raster.NewSinkError("encode", ov.filename, &w, err)
	}
	ov.draw(w, pix)

	if es, ok := ov.inner.(raster.EncodingSink); ok {
		return es.EncodeWindow(w, pix)
	}
	return raster.EncodedWindow{Window: w, Data: pix}, nil
}

func (ov *OverviewSink)WriteEncoded(ctx context.Context, ew raster.EncodedWindow) error {
	if es, ok := ov.inner.(raster.EncodingSink); ok {
		return es.WriteEncoded(ctx, ew)
	}
	return ov.inner.WriteWindow(ctx, ew.Window, ew.Data)
}

func (ov *OverviewSink)WriteWindow(ctx context.Context, w raster.Window, pix []uint8) error {
	ew, err := ov.EncodeWindow(w, pix)
	if err != nil {
		return err
	}
	return ov.WriteEncoded(ctx, ew)
}

func (ov *OverviewSink)Abort() error {
	return ov.inner.Abort()
}

// Close saves the quicklook to a temp file, then closes the wrapped sink,
// and only then renames the quicklook into place. If the quicklook can't be
// saved the wrapped sink is aborted, so there is never an output without
// its overview.
func (ov *OverviewSink)Close() error {
	tmpname := tempName(ov.filename)
	if err := ov.save(tmpname); err != nil {
		os.Remove(tmpname)
		if aerr := ov.inner.Abort(); aerr != nil {
			log.WithError(aerr).Warn("abort after failed overview")
		}
		return fmt.Errorf("overview %s: %w", ov.filename, err)
	}

	if err := ov.inner.Close(); err != nil {
		os.Remove(tmpname)
		return err
	}

	if err := os.Rename(tmpname, ov.filename); err != nil {
		os.Remove(tmpname)
		return fmt.Errorf("overview %s: %w", ov.filename, err)
	}
	return nil
}

func (ov *OverviewSink)save(filename string) error {
	ov.mu.Lock()
	defer ov.mu.Unlock()

	dc := gg.NewContextForRGBA(ov.img)
	dc.SetRGBA(1, 1, 0, 0.4)
	dc.SetLineWidth(1)
	for c := 1; c < ov.grid.Cols(); c++ {
		x := float64(c * ov.grid.BlockWidth) * ov.scale
		dc.DrawLine(x, 0, x, float64(ov.img.Bounds().Dy()))
	}
	for r := 1; r < ov.grid.Rows(); r++ {
		y := float64(r * ov.grid.BlockHeight) * ov.scale
		dc.DrawLine(0, y, float64(ov.img.Bounds().Dx()), y)
	}
	dc.Stroke()

	if ov.caption != "" {
		dc.SetRGB(1, 1, 1)
		dc.DrawString(ov.caption, 6, 16)
	}

	return dc.SavePNG(filename)
}
