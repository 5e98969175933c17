package rasterio

import(
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"sync"

	"github.com/fogleman/gg"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// ImageSink assembles the whole output in memory, then encodes it as a
// PNG or JPEG on Close. Windows can be any shape, in any order, but each
// pixel can only be written once.
type ImageSink struct {
	sync.Mutex
	filename  string
	driver    string
	quality   int
	ledger    *raster.WriteLedger
	img       *image.RGBA
	finished  bool
}

func NewImageSink(filename, driver string, quality int, grid raster.BlockGrid) *ImageSink {
	return &ImageSink{
		filename: filename,
		driver:   driver,
		quality:  quality,
		ledger:   raster.NewWriteLedger(grid, false),
		img:      image.NewRGBA(image.Rect(0, 0, grid.Width, grid.Height)),
	}
}

func (is *ImageSink)WriteWindow(ctx context.Context, w raster.Window, pix []uint8) error {
	if err := raster.CheckTileBuffer(w, pix); err != nil {
		return raster.NewSinkError("write", is.filename, &w, err)
	}
	tile := raster.TileImage(w, pix)

	is.Lock()
	defer is.Unlock()
	if is.finished {
		return raster.NewSinkError("write", is.filename, &w, fmt.Errorf("sink is finished"))
	}
	if err := is.ledger.Mark(w); err != nil {
		return raster.NewSinkError("write", is.filename, &w, err)
	}
	draw.Draw(is.img, w.Rect(), tile, w.Rect().Min, draw.Src)
	return nil
}

func (is *ImageSink)Close() error {
	is.Lock()
	defer is.Unlock()
	if is.finished {
		return raster.NewSinkError("close", is.filename, nil, fmt.Errorf("sink is finished"))
	}
	is.finished = true

	b := is.img.Bounds()
	if err := raster.ValidatePartition(b.Dx(), b.Dy(), is.ledger.Windows()); err != nil {
		return raster.NewSinkError("close", is.filename, nil, err)
	}

	err := writeViaTemp(is.filename, func(tmpname string) error {
		if is.driver == raster.DriverPNG {
			return gg.SavePNG(tmpname, is.img)
		}

		f, err := os.Create(tmpname)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(f, is.img, &jpeg.Options{Quality: is.quality}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return raster.NewSinkError("close", is.filename, nil, err)
	}
	return nil
}

func (is *ImageSink)Abort() error {
	is.Lock()
	defer is.Unlock()
	is.finished = true
	is.img = nil
	return nil
}
