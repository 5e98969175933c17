package rasterio

import(
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/s2-truecolor/pkg/gtiff"
	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// SourceOptions control how a source is opened.
type SourceOptions struct {
	BlockSize  int  // 0 means the source's native blocks
	Fetcher    Fetcher
}

// OpenSource resolves the locator and opens the raster. Only TIFFs can be
// read. Remote rasters are read with range requests, block by block.
func OpenSource(ctx context.Context, locator string, opts SourceOptions) (raster.Source, error) {
	l, err := ParseLocator(locator)
	if err != nil {
		return nil, raster.NewSourceError("open", locator, 0, nil, err)
	}

	switch l.Ext() {
	case ".tif", ".tiff", "":
	default:
		return nil, raster.NewSourceError("open", locator, 0, nil, fmt.Errorf("don't know how to read '%s' files", l.Ext()))
	}

	gopts := gtiff.SourceOptions{BlockSize: opts.BlockSize}
	if !l.Remote {
		src, err := gtiff.OpenFile(l.Path, gopts)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	if opts.Fetcher.Client == nil {
		opts.Fetcher = DefaultFetcher()
	}
	log.WithFields(log.Fields{"locator": l.Path}).Debug("opening remote source")
	rf, err := opts.Fetcher.Open(ctx, l)
	if err != nil {
		return nil, raster.NewSourceError("open", locator, 0, nil, err)
	}
	src, err := gtiff.Open(l.Path, rf, rf.Size(), rf, gopts)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// CreateSink makes the sink the output profile asks for, for a raster the
// shape of the source. Containers that can hold georeferencing get the
// source's. Only local outputs are supported.
func CreateSink(locator string, op raster.OutputProfile, src raster.Profile) (raster.Sink, error) {
	width, height := src.Width, src.Height
	op = op.Normalize()
	if err := op.Validate(); err != nil {
		return nil, raster.NewSinkError("create", locator, nil, err)
	}

	l, err := ParseLocator(locator)
	if err != nil {
		return nil, raster.NewSinkError("create", locator, nil, err)
	} else if l.Remote {
		return nil, raster.NewSinkError("create", locator, nil, fmt.Errorf("can't write to a remote locator"))
	}

	switch op.Driver {
	case raster.DriverCOG:
		// No internal overviews; the tiles are laid out like any tiled GTiff
		log.Debugf("COG output %s is written as a tiled GTiff", l.Path)
		fallthrough
	case raster.DriverGTiff:
		so := gtiff.SinkOptionsFromProfile(op)
		so.Georef = src.Georef
		sink, err := gtiff.Create(l.Path, width, height, so)
		if err != nil {
			return nil, err
		}
		return sink, nil

	case raster.DriverPNG, raster.DriverJPEG:
		if !src.Georef.IsZero() {
			log.Warnf("%s can't hold georeferencing, dropping %s", op.Driver, src.Georef)
		}
		grid, err := raster.NewBlockGrid(width, height, op.BlockSize, op.BlockSize)
		if err != nil {
			return nil, raster.NewSinkError("create", locator, nil, err)
		}
		return NewImageSink(l.Path, op.Driver, op.Quality, grid), nil
	}

	return nil, raster.NewSinkError("create", locator, nil, fmt.Errorf("no driver '%s'", op.Driver))
}
