package gtiff

import(
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/s2-truecolor/pkg/emath"
	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// SourceOptions tweak how a TIFF is presented as a raster.Source.
type SourceOptions struct {
	BlockSize    int // 0 means use the TIFF's own tiles or strips
	CacheBlocks  int // decoded blocks to keep around; 0 means 16
}

// Source is a raster.Source over a TIFF. Only the header and IFD are read
// up front; each ReadWindow fetches and decodes just the blocks the window
// touches, so a raster never has to fit in memory. Reads are safe to make
// concurrently, as long as the underlying ReaderAt is.
type Source struct {
	profile  raster.Profile
	tags     TagInfo
	blocks   *blockReader
	closer   io.Closer
	closed   atomic.Bool
}

// OpenFile opens a local TIFF.
func OpenFile(filename string, opts SourceOptions) (*Source, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, raster.NewSourceError("open", filename, 0, nil, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, raster.NewSourceError("open", filename, 0, nil, err)
	}
	return Open(filename, f, fi.Size(), f, opts)
}

// Decode builds a Source over the bytes of a TIFF file. The locator is
// only used for the profile and error messages.
func Decode(locator string, data []byte, opts SourceOptions) (*Source, error) {
	return Open(locator, bytes.NewReader(data), int64(len(data)), nil, opts)
}

// Open builds a Source over size bytes of TIFF. If closer is not nil, the
// Source closes it when it is closed (or fails to open).
func Open(locator string, ra io.ReaderAt, size int64, closer io.Closer, opts SourceOptions) (*Source, error) {
	fail := func(err error) (*Source, error) {
		if closer != nil {
			closer.Close()
		}
		return nil, raster.NewSourceError("open", locator, 0, nil, err)
	}

	ti, err := InspectReader(ra, size)
	if err != nil {
		return fail(err)
	}

	if opts.CacheBlocks == 0 {
		opts.CacheBlocks = 16
	}
	blocks, err := newBlockReader(ra, ti, opts.CacheBlocks)
	if err != nil {
		return fail(err)
	}

	bw, bh := ti.BlockSize()
	if opts.BlockSize > 0 {
		bw, bh = opts.BlockSize, opts.BlockSize
	}

	s := Source{
		profile: raster.Profile{
			Locator:       locator,
			Driver:        raster.DriverGTiff,
			Width:         ti.Width,
			Height:        ti.Height,
			Count:         ti.SamplesPerPixel,
			BitsPerSample: ti.BitsPerSample,
			BlockWidth:    bw,
			BlockHeight:   bh,
			Georef:        ti.Georef,
		},
		tags:    ti,
		blocks:  blocks,
		closer:  closer,
	}

	log.WithFields(log.Fields{"locator": locator, "size": size}).Debugf("opened %s", ti)
	return &s, nil
}

func (s *Source)Profile() raster.Profile  { return s.profile }
func (s *Source)Tags() TagInfo            { return s.tags }

func (s *Source)Blocks() raster.BlockGrid {
	return raster.BlockGrid{Width: s.profile.Width, Height: s.profile.Height, BlockWidth: s.profile.BlockWidth, BlockHeight: s.profile.BlockHeight}
}

func (s *Source)Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.blocks.Close()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// ReadWindow assembles one band of the window from the native blocks it
// overlaps. The window need not line up with them.
func (s *Source)ReadWindow(ctx context.Context, band int, w raster.Window) (emath.SampleGrid, error) {
	fail := func(err error) (emath.SampleGrid, error) {
		return emath.SampleGrid{}, raster.NewSourceError("read", s.profile.Locator, band, &w, err)
	}

	if s.closed.Load() {
		return fail(fmt.Errorf("source is closed"))
	}
	if band < 1 || band > s.profile.Count {
		return fail(fmt.Errorf("no band %d, source has %d", band, s.profile.Count))
	}
	if !w.Within(s.profile.Width, s.profile.Height) {
		return fail(fmt.Errorf("window outside %dx%d raster", s.profile.Width, s.profile.Height))
	}

	ti := s.tags
	bw, bh := ti.BlockSize()
	across, down := ti.BlocksAcross(), ti.BlocksDown()

	out := emath.NewGrid[int32](w.Width, w.Height)
	for by := w.RowOff / bh; by <= (w.RowOff + w.Height - 1) / bh; by++ {
		for bx := w.ColOff / bw; bx <= (w.ColOff + w.Width - 1) / bw; bx++ {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}

			i, sample := by*across + bx, band-1
			if ti.Planar() {
				i, sample = i + (band-1)*across*down, 0
			}
			b, err := s.blocks.Block(i)
			if err != nil {
				return fail(err)
			}

			x0, x1 := max(w.ColOff, bx*bw), min(w.ColOff+w.Width, (bx+1)*bw)
			y0, y1 := max(w.RowOff, by*bh), min(w.RowOff+w.Height, (by+1)*bh)
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					out.Set(x - w.ColOff, y - w.RowOff, b.sample(x - bx*bw, y - by*bh, sample))
				}
			}
		}
	}
	return out, nil
}
