package raster

import(
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

// MemSource is a Source over bands held in memory.
type MemSource struct {
	profile  Profile
	bands    []emath.SampleGrid
}

// NewMemSource builds a source from equal-shape bands. The blocks are
// blockSize square.
func NewMemSource(name string, blockSize int, bands ...emath.SampleGrid) (*MemSource, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("mem source %s: no bands", name)
	}
	for i := range bands {
		if !bands[0].SameShape(&bands[i]) {
			return nil, fmt.Errorf("mem source %s: band %d is %dx%d, band 1 is %dx%d", name, i+1,
				bands[i].Dx(), bands[i].Dy(), bands[0].Dx(), bands[0].Dy())
		}
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("mem source %s: block size %d", name, blockSize)
	}

	ms := MemSource{
		profile: Profile{
			Locator:       name,
			Driver:        "MEM",
			Width:         bands[0].Dx(),
			Height:        bands[0].Dy(),
			Count:         len(bands),
			BitsPerSample: 32,
			BlockWidth:    blockSize,
			BlockHeight:   blockSize,
		},
		bands: bands,
	}
	return &ms, nil
}

func (ms *MemSource)Profile() Profile  { return ms.profile }
func (ms *MemSource)Close() error      { return nil }

func (ms *MemSource)SetGeoref(g Georef) { ms.profile.Georef = g }

func (ms *MemSource)Blocks() BlockGrid {
	return BlockGrid{Width: ms.profile.Width, Height: ms.profile.Height, BlockWidth: ms.profile.BlockWidth, BlockHeight: ms.profile.BlockHeight}
}

func (ms *MemSource)ReadWindow(ctx context.Context, band int, w Window) (emath.SampleGrid, error) {
	if err := ctx.Err(); err != nil {
		return emath.SampleGrid{}, NewSourceError("read", ms.profile.Locator, band, &w, err)
	}
	return ReadBandWindow(&ms.profile, ms.bands, band, w)
}

// ReadBandWindow copies a window out of fully-loaded bands.
func ReadBandWindow(p *Profile, bands []emath.SampleGrid, band int, w Window) (emath.SampleGrid, error) {
	if band < 1 || band > len(bands) {
		return emath.SampleGrid{}, NewSourceError("read", p.Locator, band, &w, fmt.Errorf("no band %d, source has %d", band, len(bands)))
	}
	if !w.Within(p.Width, p.Height) {
		return emath.SampleGrid{}, NewSourceError("read", p.Locator, band, &w, fmt.Errorf("window outside %dx%d raster", p.Width, p.Height))
	}

	src := &bands[band-1]
	out := emath.NewGrid[int32](w.Width, w.Height)
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			out.Set(x, y, src.Get(w.ColOff+x, w.RowOff+y))
		}
	}
	return out, nil
}

// MemSink is a Sink that assembles the output in memory.
type MemSink struct {
	sync.Mutex
	ledger   *WriteLedger
	img      *image.RGBA
	closed   bool
	aborted  bool
}

func NewMemSink(grid BlockGrid) *MemSink {
	return &MemSink{
		ledger: NewWriteLedger(grid, false),
		img:    image.NewRGBA(image.Rect(0, 0, grid.Width, grid.Height)),
	}
}

func (ms *MemSink)WriteWindow(ctx context.Context, w Window, pix []uint8) error {
	ms.Lock()
	defer ms.Unlock()

	if ms.closed || ms.aborted {
		return NewSinkError("write", "mem", &w, fmt.Errorf("sink is finished"))
	}
	if err := CheckTileBuffer(w, pix); err != nil {
		return NewSinkError("write", "mem", &w, err)
	}
	if err := ms.ledger.Mark(w); err != nil {
		return NewSinkError("write", "mem", &w, err)
	}

	tile := TileImage(w, pix)
	for y := w.RowOff; y < w.RowOff+w.Height; y++ {
		copy(ms.img.Pix[ms.img.PixOffset(w.ColOff, y):], tile.Pix[tile.PixOffset(w.ColOff, y):tile.PixOffset(w.ColOff+w.Width, y)])
	}
	return nil
}

func (ms *MemSink)Close() error {
	ms.Lock()
	defer ms.Unlock()
	if ms.aborted {
		return NewSinkError("close", "mem", nil, fmt.Errorf("sink was aborted"))
	}
	ms.closed = true
	return nil
}

func (ms *MemSink)Abort() error {
	ms.Lock()
	defer ms.Unlock()
	ms.aborted = true
	return nil
}

func (ms *MemSink)Image() *image.RGBA  { return ms.img }
func (ms *MemSink)Closed() bool        { ms.Lock(); defer ms.Unlock(); return ms.closed }
func (ms *MemSink)Aborted() bool       { ms.Lock(); defer ms.Unlock(); return ms.aborted }
func (ms *MemSink)Written() int        { ms.Lock(); defer ms.Unlock(); return ms.ledger.Count() }
