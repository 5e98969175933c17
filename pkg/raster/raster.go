package raster

import(
	"context"
	"fmt"
	"image"

	"github.com/samber/lo"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

// A Source is a raster we can read windows of raw band samples from. It
// must support concurrent ReadWindow calls for disjoint windows.
type Source interface {
	Profile() Profile
	Blocks() BlockGrid
	ReadWindow(ctx context.Context, band int, w Window) (emath.SampleGrid, error) // band is 1-based
	Close() error
}

// A Sink receives 3-band 8-bit windows, pixel interleaved RGB. Nothing
// is valid until Close returns nil; Abort discards everything written.
type Sink interface {
	WriteWindow(ctx context.Context, w Window, pix []uint8) error
	Close() error
	Abort() error
}

// CheckTileBuffer checks pix is the right size for a 3-band window.
func CheckTileBuffer(w Window, pix []uint8) error {
	if len(pix) != 3*w.Area() {
		return fmt.Errorf("%s needs %d bytes, got %d", w, 3*w.Area(), len(pix))
	}
	return nil
}

// TileImage wraps a window's interleaved RGB bytes as an image whose
// bounds are the window's position in the raster.
func TileImage(w Window, pix []uint8) *image.RGBA {
	img := image.NewRGBA(w.Rect())
	for i := 0; i < w.Area(); i++ {
		copy(img.Pix[4*i:4*i+3], pix[3*i:3*i+3])
		img.Pix[4*i+3] = 0xFF
	}
	return img
}

// A WriteLedger tracks which windows a sink has been given, and rejects
// windows outside the raster, misaligned with the block grid (when the
// sink is tiled), or written twice.
type WriteLedger struct {
	grid     BlockGrid
	aligned  bool
	written  map[Window]bool
}

func NewWriteLedger(grid BlockGrid, aligned bool) *WriteLedger {
	return &WriteLedger{grid: grid, aligned: aligned, written: map[Window]bool{}}
}

func (wl *WriteLedger)Mark(w Window) error {
	if !w.Within(wl.grid.Width, wl.grid.Height) {
		return fmt.Errorf("%s is outside the %dx%d raster", w, wl.grid.Width, wl.grid.Height)
	}
	if wl.aligned {
		if _, ok := wl.grid.Index(w); !ok {
			return fmt.Errorf("%s is not aligned to %s", w, wl.grid)
		}
	}
	if wl.written[w] {
		return fmt.Errorf("%s written twice", w)
	}
	wl.written[w] = true
	return nil
}

func (wl *WriteLedger)Count() int { return len(wl.written) }

// Windows lists everything marked so far, in no particular order.
func (wl *WriteLedger)Windows() []Window { return lo.Keys(wl.written) }

// Complete reports whether, for an aligned ledger, every block has been written.
func (wl *WriteLedger)Complete() bool { return len(wl.written) == wl.grid.Count() }

// An EncodedWindow is a window a sink has already turned into its stored
// form (e.g. a compressed tile).
type EncodedWindow struct {
	Window  Window
	Data    []byte
}

// An EncodingSink splits a write into the expensive encode, which may run
// on any goroutine, and the write itself, which must be serialized.
// WriteWindow is EncodeWindow followed by WriteEncoded.
type EncodingSink interface {
	Sink
	EncodeWindow(w Window, pix []uint8) (EncodedWindow, error)
	WriteEncoded(ctx context.Context, ew EncodedWindow) error
}
