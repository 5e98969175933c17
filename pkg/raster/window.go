package raster

import(
	"fmt"
	"image"
)

// A Window is a rectangular region of a raster, in pixel coordinates.
type Window struct {
	ColOff  int
	RowOff  int
	Width   int
	Height  int
}

func NewWindow(col, row, w, h int) Window { return Window{ColOff: col, RowOff: row, Width: w, Height: h} }

func (w Window)Rect() image.Rectangle  { return image.Rect(w.ColOff, w.RowOff, w.ColOff+w.Width, w.RowOff+w.Height) }
func (w Window)Area() int              { return w.Width * w.Height }
func (w Window)Empty() bool            { return w.Width <= 0 || w.Height <= 0 }
func (w Window)Contains(col, row int) bool { return image.Pt(col, row).In(w.Rect()) }

// Within reports whether the window lies entirely inside a raster of the given size.
func (w Window)Within(width, height int) bool {
	return !w.Empty() && w.Rect().In(image.Rect(0, 0, width, height))
}

func (w Window)String() string {
	return fmt.Sprintf("win[col=%d,row=%d %dx%d]", w.ColOff, w.RowOff, w.Width, w.Height)
}

// A BlockGrid enumerates the block windows of a raster, row-major. Edge
// windows are clipped to the raster, so they may be narrower or shorter
// than the block size. Windows are computed on demand.
type BlockGrid struct {
	Width        int
	Height       int
	BlockWidth   int
	BlockHeight  int
}

func NewBlockGrid(width, height, blockWidth, blockHeight int) (BlockGrid, error) {
	if width < 0 || height < 0 {
		return BlockGrid{}, fmt.Errorf("raster size %dx%d is negative", width, height)
	}
	if blockWidth <= 0 || blockHeight <= 0 {
		return BlockGrid{}, fmt.Errorf("block size %dx%d must be positive", blockWidth, blockHeight)
	}
	return BlockGrid{Width: width, Height: height, BlockWidth: blockWidth, BlockHeight: blockHeight}, nil
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func (bg BlockGrid)Cols() int  { return ceilDiv(bg.Width, bg.BlockWidth) }
func (bg BlockGrid)Rows() int  { return ceilDiv(bg.Height, bg.BlockHeight) }
func (bg BlockGrid)Count() int { return bg.Cols() * bg.Rows() }

func (bg BlockGrid)String() string {
	return fmt.Sprintf("blocks[%dx%d raster, %dx%d blocks, %d cols x %d rows]",
		bg.Width, bg.Height, bg.BlockWidth, bg.BlockHeight, bg.Cols(), bg.Rows())
}

// At returns the i'th window, 0 <= i < Count().
func (bg BlockGrid)At(i int) Window {
	bx, by := i % bg.Cols(), i / bg.Cols()
	col, row := bx * bg.BlockWidth, by * bg.BlockHeight
	return Window{
		ColOff: col,
		RowOff: row,
		Width:  min(bg.BlockWidth, bg.Width - col),
		Height: min(bg.BlockHeight, bg.Height - row),
	}
}

func (bg BlockGrid)All() []Window {
	ret := make([]Window, bg.Count())
	for i := range ret {
		ret[i] = bg.At(i)
	}
	return ret
}

// Index returns the block index of w, if w is exactly one of the grid's windows.
func (bg BlockGrid)Index(w Window) (int, bool) {
	if w.ColOff < 0 || w.RowOff < 0 || w.ColOff % bg.BlockWidth != 0 || w.RowOff % bg.BlockHeight != 0 {
		return 0, false
	}
	bx, by := w.ColOff / bg.BlockWidth, w.RowOff / bg.BlockHeight
	if bx >= bg.Cols() || by >= bg.Rows() {
		return 0, false
	}
	i := by*bg.Cols() + bx
	return i, bg.At(i) == w
}

// WindowContaining returns the block window that holds the pixel.
func (bg BlockGrid)WindowContaining(col, row int) (Window, error) {
	if col < 0 || row < 0 || col >= bg.Width || row >= bg.Height {
		return Window{}, fmt.Errorf("pixel (%d,%d) is outside the %dx%d raster", col, row, bg.Width, bg.Height)
	}
	return bg.At((row / bg.BlockHeight) * bg.Cols() + col / bg.BlockWidth), nil
}
