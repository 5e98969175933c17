package raster

import(
	"fmt"

	"github.com/dhconnelly/rtreego"
)

type indexedWindow struct {
	Window
	rect rtreego.Rect
}

func (iw *indexedWindow)Bounds() rtreego.Rect { return iw.rect }

func windowRect(w Window, inset float64) (rtreego.Rect, error) {
	point   := rtreego.Point{float64(w.ColOff) + inset, float64(w.RowOff) + inset}
	lengths := []float64{float64(w.Width) - 2*inset, float64(w.Height) - 2*inset}
	return rtreego.NewRect(point, lengths)
}

// ValidatePartition checks that the windows cover a width x height raster
// exactly once: every window is non-empty and inside the raster, no two
// windows overlap, and together their area is the raster's area (which,
// given no overlaps, means there are no gaps).
func ValidatePartition(width, height int, windows []Window) error {
	rtree := rtreego.NewTree(2, 25, 50)

	area := 0
	for _, w := range windows {
		if !w.Within(width, height) {
			return fmt.Errorf("partition: %s is empty or outside the %dx%d raster", w, width, height)
		}

		// Query with the window shrunk a little, so that windows that only
		// share an edge don't count as intersecting.
		query, err := windowRect(w, 0.25)
		if err != nil {
			return fmt.Errorf("partition: %s: %w", w, err)
		}
		if hits := rtree.SearchIntersect(query); len(hits) > 0 {
			return fmt.Errorf("partition: %s overlaps %s", w, hits[0].(*indexedWindow).Window)
		}

		rect, err := windowRect(w, 0)
		if err != nil {
			return fmt.Errorf("partition: %s: %w", w, err)
		}
		rtree.Insert(&indexedWindow{Window: w, rect: rect})
		area += w.Area()
	}

	if area != width*height {
		return fmt.Errorf("partition: windows cover %d pixels, raster has %d", area, width*height)
	}
	return nil
}

// Validate checks the grid's own windows.
func (bg BlockGrid)Validate() error {
	return ValidatePartition(bg.Width, bg.Height, bg.All())
}
