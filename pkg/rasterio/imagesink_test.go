package rasterio

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

func solidPix(w raster.Window, r, g, b uint8) []uint8 {
	pix := make([]uint8, 0, 3*w.Area())
	for i := 0; i < w.Area(); i++ {
		pix = append(pix, r, g, b)
	}
	return pix
}

func TestImageSinkPNG(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "out.png")
	grid, _ := raster.NewBlockGrid(20, 10, 16, 16)

	s := NewImageSink(filename, raster.DriverPNG, 0, grid)
	ctx := context.Background()
	require.NoError(t, s.WriteWindow(ctx, raster.Window{ColOff: 0, RowOff: 0, Width: 16, Height: 10}, solidPix(raster.Window{Width: 16, Height: 10}, 10, 20, 30)))
	require.NoError(t, s.WriteWindow(ctx, raster.Window{ColOff: 16, RowOff: 0, Width: 4, Height: 10}, solidPix(raster.Window{Width: 4, Height: 10}, 200, 100, 50)))
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"out.png"}, listDir(t, dir))

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := img.At(3, 3).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
	r, g, b, _ = img.At(19, 9).RGBA()
	assert.Equal(t, []uint32{200, 100, 50}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestImageSinkIncomplete(t *testing.T) {
	dir := t.TempDir()
	grid, _ := raster.NewBlockGrid(20, 10, 16, 16)

	s := NewImageSink(filepath.Join(dir, "out.jpg"), raster.DriverJPEG, 90, grid)
	w := raster.Window{ColOff: 0, RowOff: 0, Width: 16, Height: 10}
	require.NoError(t, s.WriteWindow(context.Background(), w, solidPix(w, 1, 2, 3)))
	assert.Error(t, s.WriteWindow(context.Background(), w, solidPix(w, 1, 2, 3)), "twice")

	assert.Error(t, s.Close())
	assert.Empty(t, listDir(t, dir))
}
