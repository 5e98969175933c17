package gtiff

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

func testPixel(x, y, c int) uint8 { return uint8(x*7 + y*13 + c*50) }

func windowPix(w raster.Window) []uint8 {
	pix := make([]uint8, 0, 3*w.Area())
	for y := w.RowOff; y < w.RowOff+w.Height; y++ {
		for x := w.ColOff; x < w.ColOff+w.Width; x++ {
			pix = append(pix, testPixel(x, y, 0), testPixel(x, y, 1), testPixel(x, y, 2))
		}
	}
	return pix
}

func writeAll(t *testing.T, s *Sink, reverse bool) {
	t.Helper()
	windows := s.Blocks().All()
	if reverse {
		for i, j := 0, len(windows)-1; i < j; i, j = i+1, j-1 {
			windows[i], windows[j] = windows[j], windows[i]
		}
	}
	for _, w := range windows {
		require.NoError(t, s.WriteWindow(context.Background(), w, windowPix(w)))
	}
}

func assertDecodes(t *testing.T, filename string, width, height int) {
	t.Helper()
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()

	img, err := tiff.Decode(f)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, width, height), img.Bounds())

	rgba, ok := img.(*image.RGBA)
	require.True(t, ok, "decoded a %T", img)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := rgba.RGBAAt(x, y)
			require.Equal(t, [3]uint8{testPixel(x, y, 0), testPixel(x, y, 1), testPixel(x, y, 2)}, [3]uint8{c.R, c.G, c.B}, "(%d,%d)", x, y)
		}
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSinkRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		compress  string
		predictor bool
		reverse   bool
	}{
		{"none", "NONE", false, false},
		{"none out of order", "NONE", false, true},
		{"deflate", "DEFLATE", false, false},
		{"deflate with predictor", "DEFLATE", true, true},
	}

	for _, tt := range tests {
		dir := t.TempDir()
		filename := filepath.Join(dir, "out.tif")

		s, err := Create(filename, 40, 24, SinkOptions{Compress: tt.compress, BlockSize: 16, BigTIFF: "NO", Predictor: tt.predictor})
		require.NoError(t, err, tt.name)
		assert.False(t, s.BigTIFF())

		writeAll(t, s, tt.reverse)
		_, err = os.Stat(filename)
		assert.True(t, os.IsNotExist(err), "nothing at the destination until Close")

		require.NoError(t, s.Close(), tt.name)
		assert.Equal(t, []string{"out.tif"}, listDir(t, dir), "temp file renamed away")

		assertDecodes(t, filename, 40, 24)

		data, err := os.ReadFile(filename)
		require.NoError(t, err)
		ti, err := Inspect(data)
		require.NoError(t, err)
		assert.Equal(t, 16, ti.TileWidth)
		assert.Equal(t, 16, ti.TileHeight)
		assert.Equal(t, 3, ti.SamplesPerPixel)
		assert.Equal(t, 8, ti.BitsPerSample)
		if tt.predictor {
			assert.Equal(t, prHorizontal, ti.Predictor)
		}
	}
}

func TestSinkRoundTripThroughSource(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rt.tif")
	s, err := Create(filename, 33, 17, SinkOptions{Compress: "DEFLATE", BlockSize: 16, BigTIFF: "IF_NEEDED", Predictor: true})
	require.NoError(t, err)
	writeAll(t, s, false)
	require.NoError(t, s.Close())

	src, err := OpenFile(filename, SourceOptions{})
	require.NoError(t, err)
	defer src.Close()

	p := src.Profile()
	assert.Equal(t, 33, p.Width)
	assert.Equal(t, 17, p.Height)
	assert.Equal(t, 3, p.Count)
	assert.Equal(t, 16, p.BlockWidth)
	assert.Equal(t, 6, src.Blocks().Count())

	w := raster.Window{ColOff: 30, RowOff: 10, Width: 3, Height: 7}
	for band := 1; band <= 3; band++ {
		g, err := src.ReadWindow(context.Background(), band, w)
		require.NoError(t, err)
		for y := 0; y < w.Height; y++ {
			for x := 0; x < w.Width; x++ {
				assert.Equal(t, int32(testPixel(w.ColOff+x, w.RowOff+y, band-1)), g.Get(x, y))
			}
		}
	}
}

func TestSinkTagsForOtherCodecs(t *testing.T) {
	tests := []struct {
		compress    string
		compression int
		photometric int
	}{
		{"ZSTD", cZstd, pRGB},
		{"JPEG", cJPEG, pYCbCr},
	}

	for _, tt := range tests {
		filename := filepath.Join(t.TempDir(), "out.tif")
		s, err := Create(filename, 20, 20, SinkOptions{Compress: tt.compress, Quality: 80, BlockSize: 16, BigTIFF: "NO"})
		require.NoError(t, err)
		writeAll(t, s, false)
		require.NoError(t, s.Close())

		data, err := os.ReadFile(filename)
		require.NoError(t, err)
		ti, err := Inspect(data)
		require.NoError(t, err, tt.compress)
		assert.Equal(t, tt.compression, ti.Compression, tt.compress)
		assert.Equal(t, tt.photometric, ti.Photometric, tt.compress)
		assert.True(t, ti.Tiled())
	}
}

func TestSinkBigTIFFHeader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "big.tif")
	s, err := Create(filename, 32, 16, SinkOptions{Compress: "NONE", BlockSize: 16, BigTIFF: "YES"})
	require.NoError(t, err)
	require.True(t, s.BigTIFF())
	writeAll(t, s, false)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Equal(t, "II\x2B\x00", string(data[0:4]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(data[4:6]))

	ifdAt := binary.LittleEndian.Uint64(data[8:16])
	require.Less(t, ifdAt, uint64(len(data)))
	n := binary.LittleEndian.Uint64(data[ifdAt:])
	assert.Equal(t, uint64(13), n)

	// Find the tile offsets entry, and check the first tile is where it says
	for i := uint64(0); i < n; i++ {
		e := data[ifdAt+8+i*bigEntryLen:]
		if binary.LittleEndian.Uint16(e[0:]) != tTileOffsets {
			continue
		}
		assert.Equal(t, uint16(dtLong8), binary.LittleEndian.Uint16(e[2:]))
		assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(e[4:]))
		// Two LONG8s don't fit in the entry, so it points at them
		arrayAt := binary.LittleEndian.Uint64(e[12:])
		first := binary.LittleEndian.Uint64(data[arrayAt:])
		assert.Equal(t, uint64(16), first, "tiles start right after the header")
		assert.Equal(t, []uint8{testPixel(0, 0, 0), testPixel(0, 0, 1), testPixel(0, 0, 2)}, data[first:first+3])
	}
}

func TestSinkRejects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	filename := filepath.Join(dir, "out.tif")

	s, err := Create(filename, 40, 24, SinkOptions{Compress: "NONE", BlockSize: 16, BigTIFF: "NO"})
	require.NoError(t, err)

	var se *raster.SinkError

	w := raster.Window{ColOff: 8, RowOff: 0, Width: 16, Height: 16}
	err = s.WriteWindow(ctx, w, windowPix(w))
	require.True(t, errors.As(err, &se), "misaligned")

	w = raster.Window{ColOff: 32, RowOff: 0, Width: 16, Height: 16}
	err = s.WriteWindow(ctx, w, make([]uint8, 3*w.Area()))
	require.True(t, errors.As(err, &se), "edge tile must be clipped")

	w = raster.Window{ColOff: 0, RowOff: 0, Width: 16, Height: 16}
	require.NoError(t, s.WriteWindow(ctx, w, windowPix(w)))
	err = s.WriteWindow(ctx, w, windowPix(w))
	require.True(t, errors.As(err, &se), "twice")
	assert.NotNil(t, se.Window)

	err = s.WriteWindow(ctx, raster.Window{ColOff: 16, RowOff: 0, Width: 16, Height: 16}, make([]uint8, 10))
	require.True(t, errors.As(err, &se), "short buffer")

	// Closing with tiles missing fails, and leaves nothing behind
	err = s.Close()
	require.True(t, errors.As(err, &se))
	assert.Empty(t, listDir(t, dir))
}

func TestSinkAbort(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "out.tif")

	s, err := Create(filename, 40, 24, SinkOptions{Compress: "DEFLATE", BlockSize: 16, BigTIFF: "NO"})
	require.NoError(t, err)

	w := raster.Window{ColOff: 0, RowOff: 0, Width: 16, Height: 16}
	require.NoError(t, s.WriteWindow(context.Background(), w, windowPix(w)))
	assert.Len(t, listDir(t, dir), 1)

	require.NoError(t, s.Abort())
	assert.Empty(t, listDir(t, dir))
	assert.Error(t, s.WriteWindow(context.Background(), w, windowPix(w)))
}

func TestCreateRejects(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "a.tif"), 10, 10, SinkOptions{Compress: "NONE", BlockSize: 20})
	assert.Error(t, err)
	_, err = Create(filepath.Join(dir, "b.tif"), 10, 10, SinkOptions{Compress: "LZW", BlockSize: 16})
	assert.Error(t, err)
	_, err = Create(filepath.Join(dir, "missing", "c.tif"), 10, 10, SinkOptions{Compress: "NONE", BlockSize: 16})
	assert.Error(t, err)
}

func TestUseBigTIFF(t *testing.T) {
	assert.True(t, UseBigTIFF("YES", 1, 1))
	assert.False(t, UseBigTIFF("NO", 100000, 100000))
	assert.False(t, UseBigTIFF("IF_NEEDED", 10980, 10980))
	assert.True(t, UseBigTIFF("IF_NEEDED", 40000, 40000))
}

func TestSinkOptionsFromProfile(t *testing.T) {
	op := raster.DefaultOutputProfile()
	so := SinkOptionsFromProfile(op)
	assert.Equal(t, "JPEG", so.Compress)
	assert.Equal(t, 75, so.Quality)
	assert.False(t, so.Predictor)

	op.Compress = raster.CompressZstd
	assert.True(t, SinkOptionsFromProfile(op).Predictor)
}

func TestSinkJPEGThroughSource(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "jpeg.tif")
	s, err := Create(filename, 32, 32, SinkOptions{Compress: "JPEG", Quality: 95, BlockSize: 16, BigTIFF: "NO"})
	require.NoError(t, err)
	for _, w := range s.Blocks().All() {
		pix := make([]uint8, 3*w.Area())
		for i := range pix {
			pix[i] = []uint8{200, 120, 40}[i%3]
		}
		require.NoError(t, s.WriteWindow(context.Background(), w, pix))
	}
	require.NoError(t, s.Close())

	src, err := OpenFile(filename, SourceOptions{})
	require.NoError(t, err)
	defer src.Close()

	w := raster.Window{ColOff: 10, RowOff: 10, Width: 12, Height: 12}
	for band, want := range []int32{200, 120, 40} {
		g, err := src.ReadWindow(context.Background(), band+1, w)
		require.NoError(t, err)
		assert.InDelta(t, want, g.Get(5, 5), 4, "band %d", band+1)
	}
}

func TestSinkGeoref(t *testing.T) {
	g := raster.Georef{
		PixelScale:     []float64{10, 10, 0},
		Tiepoints:      []float64{0, 0, 0, 600000, 5300040, 0},
		GeoKeys:        []uint16{1, 1, 0, 1, 3072, 0, 1, 32633},
		GeoDoubles:     []float64{6378137},
		GeoASCII:       "WGS 84 / UTM zone 33N|",
		NoData:         "0",
	}
	for _, big := range []string{"NO", "YES"} {
		filename := filepath.Join(t.TempDir(), "geo.tif")
		s, err := Create(filename, 20, 20, SinkOptions{Compress: "DEFLATE", BlockSize: 16, BigTIFF: big, Georef: g})
		require.NoError(t, err)
		writeAll(t, s, false)
		require.NoError(t, s.Close())

		src, err := OpenFile(filename, SourceOptions{})
		require.NoError(t, err)
		assert.Equal(t, g, src.Profile().Georef, big)
		require.NoError(t, src.Close())
	}
}
