package gtiff

import(
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// TagInfo is the layout of the first image in a TIFF, read straight from
// its tags. It is everything needed to find and decode any one block.
type TagInfo struct {
	Width            int
	Height           int
	SamplesPerPixel  int
	BitsPerSample    int
	SampleFormat     int
	Compression      int
	Photometric      int
	Predictor        int
	PlanarConfig     int
	TileWidth        int // 0 if stripped
	TileHeight       int
	RowsPerStrip     int // 0 if tiled
	BigTIFF          bool

	Offsets     []uint64 // per block; planar files have SamplesPerPixel runs of them
	ByteCounts  []uint64
	JPEGTables  []byte
	Georef      raster.Georef

	order  binary.ByteOrder
}

func (ti TagInfo)Tiled() bool { return ti.TileWidth > 0 && ti.TileHeight > 0 }

// BlockSize is the native block layout; strips are blocks the full width
// of the image.
func (ti TagInfo)BlockSize() (int, int) {
	if ti.Tiled() {
		return ti.TileWidth, ti.TileHeight
	}
	if ti.RowsPerStrip <= 0 || ti.RowsPerStrip > ti.Height {
		return ti.Width, ti.Height
	}
	return ti.Width, ti.RowsPerStrip
}

// BlocksAcross and BlocksDown count the blocks in one plane.
func (ti TagInfo)BlocksAcross() int { bw, _ := ti.BlockSize(); return (ti.Width + bw - 1) / bw }
func (ti TagInfo)BlocksDown() int   { _, bh := ti.BlockSize(); return (ti.Height + bh - 1) / bh }

func (ti TagInfo)Planar() bool { return ti.PlanarConfig == pcPlanar }

func (ti TagInfo)String() string {
	bw, bh := ti.BlockSize()
	return fmt.Sprintf("tiff[%dx%d, %d x %d bits (format %d), compression=%d, photometric=%d, planar=%d, blocks %dx%d, big=%v]",
		ti.Width, ti.Height, ti.SamplesPerPixel, ti.BitsPerSample, ti.SampleFormat, ti.Compression,
		ti.Photometric, ti.PlanarConfig, bw, bh, ti.BigTIFF)
}

// Inspect reads the tags of the first IFD of an in-memory TIFF.
func Inspect(data []byte) (TagInfo, error) {
	return InspectReader(bytes.NewReader(data), int64(len(data)))
}

// InspectReader reads the header and first IFD, and checks the image is
// one this package can read. No pixel data is touched.
func InspectReader(ra io.ReaderAt, size int64) (TagInfo, error) {
	ti := TagInfo{}

	d, err := readDirectory(ra, size)
	if err != nil {
		return ti, err
	}
	ti.order, ti.BigTIFF = d.order, d.big

	ints := []struct{
		id   uint16
		dst  *int
		def  int
	}{
		{tImageWidth, &ti.Width, 0},
		{tImageLength, &ti.Height, 0},
		{tSamplesPerPixel, &ti.SamplesPerPixel, 1},
		{tSampleFormat, &ti.SampleFormat, sfUint},
		{tCompression, &ti.Compression, cNone},
		{tPhotometricInterpretation, &ti.Photometric, pMinIsBlack},
		{tPredictor, &ti.Predictor, prNone},
		{tPlanarConfiguration, &ti.PlanarConfig, pcChunky},
		{tTileWidth, &ti.TileWidth, 0},
		{tTileLength, &ti.TileHeight, 0},
	}
	for _, i := range ints {
		if *i.dst, err = d.single(i.id, i.def); err != nil {
			return ti, err
		}
	}

	if ti.Width <= 0 || ti.Height <= 0 {
		return ti, fmt.Errorf("tiff tags: bad image size %dx%d", ti.Width, ti.Height)
	}
	if ti.SamplesPerPixel <= 0 {
		return ti, fmt.Errorf("tiff tags: %d samples per pixel", ti.SamplesPerPixel)
	}

	// Often 2^32-1, meaning one strip
	if !ti.Tiled() && d.has(tRowsPerStrip) {
		rps, err := d.uints(tRowsPerStrip)
		if err != nil {
			return ti, err
		}
		if len(rps) > 0 && rps[0] > 0 && rps[0] < uint64(ti.Height) {
			ti.RowsPerStrip = int(rps[0])
		}
	}

	// Every sample must be the same size
	ti.BitsPerSample = 1
	if d.has(tBitsPerSample) {
		bits, err := d.uints(tBitsPerSample)
		if err != nil {
			return ti, err
		}
		for i, b := range bits {
			if i == 0 {
				ti.BitsPerSample = int(b)
			} else if int(b) != ti.BitsPerSample {
				return ti, fmt.Errorf("tiff tags: mixed bits per sample %v", bits)
			}
		}
	}

	offsetTag, countTag := tStripOffsets, tStripByteCounts
	if ti.Tiled() {
		offsetTag, countTag = tTileOffsets, tTileByteCounts
	}
	if ti.Offsets, err = d.uints(uint16(offsetTag)); err != nil {
		return ti, err
	}
	if ti.ByteCounts, err = d.uints(uint16(countTag)); err != nil {
		return ti, err
	}
	if d.has(tJPEGTables) {
		ti.JPEGTables = d.bytes(tJPEGTables)
	}

	if ti.Georef, err = readGeoref(d); err != nil {
		return ti, err
	}

	return ti, ti.check()
}

// check rejects the layouts the block reader can't handle, so a Source
// never gets half way through a raster before finding out.
func (ti TagInfo)check() error {
	switch {
	case ti.SampleFormat == sfFloat:
		return fmt.Errorf("tiff: floating point samples are not supported")
	case ti.SampleFormat != sfUint && ti.SampleFormat != sfInt:
		return fmt.Errorf("tiff: sample format %d is not supported", ti.SampleFormat)
	case ti.BitsPerSample != 8 && ti.BitsPerSample != 16 && !(ti.BitsPerSample == 32 && ti.SampleFormat == sfInt):
		return fmt.Errorf("tiff: %d bit samples (format %d) are not supported", ti.BitsPerSample, ti.SampleFormat)
	case ti.PlanarConfig != pcChunky && ti.PlanarConfig != pcPlanar:
		return fmt.Errorf("tiff: planar configuration %d is not supported", ti.PlanarConfig)
	case ti.Predictor != prNone && ti.Predictor != prHorizontal:
		return fmt.Errorf("tiff: predictor %d is not supported", ti.Predictor)
	}

	switch ti.Compression {
	case cNone, cLZW, cDeflate, cDeflateOld, cPackBits, cZstd:
	case cJPEG:
		if ti.BitsPerSample != 8 {
			return fmt.Errorf("tiff: JPEG compression needs 8 bit samples, not %d", ti.BitsPerSample)
		} else if ti.Planar() && ti.SamplesPerPixel > 1 {
			return fmt.Errorf("tiff: planar JPEG is not supported")
		}
	default:
		return fmt.Errorf("tiff: compression %d is not supported", ti.Compression)
	}

	n := ti.BlocksAcross() * ti.BlocksDown()
	if ti.Planar() {
		n *= ti.SamplesPerPixel
	}
	if len(ti.Offsets) != n || len(ti.ByteCounts) != n {
		return fmt.Errorf("tiff: %d block offsets and %d byte counts, wanted %d", len(ti.Offsets), len(ti.ByteCounts), n)
	}
	return nil
}
