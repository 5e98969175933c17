package gtiff

import(
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
)

// Blocks bigger than this (compressed or not) are taken to mean a corrupt
// file.
const maxBlockLen = 512 * 1024 * 1024

// A block is one decoded tile or strip: samples in file byte order, with
// any predictor undone. Planar files have one sample per pixel per block.
type block struct {
	data    []byte
	width   int
	rows    int
	spp     int
	bps     int // bytes per sample
	signed  bool
	order   binary.ByteOrder
}

func (b *block)sample(x, y, s int) int32 {
	i := ((y*b.width + x)*b.spp + s) * b.bps
	switch b.bps {
	case 1:
		if b.signed {
			return int32(int8(b.data[i]))
		}
		return int32(b.data[i])
	case 2:
		v := b.order.Uint16(b.data[i:])
		if b.signed {
			return int32(int16(v))
		}
		return int32(v)
	}
	return int32(b.order.Uint32(b.data[i:]))
}

// blockReader fetches blocks from the file and decodes them. It keeps the
// most recently decoded few, since the bands of a chunky file all come
// out of the same blocks.
type blockReader struct {
	ra     io.ReaderAt
	ti     TagInfo
	zstd   *zstd.Decoder

	sync.Mutex
	max    int
	recent []int
	cache  map[int]*block
}

func newBlockReader(ra io.ReaderAt, ti TagInfo, cacheSize int) (*blockReader, error) {
	br := blockReader{ra: ra, ti: ti, max: cacheSize, cache: map[int]*block{}}
	if ti.Compression == cZstd {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		br.zstd = dec
	}
	return &br, nil
}

func (br *blockReader)Close() {
	if br.zstd != nil {
		br.zstd.Close()
	}
	br.Lock()
	br.cache = map[int]*block{}
	br.recent = nil
	br.Unlock()
}

// Block returns block i, from the cache if it can.
func (br *blockReader)Block(i int) (*block, error) {
	br.Lock()
	b, exists := br.cache[i]
	br.Unlock()
	if exists {
		return b, nil
	}

	b, err := br.decode(i)
	if err != nil {
		return nil, fmt.Errorf("tiff block %d: %w", i, err)
	}

	br.Lock()
	defer br.Unlock()
	if _, exists := br.cache[i]; !exists && br.max > 0 {
		br.cache[i] = b
		br.recent = append(br.recent, i)
		if len(br.recent) > br.max {
			delete(br.cache, br.recent[0])
			br.recent = br.recent[1:]
		}
	}
	return b, nil
}

// shape is the pixel size of block i. Tiles are always full size; the
// last strip only has the rows that are left.
func (br *blockReader)shape(i int) (int, int) {
	ti := br.ti
	bw, bh := ti.BlockSize()
	if ti.Tiled() {
		return bw, bh
	}
	row := (i % ti.BlocksDown()) * bh
	if row + bh > ti.Height {
		return bw, ti.Height - row
	}
	return bw, bh
}

func (br *blockReader)decode(i int) (*block, error) {
	ti := br.ti
	b := block{spp: ti.SamplesPerPixel, bps: ti.BitsPerSample / 8, signed: ti.SampleFormat == sfInt, order: ti.order}
	if ti.Planar() {
		b.spp = 1
	}
	b.width, b.rows = br.shape(i)
	want := b.width * b.rows * b.spp * b.bps

	off, n := ti.Offsets[i], ti.ByteCounts[i]
	if n == 0 {
		// Sparse files leave empty blocks out
		b.data = make([]byte, want)
		return &b, nil
	}
	if n > maxBlockLen {
		return nil, fmt.Errorf("%d bytes is too big", n)
	}

	raw := make([]byte, n)
	if got, err := br.ra.ReadAt(raw, int64(off)); got < len(raw) {
		return nil, fmt.Errorf("read %d of %d bytes at %d: %w", got, n, off, firstErr(err, io.ErrUnexpectedEOF))
	}

	var err error
	switch ti.Compression {
	case cNone:
		b.data = raw
	case cLZW:
		b.data, err = readFull(lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8), want)
	case cDeflate, cDeflateOld:
		zr, zerr := zlib.NewReader(bytes.NewReader(raw))
		if zerr != nil {
			return nil, fmt.Errorf("deflate: %w", zerr)
		}
		b.data, err = readFull(zr, want)
	case cZstd:
		b.data, err = br.zstd.DecodeAll(raw, make([]byte, 0, want))
	case cPackBits:
		b.data, err = unpackBits(raw, want)
	case cJPEG:
		b.data, err = decodeJPEGBlock(raw, ti.JPEGTables, b.width, b.rows, b.spp)
	}
	if err != nil {
		return nil, err
	}

	if len(b.data) < want {
		return nil, fmt.Errorf("decoded %d bytes, wanted %d", len(b.data), want)
	}
	b.data = b.data[:want]

	if ti.Predictor == prHorizontal {
		undoPredictor(&b)
	}
	return &b, nil
}

func readFull(r io.ReadCloser, n int) ([]byte, error) {
	defer r.Close()
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// unpackBits expands PackBits runs until it has n bytes.
func unpackBits(src []byte, n int) ([]byte, error) {
	dst := make([]byte, 0, n)
	for i := 0; i < len(src) && len(dst) < n; {
		code := int(int8(src[i]))
		i++
		switch {
		case code >= 0:
			if i + code + 1 > len(src) {
				return nil, fmt.Errorf("packbits: literal run past the end")
			}
			dst = append(dst, src[i:i+code+1]...)
			i += code + 1
		case code == -128:
		default:
			if i >= len(src) {
				return nil, fmt.Errorf("packbits: repeat run past the end")
			}
			for j := 0; j < 1-code; j++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	return dst, nil
}

// undoPredictor reverses horizontal differencing, row by row, modulo the
// sample size.
func undoPredictor(b *block) {
	stride := b.width * b.spp
	for y := 0; y < b.rows; y++ {
		row := b.data[y*stride*b.bps : (y+1)*stride*b.bps]
		for i := b.spp; i < stride; i++ {
			switch b.bps {
			case 1:
				row[i] += row[i-b.spp]
			case 2:
				b.order.PutUint16(row[2*i:], b.order.Uint16(row[2*i:]) + b.order.Uint16(row[2*(i-b.spp):]))
			case 4:
				b.order.PutUint32(row[4*i:], b.order.Uint32(row[4*i:]) + b.order.Uint32(row[4*(i-b.spp):]))
			}
		}
	}
}

// decodeJPEGBlock decodes a JPEG tile or strip to interleaved 8 bit
// samples. If the file has shared tables, they are spliced in front of the
// block's own stream.
func decodeJPEGBlock(raw, tables []byte, width, rows, spp int) ([]byte, error) {
	stream := raw
	if len(tables) > 4 && len(raw) > 2 && bytes.HasSuffix(tables, []byte{0xFF, 0xD9}) {
		stream = append(append([]byte{}, tables[:len(tables)-2]...), raw[2:]...)
	}

	img, err := jpeg.Decode(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("jpeg: %w", err)
	}
	if b := img.Bounds(); b.Dx() < width || b.Dy() < rows {
		return nil, fmt.Errorf("jpeg: %dx%d image in a %dx%d block", b.Dx(), b.Dy(), width, rows)
	} else if spp != 1 && spp != 3 {
		return nil, fmt.Errorf("jpeg: %d samples per pixel", spp)
	}

	origin := img.Bounds().Min
	out := make([]byte, 0, width*rows*spp)
	for y := 0; y < rows; y++ {
		for x := 0; x < width; x++ {
			c := img.At(origin.X+x, origin.Y+y)
			if spp == 1 {
				out = append(out, color.GrayModel.Convert(c).(color.Gray).Y)
				continue
			}
			r, g, b, _ := c.RGBA()
			out = append(out, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return out, nil
}
