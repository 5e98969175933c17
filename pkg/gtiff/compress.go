package gtiff

import(
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// A tileCodec turns one full-size, pixel-interleaved RGB tile into the
// bytes stored in the file. It must be safe for concurrent use.
type tileCodec interface {
	Compression() int
	Photometric() int
	Predictor() int
	Encode(tile []uint8, w, h int) ([]byte, error)
}

func newTileCodec(compress string, quality int, predictor bool) (tileCodec, error) {
	pr := prNone
	if predictor {
		pr = prHorizontal
	}

	switch compress {
	case "NONE":
		return rawCodec{}, nil
	case "DEFLATE":
		return deflateCodec{predictor: pr}, nil
	case "ZSTD":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return zstdCodec{enc: enc, predictor: pr}, nil
	case "JPEG":
		return jpegCodec{quality: quality}, nil
	}
	return nil, fmt.Errorf("no tile codec for compression '%s'", compress)
}

// applyPredictor does horizontal differencing in place, row by row, over
// 3 byte samples per pixel.
func applyPredictor(tile []uint8, w, h int) {
	stride := 3 * w
	for y := 0; y < h; y++ {
		row := tile[y*stride : (y+1)*stride]
		for i := len(row)-1; i >= 3; i-- {
			row[i] -= row[i-3]
		}
	}
}

type rawCodec struct{}

func (rawCodec)Compression() int  { return cNone }
func (rawCodec)Photometric() int  { return pRGB }
func (rawCodec)Predictor() int    { return prNone }
func (rawCodec)Encode(tile []uint8, w, h int) ([]byte, error) {
	return tile, nil
}

type deflateCodec struct {
	predictor int
}

func (c deflateCodec)Compression() int  { return cDeflate }
func (c deflateCodec)Photometric() int  { return pRGB }
func (c deflateCodec)Predictor() int    { return c.predictor }
func (c deflateCodec)Encode(tile []uint8, w, h int) ([]byte, error) {
	if c.predictor == prHorizontal {
		applyPredictor(tile, w, h)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(tile); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type zstdCodec struct {
	enc       *zstd.Encoder
	predictor int
}

func (c zstdCodec)Compression() int  { return cZstd }
func (c zstdCodec)Photometric() int  { return pRGB }
func (c zstdCodec)Predictor() int    { return c.predictor }
func (c zstdCodec)Encode(tile []uint8, w, h int) ([]byte, error) {
	if c.predictor == prHorizontal {
		applyPredictor(tile, w, h)
	}
	return c.enc.EncodeAll(tile, nil), nil
}

// jpegCodec writes each tile as a complete JPEG stream; the encoder
// converts to YCbCr with 2x2 chroma subsampling.
type jpegCodec struct {
	quality int
}

func (c jpegCodec)Compression() int  { return cJPEG }
func (c jpegCodec)Photometric() int  { return pYCbCr }
func (c jpegCodec)Predictor() int    { return prNone }
func (c jpegCodec)Encode(tile []uint8, w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		copy(img.Pix[4*i:4*i+3], tile[3*i:3*i+3])
		img.Pix[4*i+3] = 0xFF
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
