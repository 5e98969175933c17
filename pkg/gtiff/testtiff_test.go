package gtiff

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// testTIFF describes a little-endian TIFF to build sample by sample, in
// layouts the Sink never writes.
type testTIFF struct {
	width, height  int
	spp, bits      int
	signed         bool
	planar         bool
	tile           int // 0 means strips
	rowsPerStrip   int // 0 means one strip
	compression    int
	predictor      bool
	big            bool
	georef         raster.Georef
}

func (tt testTIFF)info() TagInfo {
	ti := TagInfo{Width: tt.width, Height: tt.height, TileWidth: tt.tile, TileHeight: tt.tile}
	if tt.tile == 0 && tt.rowsPerStrip > 0 && tt.rowsPerStrip < tt.height {
		ti.RowsPerStrip = tt.rowsPerStrip
	}
	return ti
}

// build lays out the header, then every block, then the IFD.
func (tt testTIFF)build(t *testing.T, sample func(x, y, s int) int32) []byte {
	t.Helper()
	ti := tt.info()
	bw, bh := ti.BlockSize()
	bps := tt.bits / 8

	hdrLen := 8
	if tt.big {
		hdrLen = 16
	}
	out := make([]byte, hdrLen)

	planes, perBlock := 1, tt.spp
	if tt.planar {
		planes, perBlock = tt.spp, 1
	}

	offsets, counts := []uint64{}, []uint64{}
	for p := 0; p < planes; p++ {
		for by := 0; by < ti.BlocksDown(); by++ {
			for bx := 0; bx < ti.BlocksAcross(); bx++ {
				rows := bh
				if tt.tile == 0 {
					rows = min(bh, tt.height - by*bh)
				}

				raw := make([]byte, 0, bw*rows*perBlock*bps)
				for y := by*bh; y < by*bh + rows; y++ {
					for x := bx*bw; x < (bx+1)*bw; x++ {
						for s := 0; s < perBlock; s++ {
							v := int32(0)
							if x < tt.width && y < tt.height {
								v = sample(x, y, s + p)
							}
							raw = appendSample(raw, v, bps)
						}
					}
				}
				if tt.predictor {
					applyTestPredictor(raw, bw, rows, perBlock, bps)
				}

				enc := tt.compress(t, raw)
				offsets = append(offsets, uint64(len(out)))
				counts = append(counts, uint64(len(enc)))
				out = append(out, enc...)
				if len(out) % 2 == 1 {
					out = append(out, 0)
				}
			}
		}
	}

	spps := func(v int) []uint64 {
		vals := make([]uint64, tt.spp)
		for i := range vals {
			vals[i] = uint64(v)
		}
		return vals
	}
	format, planar, predictor, photometric := sfUint, pcChunky, prNone, pMinIsBlack
	if tt.signed {
		format = sfInt
	}
	if tt.planar {
		planar = pcPlanar
	}
	if tt.predictor {
		predictor = prHorizontal
	}
	if tt.spp == 3 {
		photometric = pRGB
	}

	offsetType := uint16(dtLong)
	if tt.big {
		offsetType = dtLong8
	}
	entries := []ifdEntry{
		longEntry(tImageWidth, uint64(tt.width)),
		longEntry(tImageLength, uint64(tt.height)),
		shortEntry(tBitsPerSample, spps(tt.bits)...),
		shortEntry(tCompression, uint64(tt.compression)),
		shortEntry(tPhotometricInterpretation, uint64(photometric)),
		shortEntry(tSamplesPerPixel, uint64(tt.spp)),
		shortEntry(tPlanarConfiguration, uint64(planar)),
		shortEntry(tPredictor, uint64(predictor)),
		shortEntry(tSampleFormat, spps(format)...),
	}
	if tt.tile > 0 {
		entries = append(entries,
			shortEntry(tTileWidth, uint64(tt.tile)),
			shortEntry(tTileLength, uint64(tt.tile)),
			ifdEntry{tag: tTileOffsets, datatype: offsetType, vals: offsets},
			ifdEntry{tag: tTileByteCounts, datatype: offsetType, vals: counts})
	} else {
		entries = append(entries,
			longEntry(tRowsPerStrip, uint64(bh)),
			ifdEntry{tag: tStripOffsets, datatype: offsetType, vals: offsets},
			ifdEntry{tag: tStripByteCounts, datatype: offsetType, vals: counts})
	}
	entries = append(entries, georefEntries(tt.georef)...)

	at := uint64(len(out))
	ifd, err := encodeIFD(entries, at, tt.big)
	require.NoError(t, err)
	out = append(out, ifd...)

	if tt.big {
		copy(out, leBigHdr)
		binary.LittleEndian.PutUint16(out[4:], 8)
		binary.LittleEndian.PutUint64(out[8:], at)
	} else {
		copy(out, leHeader)
		binary.LittleEndian.PutUint32(out[4:], uint32(at))
	}
	return out
}

func appendSample(buf []byte, v int32, bps int) []byte {
	switch bps {
	case 1:
		return append(buf, uint8(v))
	case 2:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

func applyTestPredictor(raw []byte, width, rows, spp, bps int) {
	stride := width * spp
	for y := 0; y < rows; y++ {
		row := raw[y*stride*bps : (y+1)*stride*bps]
		for i := stride-1; i >= spp; i-- {
			switch bps {
			case 1:
				row[i] -= row[i-spp]
			case 2:
				binary.LittleEndian.PutUint16(row[2*i:], binary.LittleEndian.Uint16(row[2*i:]) - binary.LittleEndian.Uint16(row[2*(i-spp):]))
			case 4:
				binary.LittleEndian.PutUint32(row[4*i:], binary.LittleEndian.Uint32(row[4*i:]) - binary.LittleEndian.Uint32(row[4*(i-spp):]))
			}
		}
	}
}

func (tt testTIFF)compress(t *testing.T, raw []byte) []byte {
	t.Helper()
	switch tt.compression {
	case cLZW:
		return lzwLiterals(raw)
	case cPackBits:
		return packBits(raw)
	case cDeflate, cDeflateOld:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(raw)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	case cZstd:
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(raw, nil)
	}
	return raw
}

// lzwLiterals writes TIFF LZW that only ever uses 9 bit literal codes. It
// clears the table before it grows enough for the decoder to widen its
// codes.
func lzwLiterals(data []byte) []byte {
	var out []byte
	var acc uint32
	var nbits uint
	put := func(code uint32) {
		acc = acc<<9 | code
		nbits += 9
		for nbits >= 8 {
			out = append(out, byte(acc >> (nbits-8)))
			nbits -= 8
		}
	}

	put(256)
	for i, b := range data {
		if i > 0 && i % 250 == 0 {
			put(256)
		}
		put(uint32(b))
	}
	put(257)
	if nbits > 0 {
		out = append(out, byte(acc << (8-nbits)))
	}
	return out
}

// packBits uses repeat runs for any byte seen twice in a row.
func packBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run >= 2 {
			out = append(out, byte(int8(1 - run)), src[i])
			i += run
			continue
		}

		j := i + 1
		for j < len(src) && j-i < 128 && !(j+1 < len(src) && src[j+1] == src[j]) {
			j++
		}
		out = append(out, byte(j-i-1))
		out = append(out, src[i:j]...)
		i = j
	}
	return out
}
