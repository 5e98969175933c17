package gtiff

import(
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// Classic TIFF offsets are 32 bits; leave room for the IFD and tile index.
const classicLimit = 0xFFFFFFFF - 64*1024*1024

// SinkOptions control the layout of the TIFF a Sink writes.
type SinkOptions struct {
	Compress   string // NONE, DEFLATE, ZSTD or JPEG
	Quality    int    // JPEG only
	BlockSize  int    // square tiles; must be a multiple of 16
	BigTIFF    string // YES, NO or IF_NEEDED
	Predictor  bool   // horizontal differencing, for DEFLATE and ZSTD
	Georef     raster.Georef
}

func SinkOptionsFromProfile(op raster.OutputProfile) SinkOptions {
	return SinkOptions{
		Compress:  op.Compress,
		Quality:   op.Quality,
		BlockSize: op.BlockSize,
		BigTIFF:   op.BigTIFF,
		Predictor: op.Compress == raster.CompressDeflate || op.Compress == raster.CompressZstd,
	}
}

// Sink writes a tiled, 3-band, 8-bit TIFF (or BigTIFF). Tiles can arrive
// in any order; they are appended to a temp file next to the destination,
// and Close writes the tile index then renames the temp file into place.
// Windows must be exactly the tiles of the block grid.
type Sink struct {
	sync.Mutex
	filename  string
	tmpname   string
	f         *os.File
	grid      raster.BlockGrid
	opts      SinkOptions
	codec     tileCodec
	big       bool
	ledger    *raster.WriteLedger
	offsets   []uint64
	counts    []uint64
	pos       uint64
	finished  bool
}

// UseBigTIFF resolves the BigTIFF mode for a raster of the given size.
// IF_NEEDED goes by the uncompressed size, as compression can't be relied on.
func UseBigTIFF(mode string, width, height int) bool {
	switch mode {
	case raster.BigTIFFYes: return true
	case raster.BigTIFFNo:  return false
	}
	return uint64(width) * uint64(height) * 3 > classicLimit
}

func Create(filename string, width, height int, opts SinkOptions) (*Sink, error) {
	grid, err := raster.NewBlockGrid(width, height, opts.BlockSize, opts.BlockSize)
	if err != nil {
		return nil, raster.NewSinkError("create", filename, nil, err)
	}
	if opts.BlockSize % 16 != 0 {
		return nil, raster.NewSinkError("create", filename, nil, fmt.Errorf("tile size %d is not a multiple of 16", opts.BlockSize))
	}
	codec, err := newTileCodec(opts.Compress, opts.Quality, opts.Predictor)
	if err != nil {
		return nil, raster.NewSinkError("create", filename, nil, err)
	}

	s := Sink{
		filename: filename,
		tmpname:  filepath.Join(filepath.Dir(filename), fmt.Sprintf(".%s.%s.tmp", filepath.Base(filename), uuid.NewString())),
		grid:     grid,
		opts:     opts,
		codec:    codec,
		big:      UseBigTIFF(opts.BigTIFF, width, height),
		ledger:   raster.NewWriteLedger(grid, true),
		offsets:  make([]uint64, grid.Count()),
		counts:   make([]uint64, grid.Count()),
	}

	if s.f, err = os.Create(s.tmpname); err != nil {
		return nil, raster.NewSinkError("create", filename, nil, err)
	}

	// The header; the IFD offset gets patched in by Close.
	hdr := make([]byte, 8)
	copy(hdr, leHeader)
	if s.big {
		hdr = make([]byte, 16)
		copy(hdr, leBigHdr)
		binary.LittleEndian.PutUint16(hdr[4:], 8) // bytesize of offsets
	}
	if _, err := s.f.Write(hdr); err != nil {
		s.discard()
		return nil, raster.NewSinkError("create", filename, nil, err)
	}
	s.pos = uint64(len(hdr))

	return &s, nil
}

func (s *Sink)Blocks() raster.BlockGrid  { return s.grid }
func (s *Sink)BigTIFF() bool             { return s.big }
func (s *Sink)TempName() string          { return s.tmpname }

// EncodeWindow pads the window out to a full tile and compresses it. It
// touches no Sink state, so can run on any goroutine.
func (s *Sink)EncodeWindow(w raster.Window, pix []uint8) (raster.EncodedWindow, error) {
	if err := raster.CheckTileBuffer(w, pix); err != nil {
		return raster.EncodedWindow{}, raster.NewSinkError("encode", s.filename, &w, err)
	}
	if _, ok := s.grid.Index(w); !ok {
		return raster.EncodedWindow{}, raster.NewSinkError("encode", s.filename, &w, fmt.Errorf("not a tile of %s", s.grid))
	}

	bs := s.opts.BlockSize
	tile := make([]uint8, 3*bs*bs)
	for y := 0; y < w.Height; y++ {
		copy(tile[3*bs*y:], pix[3*w.Width*y : 3*w.Width*(y+1)])
	}

	data, err := s.codec.Encode(tile, bs, bs)
	if err != nil {
		return raster.EncodedWindow{}, raster.NewSinkError("encode", s.filename, &w, err)
	}
	return raster.EncodedWindow{Window: w, Data: data}, nil
}

func (s *Sink)WriteEncoded(ctx context.Context, ew raster.EncodedWindow) error {
	s.Lock()
	defer s.Unlock()

	w := ew.Window
	if s.finished {
		return raster.NewSinkError("write", s.filename, &w, fmt.Errorf("sink is finished"))
	}
	if err := ctx.Err(); err != nil {
		return raster.NewSinkError("write", s.filename, &w, err)
	}
	if err := s.ledger.Mark(w); err != nil {
		return raster.NewSinkError("write", s.filename, &w, err)
	}

	if !s.big && s.pos + uint64(len(ew.Data)) > classicLimit {
		return raster.NewSinkError("write", s.filename, &w, fmt.Errorf("output passed 4GB, and BIGTIFF=%s", s.opts.BigTIFF))
	}
	if _, err := s.f.Write(ew.Data); err != nil {
		return raster.NewSinkError("write", s.filename, &w, err)
	}

	i, _ := s.grid.Index(w)
	s.offsets[i] = s.pos
	s.counts[i]  = uint64(len(ew.Data))
	s.pos += uint64(len(ew.Data))

	// Keep everything word aligned
	if s.pos % 2 == 1 {
		if _, err := s.f.Write([]byte{0}); err != nil {
			return raster.NewSinkError("write", s.filename, &w, err)
		}
		s.pos++
	}
	return nil
}

func (s *Sink)WriteWindow(ctx context.Context, w raster.Window, pix []uint8) error {
	ew, err := s.EncodeWindow(w, pix)
	if err != nil {
		return err
	}
	return s.WriteEncoded(ctx, ew)
}

func (s *Sink)entries() []ifdEntry {
	offsetType := uint16(dtLong)
	if s.big {
		offsetType = dtLong8
	}

	entries := []ifdEntry{
		longEntry(tImageWidth, uint64(s.grid.Width)),
		longEntry(tImageLength, uint64(s.grid.Height)),
		shortEntry(tBitsPerSample, 8, 8, 8),
		shortEntry(tCompression, uint64(s.codec.Compression())),
		shortEntry(tPhotometricInterpretation, uint64(s.codec.Photometric())),
		shortEntry(tSamplesPerPixel, 3),
		shortEntry(tPlanarConfiguration, 1),
		asciiEntry(tSoftware, software),
		longEntry(tTileWidth, uint64(s.opts.BlockSize)),
		longEntry(tTileLength, uint64(s.opts.BlockSize)),
		{tag: tTileOffsets, datatype: offsetType, vals: s.offsets},
		{tag: tTileByteCounts, datatype: offsetType, vals: s.counts},
		shortEntry(tSampleFormat, 1, 1, 1),
	}
	if s.codec.Predictor() != prNone {
		entries = append(entries, shortEntry(tPredictor, uint64(s.codec.Predictor())))
	}
	if s.codec.Photometric() == pYCbCr {
		entries = append(entries, shortEntry(tYCbCrSubSampling, 2, 2))
	}
	return append(entries, georefEntries(s.opts.Georef)...)
}

// Close writes the IFD, points the header at it, and renames the file
// into place. If any tile is missing the output is discarded.
func (s *Sink)Close() error {
	s.Lock()
	defer s.Unlock()

	if s.finished {
		return raster.NewSinkError("close", s.filename, nil, fmt.Errorf("sink is finished"))
	}
	s.finished = true

	if !s.ledger.Complete() {
		s.discard()
		return raster.NewSinkError("close", s.filename, nil, fmt.Errorf("only %d of %d tiles written", s.ledger.Count(), s.grid.Count()))
	}

	ifd, err := encodeIFD(s.entries(), s.pos, s.big)
	if err != nil {
		s.discard()
		return raster.NewSinkError("close", s.filename, nil, err)
	}
	if _, err := s.f.Write(ifd); err != nil {
		s.discard()
		return raster.NewSinkError("close", s.filename, nil, err)
	}

	ptr := make([]byte, 4)
	ptrAt := int64(4)
	if s.big {
		ptr = make([]byte, 8)
		ptrAt = 8
		binary.LittleEndian.PutUint64(ptr, s.pos)
	} else {
		binary.LittleEndian.PutUint32(ptr, uint32(s.pos))
	}
	if _, err := s.f.WriteAt(ptr, ptrAt); err != nil {
		s.discard()
		return raster.NewSinkError("close", s.filename, nil, err)
	}

	if err := s.f.Sync(); err != nil {
		s.discard()
		return raster.NewSinkError("close", s.filename, nil, err)
	}
	if err := s.f.Close(); err != nil {
		os.Remove(s.tmpname)
		return raster.NewSinkError("close", s.filename, nil, err)
	}
	if err := os.Rename(s.tmpname, s.filename); err != nil {
		os.Remove(s.tmpname)
		return raster.NewSinkError("close", s.filename, nil, err)
	}
	return nil
}

// Abort throws away the temp file. The destination is never touched.
func (s *Sink)Abort() error {
	s.Lock()
	defer s.Unlock()

	if s.finished {
		return nil
	}
	s.finished = true
	return s.discard()
}

func (s *Sink)discard() error {
	s.f.Close()
	if err := os.Remove(s.tmpname); err != nil && !os.IsNotExist(err) {
		return raster.NewSinkError("abort", s.filename, nil, err)
	}
	return nil
}
