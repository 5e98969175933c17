package gtiff

import(
	"encoding/binary"
	"fmt"
	"io"
	"math"

	exiftiff "github.com/rwcarlsen/goexif/tiff"
)

// Tag values bigger than this are taken to mean a corrupt file.
const maxTagValueLen = 256 * 1024 * 1024

// A dirEntry is one IFD entry with its value bytes, still in the file's
// byte order.
type dirEntry struct {
	id     uint16
	dtype  uint16
	count  uint64
	val    []byte
}

// directory is the first IFD of a TIFF or BigTIFF.
type directory struct {
	order    binary.ByteOrder
	big      bool
	entries  map[uint16]dirEntry
}

// readDirectory reads the header and the first IFD, and nothing else.
// Classic TIFFs are read with goexif; it knows nothing of BigTIFF, whose
// 20 byte entries are read here.
func readDirectory(ra io.ReaderAt, size int64) (directory, error) {
	d := directory{entries: map[uint16]dirEntry{}}

	hdr := make([]byte, 16)
	n, err := ra.ReadAt(hdr, 0)
	if n < 8 {
		return d, fmt.Errorf("tiff header: %w", firstErr(err, io.ErrUnexpectedEOF))
	}

	switch string(hdr[0:2]) {
	case "II": d.order = binary.LittleEndian
	case "MM": d.order = binary.BigEndian
	default:
		return d, fmt.Errorf("tiff header: bad byte order %q", hdr[0:2])
	}

	switch d.order.Uint16(hdr[2:]) {
	case 42:
		off := int64(d.order.Uint32(hdr[4:]))
		return d, d.readClassicIFD(ra, size, off)
	case 43:
		if n < 16 {
			return d, fmt.Errorf("bigtiff header: %w", firstErr(err, io.ErrUnexpectedEOF))
		} else if d.order.Uint16(hdr[4:]) != 8 {
			return d, fmt.Errorf("bigtiff header: offset size %d", d.order.Uint16(hdr[4:]))
		}
		d.big = true
		off := int64(d.order.Uint64(hdr[8:]))
		return d, d.readBigIFD(ra, size, off)
	}
	return d, fmt.Errorf("tiff header: bad magic %d", d.order.Uint16(hdr[2:]))
}

func (d *directory)readClassicIFD(ra io.ReaderAt, size, off int64) error {
	if off < 8 || off >= size {
		return fmt.Errorf("tiff IFD offset %d outside the %d byte file", off, size)
	}

	sr := io.NewSectionReader(ra, 0, size)
	if _, err := sr.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("tiff IFD: %w", err)
	}
	dir, _, err := exiftiff.DecodeDir(sr, d.order)
	if err != nil {
		return fmt.Errorf("tiff IFD: %w", err)
	}

	for _, t := range dir.Tags {
		d.entries[t.Id] = dirEntry{id: t.Id, dtype: uint16(t.Type), count: uint64(t.Count), val: t.Val}
	}
	return nil
}

func (d *directory)readBigIFD(ra io.ReaderAt, size, off int64) error {
	if off < 16 || off >= size {
		return fmt.Errorf("bigtiff IFD offset %d outside the %d byte file", off, size)
	}

	buf := make([]byte, 8)
	if _, err := ra.ReadAt(buf, off); err != nil {
		return fmt.Errorf("bigtiff IFD: %w", err)
	}
	n := d.order.Uint64(buf)
	if n == 0 || int64(n) > (size-off)/bigEntryLen {
		return fmt.Errorf("bigtiff IFD: bad entry count %d", n)
	}

	raw := make([]byte, n*bigEntryLen)
	if _, err := ra.ReadAt(raw, off+8); err != nil {
		return fmt.Errorf("bigtiff IFD: %w", err)
	}

	for i := uint64(0); i < n; i++ {
		p := raw[i*bigEntryLen:]
		e := dirEntry{id: d.order.Uint16(p[0:]), dtype: d.order.Uint16(p[2:]), count: d.order.Uint64(p[4:])}

		elen, known := dtLengths[e.dtype]
		if !known {
			continue // nothing we read uses it
		}
		vlen := e.count * uint64(elen)
		if vlen > maxTagValueLen {
			return fmt.Errorf("bigtiff tag %d: %d byte value", e.id, vlen)
		}

		if vlen <= 8 {
			e.val = append([]byte{}, p[12:12+vlen]...)
		} else {
			e.val = make([]byte, vlen)
			if _, err := ra.ReadAt(e.val, int64(d.order.Uint64(p[12:]))); err != nil {
				return fmt.Errorf("bigtiff tag %d: %w", e.id, err)
			}
		}
		d.entries[e.id] = e
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (d directory)has(id uint16) bool { _, ok := d.entries[id]; return ok }

// uints decodes an unsigned integer valued tag.
func (d directory)uints(id uint16) ([]uint64, error) {
	e, ok := d.entries[id]
	if !ok {
		return nil, fmt.Errorf("tiff tag %d missing", id)
	}

	vals := make([]uint64, e.count)
	for i := range vals {
		switch e.dtype {
		case dtByte:  vals[i] = uint64(e.val[i])
		case dtShort: vals[i] = uint64(d.order.Uint16(e.val[2*i:]))
		case dtLong, dtIFD:  vals[i] = uint64(d.order.Uint32(e.val[4*i:]))
		case dtLong8, dtIFD8: vals[i] = d.order.Uint64(e.val[8*i:])
		default:
			return nil, fmt.Errorf("tiff tag %d: type %d is not an unsigned integer", id, e.dtype)
		}
	}
	return vals, nil
}

// single reads a single valued tag, or returns def if it is absent.
func (d directory)single(id uint16, def int) (int, error) {
	if !d.has(id) {
		return def, nil
	}
	vals, err := d.uints(id)
	if err != nil {
		return 0, err
	} else if len(vals) == 0 {
		return 0, fmt.Errorf("tiff tag %d is empty", id)
	} else if vals[0] > math.MaxInt32 {
		return 0, fmt.Errorf("tiff tag %d: value %d too big", id, vals[0])
	}
	return int(vals[0]), nil
}

func (d directory)floats(id uint16) ([]float64, error) {
	e := d.entries[id]
	vals := make([]float64, e.count)
	for i := range vals {
		switch e.dtype {
		case dtDouble: vals[i] = math.Float64frombits(d.order.Uint64(e.val[8*i:]))
		case dtFloat:  vals[i] = float64(math.Float32frombits(d.order.Uint32(e.val[4*i:])))
		default:
			return nil, fmt.Errorf("tiff tag %d: type %d is not floating point", id, e.dtype)
		}
	}
	return vals, nil
}

func (d directory)ascii(id uint16) string {
	v := d.entries[id].val
	for len(v) > 0 && v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v)
}

func (d directory)bytes(id uint16) []byte { return d.entries[id].val }
