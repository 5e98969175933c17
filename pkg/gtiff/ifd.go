package gtiff

import(
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

type ifdEntry struct {
	tag       uint16
	datatype  uint16
	vals      []uint64
	ascii     string
}

func shortEntry(tag uint16, vals ...uint64) ifdEntry { return ifdEntry{tag: tag, datatype: dtShort, vals: vals} }
func longEntry(tag uint16, vals ...uint64) ifdEntry  { return ifdEntry{tag: tag, datatype: dtLong, vals: vals} }
func asciiEntry(tag uint16, s string) ifdEntry       { return ifdEntry{tag: tag, datatype: dtASCII, ascii: s + "\x00"} }

// doubleEntry holds the float64 bit patterns in vals.
func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	e := ifdEntry{tag: tag, datatype: dtDouble, vals: make([]uint64, len(vals))}
	for i, v := range vals {
		e.vals[i] = math.Float64bits(v)
	}
	return e
}

func (e ifdEntry)count() int {
	if e.datatype == dtASCII {
		return len(e.ascii)
	}
	return len(e.vals)
}

func (e ifdEntry)data() []byte {
	if e.datatype == dtASCII {
		return []byte(e.ascii)
	}

	buf := make([]byte, dtLengths[e.datatype]*len(e.vals))
	for i, v := range e.vals {
		switch e.datatype {
		case dtShort: binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
		case dtLong:  binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
		case dtLong8, dtDouble: binary.LittleEndian.PutUint64(buf[8*i:], v)
		}
	}
	return buf
}

// encodeIFD lays out a single IFD (with no next IFD) that will be written
// at file offset `at`. Values too big for their entry go in an area right
// after the IFD.
func encodeIFD(entries []ifdEntry, at uint64, big bool) ([]byte, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	n := len(entries)
	entryLen, fieldLen, headLen, tailLen := classicEntryLen, 4, 2, 4
	if big {
		entryLen, fieldLen, headLen, tailLen = bigEntryLen, 8, 8, 8
	}
	ifdLen := headLen + n*entryLen + tailLen

	ifd := make([]byte, ifdLen)
	overflow := []byte{}

	if big {
		binary.LittleEndian.PutUint64(ifd, uint64(n))
	} else {
		binary.LittleEndian.PutUint16(ifd, uint16(n))
	}

	for i, e := range entries {
		p := ifd[headLen + i*entryLen:]
		binary.LittleEndian.PutUint16(p[0:], e.tag)
		binary.LittleEndian.PutUint16(p[2:], e.datatype)

		field := p[8:]
		if big {
			binary.LittleEndian.PutUint64(p[4:], uint64(e.count()))
			field = p[12:]
		} else {
			binary.LittleEndian.PutUint32(p[4:], uint32(e.count()))
		}

		d := e.data()
		if len(d) <= fieldLen {
			copy(field, d)
			continue
		}

		off := at + uint64(ifdLen) + uint64(len(overflow))
		if big {
			binary.LittleEndian.PutUint64(field, off)
		} else {
			if off + uint64(len(d)) > 0xFFFFFFFF {
				return nil, fmt.Errorf("tag %d value at offset %d is beyond classic TIFF's 4GB limit", e.tag, off)
			}
			binary.LittleEndian.PutUint32(field, uint32(off))
		}
		overflow = append(overflow, d...)
		if len(overflow) % 2 == 1 {
			overflow = append(overflow, 0) // word alignment
		}
	}

	return append(ifd, overflow...), nil
}
