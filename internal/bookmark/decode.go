package bookmark

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	magic             = "book"
	fixedHeaderSize   = 16
	defaultHeaderSize = 48
	defaultVersion    = 0x10040000
	tocMagic          = 0xFFFFFFFE
	tocHeaderSize     = 20
	tocEntrySize      = 12
	stringKeyFlag     = 0x80000000

	// maxDepth bounds array/dict/url nesting so crafted offsets cannot recurse forever.
	maxDepth = 32
)

var le = binary.LittleEndian

type decoder struct {
	data   []byte // data area, offsets are relative to its start
	depth  int
	// budget is the number of items left to decode; shared offsets can
	// otherwise fan a small blob out into exponentially many values.
	budget int
}

// Decode parses a bookmark blob.
func Decode(blob []byte) (*Bookmark, error) {
	if len(blob) < fixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrMalformed, len(blob))
	}
	if !bytes.Equal(blob[:4], []byte(magic)) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformed, blob[:4])
	}

	size := le.Uint32(blob[4:8])
	version := le.Uint32(blob[8:12])
	hdrSize := le.Uint32(blob[12:16])

	if uint64(size) != uint64(len(blob)) {
		return nil, fmt.Errorf("%w: header claims %d bytes, have %d", ErrMalformed, size, len(blob))
	}
	if hdrSize < fixedHeaderSize || hdrSize > size {
		return nil, fmt.Errorf("%w: header size %d out of range", ErrMalformed, hdrSize)
	}
	if size-hdrSize < 4 {
		return nil, fmt.Errorf("%w: no data area", ErrMalformed)
	}

	d := &decoder{data: blob[hdrSize:], budget: int(size - hdrSize)}
	b := &Bookmark{
		Version: version,
		Header:  bytes.Clone(blob[fixedHeaderSize:hdrSize]),
	}

	seen := make(map[uint32]bool)
	for off := le.Uint32(d.data[0:4]); off != 0; {
		if seen[off] {
			return nil, fmt.Errorf("%w: TOC chain loops at offset %d", ErrMalformed, off)
		}
		seen[off] = true

		toc, next, err := d.toc(off)
		if err != nil {
			return nil, err
		}
		b.TOCs = append(b.TOCs, toc)
		off = next
	}
	if len(b.TOCs) == 0 {
		return nil, fmt.Errorf("%w: no table of contents", ErrMalformed)
	}
	return b, nil
}

func (d *decoder) toc(off uint32) (TOC, uint32, error) {
	if uint64(off)+tocHeaderSize > uint64(len(d.data)) {
		return TOC{}, 0, fmt.Errorf("%w: TOC offset %d out of range", ErrMalformed, off)
	}
	p := d.data[off:]
	if le.Uint32(p[4:8]) != tocMagic {
		return TOC{}, 0, fmt.Errorf("%w: bad TOC magic at offset %d", ErrMalformed, off)
	}

	total := uint64(le.Uint32(p[0:4])) + 8
	count := uint64(le.Uint32(p[16:20]))
	if uint64(off)+total > uint64(len(d.data)) {
		return TOC{}, 0, fmt.Errorf("%w: TOC at offset %d truncated", ErrMalformed, off)
	}
	if total < tocHeaderSize+tocEntrySize*count {
		return TOC{}, 0, fmt.Errorf("%w: %d TOC entries overrun TOC size %d", ErrMalformed, count, total)
	}

	toc := TOC{ID: le.Uint32(p[8:12])}
	next := le.Uint32(p[12:16])
	toc.Entries = make([]Entry, 0, count)

	for i := uint64(0); i < count; i++ {
		e := p[tocHeaderSize+tocEntrySize*i:]
		key := le.Uint32(e[0:4])
		entry := Entry{Key: key, Flags: le.Uint32(e[8:12])}

		if key&stringKeyFlag != 0 {
			kv, err := d.item(key &^ stringKeyFlag)
			if err != nil {
				return TOC{}, 0, fmt.Errorf("TOC key %#x: %w", key, err)
			}
			name, ok := kv.(String)
			if !ok {
				return TOC{}, 0, fmt.Errorf("%w: TOC key %#x is not a string", ErrMalformed, key)
			}
			entry.Key = 0
			entry.Name = string(name)
		}

		v, err := d.item(le.Uint32(e[4:8]))
		if err != nil {
			return TOC{}, 0, fmt.Errorf("TOC entry %#x: %w", key, err)
		}
		entry.Value = v
		toc.Entries = append(toc.Entries, entry)
	}

	return toc, next, nil
}

func (d *decoder) item(off uint32) (Value, error) {
	if d.depth > maxDepth {
		return nil, fmt.Errorf("%w: items nested deeper than %d", ErrMalformed, maxDepth)
	}
	if d.budget--; d.budget < 0 {
		return nil, fmt.Errorf("%w: too many shared items", ErrMalformed)
	}
	if uint64(off)+8 > uint64(len(d.data)) {
		return nil, fmt.Errorf("%w: item offset %d out of range", ErrMalformed, off)
	}

	length := le.Uint32(d.data[off : off+4])
	code := le.Uint32(d.data[off+4 : off+8])
	end := uint64(off) + 8 + uint64(length)
	if end > uint64(len(d.data)) {
		return nil, fmt.Errorf("%w: item at offset %d truncated", ErrMalformed, off)
	}
	payload := d.data[off+8 : end]
	sub := code & subtypeMask

	switch code & typeMask {
	case typeString:
		if !utf8.Valid(payload) {
			return nil, fmt.Errorf("%w: invalid UTF-8 string at offset %d", ErrMalformed, off)
		}
		return String(payload), nil

	case typeData:
		return Data(bytes.Clone(payload)), nil

	case typeNumber:
		return decodeNumber(code, payload)

	case typeDate:
		if len(payload) != 8 {
			return nil, fmt.Errorf("%w: date at offset %d has %d bytes", ErrMalformed, off, len(payload))
		}
		// Dates are the one big-endian value in the format.
		return Date{Seconds: math.Float64frombits(binary.BigEndian.Uint64(payload))}, nil

	case typeBoolean:
		switch sub {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}

	case typeUUID:
		u, err := uuid.FromBytes(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: uuid at offset %d: %v", ErrMalformed, off, err)
		}
		return UUID(u), nil

	case typeURL:
		switch sub {
		case urlAbsolute:
			return URL{Rel: string(payload)}, nil
		case urlRelative:
			if len(payload) != 8 {
				return nil, fmt.Errorf("%w: relative url at offset %d has %d bytes", ErrMalformed, off, len(payload))
			}
			base, err := d.nested(le.Uint32(payload[0:4]))
			if err != nil {
				return nil, err
			}
			rel, err := d.nested(le.Uint32(payload[4:8]))
			if err != nil {
				return nil, err
			}
			relStr, ok := rel.(String)
			if !ok {
				return nil, fmt.Errorf("%w: relative url at offset %d has non-string path", ErrMalformed, off)
			}
			return URL{Base: base, Rel: string(relStr)}, nil
		}

	case typeArray:
		if len(payload)%4 != 0 {
			return nil, fmt.Errorf("%w: array at offset %d has odd length %d", ErrMalformed, off, len(payload))
		}
		arr := make(Array, 0, len(payload)/4)
		for i := 0; i < len(payload); i += 4 {
			v, err := d.nested(le.Uint32(payload[i : i+4]))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil

	case typeDictionary:
		if len(payload)%8 != 0 {
			return nil, fmt.Errorf("%w: dictionary at offset %d has odd length %d", ErrMalformed, off, len(payload))
		}
		dict := make(Dict, 0, len(payload)/8)
		for i := 0; i < len(payload); i += 8 {
			k, err := d.nested(le.Uint32(payload[i : i+4]))
			if err != nil {
				return nil, err
			}
			v, err := d.nested(le.Uint32(payload[i+4 : i+8]))
			if err != nil {
				return nil, err
			}
			dict = append(dict, DictEntry{Key: k, Value: v})
		}
		return dict, nil

	case typeNull:
		return Null{}, nil
	}

	return Raw{TypeCode: code, Bytes: bytes.Clone(payload)}, nil
}

func (d *decoder) nested(off uint32) (Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	return d.item(off)
}

func decodeNumber(code uint32, payload []byte) (Value, error) {
	kind := NumberKind(code & subtypeMask)
	if kind < SInt8 || kind > CFIndex {
		return Raw{TypeCode: code, Bytes: bytes.Clone(payload)}, nil
	}
	if len(payload) != kind.size() {
		return nil, fmt.Errorf("%w: number kind %d has %d bytes", ErrMalformed, kind, len(payload))
	}

	n := Number{Kind: kind}
	if kind.IsFloat() {
		if len(payload) == 4 {
			n.Float = float64(math.Float32frombits(le.Uint32(payload)))
		} else {
			n.Float = math.Float64frombits(le.Uint64(payload))
		}
		return n, nil
	}

	switch len(payload) {
	case 1:
		n.Int = int64(int8(payload[0]))
	case 2:
		n.Int = int64(int16(le.Uint16(payload)))
	case 4:
		n.Int = int64(int32(le.Uint32(payload)))
	default:
		n.Int = int64(le.Uint64(payload))
	}
	return n, nil
}
