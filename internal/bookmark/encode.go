package bookmark

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmpty is returned when encoding a bookmark without a table of contents.
var ErrEmpty = errors.New("bookmark has no table of contents")

type encoder struct {
	buf    []byte
	shared map[string]uint32 // encoded item -> offset, so repeated items are written once
}

type tocSlot struct {
	key, off, flags uint32
}

// Encode serializes the bookmark into the version-1 blob layout.
func (b *Bookmark) Encode() ([]byte, error) {
	if len(b.TOCs) == 0 {
		return nil, ErrEmpty
	}

	// The first word of the data area is the offset of the first TOC.
	e := &encoder{buf: make([]byte, 4), shared: make(map[string]uint32)}

	slots := make([][]tocSlot, len(b.TOCs))
	for i, toc := range b.TOCs {
		for _, ent := range canonicalOrder(toc.Entries) {
			key := ent.Key
			if ent.Name != "" {
				koff, err := e.item(String(ent.Name))
				if err != nil {
					return nil, err
				}
				key = stringKeyFlag | koff
			}
			voff, err := e.item(ent.Value)
			if err != nil {
				return nil, fmt.Errorf("encoding entry %#x: %w", ent.Key, err)
			}
			slots[i] = append(slots[i], tocSlot{key: key, off: voff, flags: ent.Flags})
		}
		sort.SliceStable(slots[i], func(a, c int) bool { return slots[i][a].key < slots[i][c].key })
	}

	off := uint32(len(e.buf))
	le.PutUint32(e.buf[0:4], off)
	for i, entries := range slots {
		size := uint32(tocHeaderSize + tocEntrySize*len(entries))
		var next uint32
		if i < len(slots)-1 {
			next = off + size
		}
		e.buf = le.AppendUint32(e.buf, size-8)
		e.buf = le.AppendUint32(e.buf, tocMagic)
		e.buf = le.AppendUint32(e.buf, b.TOCs[i].ID)
		e.buf = le.AppendUint32(e.buf, next)
		e.buf = le.AppendUint32(e.buf, uint32(len(entries)))
		for _, s := range entries {
			e.buf = le.AppendUint32(e.buf, s.key)
			e.buf = le.AppendUint32(e.buf, s.off)
			e.buf = le.AppendUint32(e.buf, s.flags)
		}
		off += size
	}

	version := b.Version
	if version == 0 {
		version = defaultVersion
	}
	header := b.Header
	if header == nil {
		header = make([]byte, defaultHeaderSize-fixedHeaderSize)
	}
	hdrSize := fixedHeaderSize + len(header)

	out := make([]byte, 0, hdrSize+len(e.buf))
	out = append(out, magic...)
	out = le.AppendUint32(out, uint32(hdrSize+len(e.buf)))
	out = le.AppendUint32(out, version)
	out = le.AppendUint32(out, uint32(hdrSize))
	out = append(out, header...)
	out = append(out, e.buf...)
	return out, nil
}

// canonicalOrder returns a copy of entries with numeric keys first, ascending,
// then string keys by name. Items are emitted in this order so the encoding
// does not depend on the order keys were added.
func canonicalOrder(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(a, c int) bool {
		ea, ec := out[a], out[c]
		if (ea.Name == "") != (ec.Name == "") {
			return ea.Name == ""
		}
		if ea.Name == "" {
			return ea.Key < ec.Key
		}
		return ea.Name < ec.Name
	})
	return out
}

// item writes v (and anything it references) and returns its offset.
func (e *encoder) item(v Value) (uint32, error) {
	code, payload, err := e.payload(v)
	if err != nil {
		return 0, err
	}

	rec := make([]byte, 0, 8+len(payload)+3)
	rec = le.AppendUint32(rec, uint32(len(payload)))
	rec = le.AppendUint32(rec, code)
	rec = append(rec, payload...)
	for len(rec)%4 != 0 {
		rec = append(rec, 0)
	}

	if off, ok := e.shared[string(rec)]; ok {
		return off, nil
	}
	off := uint32(len(e.buf))
	e.buf = append(e.buf, rec...)
	e.shared[string(rec)] = off
	return off, nil
}

func (e *encoder) payload(v Value) (uint32, []byte, error) {
	switch v := v.(type) {
	case String:
		return typeString | 0x01, []byte(v), nil

	case Data:
		return typeData | 0x01, []byte(v), nil

	case Number:
		return typeNumber | uint32(v.Kind), encodeNumber(v), nil

	case Date:
		return typeDate, binary.BigEndian.AppendUint64(nil, math.Float64bits(v.Seconds)), nil

	case Bool:
		if v {
			return typeBoolean | 0x01, nil, nil
		}
		return typeBoolean, nil, nil

	case UUID:
		return typeUUID | 0x01, append([]byte(nil), v[:]...), nil

	case URL:
		if v.Base == nil {
			return typeURL | urlAbsolute, []byte(v.Rel), nil
		}
		boff, err := e.item(v.Base)
		if err != nil {
			return 0, nil, err
		}
		roff, err := e.item(String(v.Rel))
		if err != nil {
			return 0, nil, err
		}
		p := le.AppendUint32(nil, boff)
		return typeURL | urlRelative, le.AppendUint32(p, roff), nil

	case Array:
		p := make([]byte, 0, 4*len(v))
		for _, elem := range v {
			off, err := e.item(elem)
			if err != nil {
				return 0, nil, err
			}
			p = le.AppendUint32(p, off)
		}
		return typeArray | 0x01, p, nil

	case Dict:
		p := make([]byte, 0, 8*len(v))
		for _, kv := range v {
			koff, err := e.item(kv.Key)
			if err != nil {
				return 0, nil, err
			}
			voff, err := e.item(kv.Value)
			if err != nil {
				return 0, nil, err
			}
			p = le.AppendUint32(p, koff)
			p = le.AppendUint32(p, voff)
		}
		return typeDictionary | 0x01, p, nil

	case Null:
		return typeNull | 0x01, nil, nil

	case Raw:
		return v.TypeCode, v.Bytes, nil

	case nil:
		return 0, nil, errors.New("nil value")
	}
	return 0, nil, fmt.Errorf("unsupported value type %T", v)
}

func encodeNumber(n Number) []byte {
	size := n.Kind.size()
	if n.Kind.IsFloat() {
		if size == 4 {
			return le.AppendUint32(nil, math.Float32bits(float32(n.Float)))
		}
		return le.AppendUint64(nil, math.Float64bits(n.Float))
	}
	switch size {
	case 1:
		return []byte{byte(int8(n.Int))}
	case 2:
		return le.AppendUint16(nil, uint16(int16(n.Int)))
	case 4:
		return le.AppendUint32(nil, uint32(int32(n.Int)))
	}
	return le.AppendUint64(nil, uint64(n.Int))
}
