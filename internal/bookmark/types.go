// Package bookmark decodes, patches and re-encodes the binary bookmark
// records ("book" blobs) that macOS stores for security-scoped file URLs.
//
// Only the version-1 layout written by CoreFoundation is supported, which is
// what Photos keeps in ZFILESYSTEMBOOKMARK.ZBOOKMARKDATA.
package bookmark

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrMalformed is wrapped by every decoding error.
var ErrMalformed = errors.New("malformed bookmark")

// Item type codes. The low byte carries the subtype.
const (
	typeMask    = 0xFFFFFF00
	subtypeMask = 0x000000FF

	typeString     = 0x0100
	typeData       = 0x0200
	typeNumber     = 0x0300
	typeDate       = 0x0400
	typeBoolean    = 0x0500
	typeArray      = 0x0600
	typeDictionary = 0x0700
	typeUUID       = 0x0800
	typeURL        = 0x0900
	typeNull       = 0x0A00

	urlAbsolute = 0x01
	urlRelative = 0x02
)

// TOC keys used by Photos bookmarks.
const (
	KeyPath               uint32 = 0x1004
	KeyCNIDPath           uint32 = 0x1005
	KeyFileProperties     uint32 = 0x1010
	KeyFileName           uint32 = 0x1020
	KeyFileID             uint32 = 0x1030
	KeyFileCreationDate   uint32 = 0x1040
	KeyVolumePath         uint32 = 0x2002
	KeyVolumeURL          uint32 = 0x2005
	KeyVolumeName         uint32 = 0x2010
	KeyVolumeUUID         uint32 = 0x2011
	KeyVolumeSize         uint32 = 0x2012
	KeyVolumeCreationDate uint32 = 0x2013
	KeyVolumeProperties   uint32 = 0x2020
	KeyVolumeIsRoot       uint32 = 0x2030
	KeyVolumeBookmark     uint32 = 0x2040
	KeyVolumeMountPoint   uint32 = 0x2050
	KeyContainingFolder   uint32 = 0xC001
	KeyUserName           uint32 = 0xC011
	KeyUID                uint32 = 0xC012
	KeyWasFileReference   uint32 = 0xD001
	KeyCreationOptions    uint32 = 0xD010
	KeyFullFileName       uint32 = 0xF017
	KeySecurityExtension  uint32 = 0xF080
)

var keyNames = map[uint32]string{
	KeyPath:               "path",
	KeyCNIDPath:           "cnid_path",
	KeyFileProperties:     "file_properties",
	KeyFileName:           "file_name",
	KeyFileID:             "file_id",
	KeyFileCreationDate:   "file_creation_date",
	KeyVolumePath:         "volume_path",
	KeyVolumeURL:          "volume_url",
	KeyVolumeName:         "volume_name",
	KeyVolumeUUID:         "volume_uuid",
	KeyVolumeSize:         "volume_size",
	KeyVolumeCreationDate: "volume_creation_date",
	KeyVolumeProperties:   "volume_properties",
	KeyVolumeIsRoot:       "volume_is_root",
	KeyVolumeBookmark:     "volume_bookmark",
	KeyVolumeMountPoint:   "volume_mount_point",
	KeyContainingFolder:   "containing_folder",
	KeyUserName:           "user_name",
	KeyUID:                "uid",
	KeyWasFileReference:   "was_file_reference",
	KeyCreationOptions:    "creation_options",
	KeyFullFileName:       "full_file_name",
	KeySecurityExtension:  "security_extension",
}

// KeyName returns a readable name for a well-known key, or "" if unknown.
func KeyName(key uint32) string {
	return keyNames[key]
}

// Value is one decoded bookmark item.
type Value interface {
	isValue()
}

// String is a UTF-8 string item.
type String string

// Data is an opaque byte item.
type Data []byte

// Bool is a boolean item.
type Bool bool

// Null is the null item.
type Null struct{}

// UUID is a 16-byte UUID item.
type UUID uuid.UUID

// Array is an ordered list of items.
type Array []Value

// Dict is a list of key/value pairs in blob order.
type Dict []DictEntry

// DictEntry is one pair of a Dict.
type DictEntry struct {
	Key   Value
	Value Value
}

// URL is a URL item. Base is nil for absolute URLs.
type URL struct {
	Base Value
	Rel  string
}

// Raw keeps an item whose type code is not understood so it survives re-encoding.
type Raw struct {
	TypeCode uint32
	Bytes    []byte
}

// NumberKind is the CFNumberType of a Number.
type NumberKind uint8

// CFNumberType values.
const (
	SInt8    NumberKind = 1
	SInt16   NumberKind = 2
	SInt32   NumberKind = 3
	SInt64   NumberKind = 4
	Float32  NumberKind = 5
	Float64  NumberKind = 6
	Char     NumberKind = 7
	Short    NumberKind = 8
	Int      NumberKind = 9
	Long     NumberKind = 10
	LongLong NumberKind = 11
	Float    NumberKind = 12
	Double   NumberKind = 13
	CFIndex  NumberKind = 14
)

// size returns the encoded width of the kind in bytes.
func (k NumberKind) size() int {
	switch k {
	case SInt8, Char:
		return 1
	case SInt16, Short:
		return 2
	case SInt32, Int, Float32, Float:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether numbers of this kind carry Float rather than Int.
func (k NumberKind) IsFloat() bool {
	return k == Float32 || k == Float64 || k == Float || k == Double
}

// Number is a numeric item. Int is used for integer kinds, Float otherwise.
type Number struct {
	Kind  NumberKind
	Int   int64
	Float float64
}

// Int64 returns an SInt64 number.
func Int64(v int64) Number { return Number{Kind: SInt64, Int: v} }

// Int32 returns an SInt32 number.
func Int32(v int32) Number { return Number{Kind: SInt32, Int: int64(v)} }

// Date is a date item stored as seconds since 2001-01-01 UTC.
type Date struct {
	Seconds float64
}

// appleEpoch is the CFAbsoluteTime reference date.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Time converts the date to a time.Time.
func (d Date) Time() time.Time {
	sec, frac := math.Modf(d.Seconds)
	return appleEpoch.Add(time.Duration(sec)*time.Second + time.Duration(frac*float64(time.Second)))
}

// DateOf converts a time.Time to a Date.
func DateOf(t time.Time) Date {
	return Date{Seconds: float64(t.Sub(appleEpoch)) / float64(time.Second)}
}

func (String) isValue() {}
func (Data) isValue()   {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (UUID) isValue()   {}
func (Array) isValue()  {}
func (Dict) isValue()   {}
func (URL) isValue()    {}
func (Raw) isValue()    {}
func (Number) isValue() {}
func (Date) isValue()   {}

// Entry is one TOC entry. Name is set instead of Key for string-keyed entries.
type Entry struct {
	Key   uint32
	Name  string
	Flags uint32
	Value Value
}

// TOC is one table of contents in a bookmark.
type TOC struct {
	ID      uint32
	Entries []Entry
}

// Bookmark is a decoded bookmark blob.
type Bookmark struct {
	// Version is the third header word; 0x10040000 for current blobs.
	Version uint32
	// Header holds the header bytes after the fixed 16-byte prefix.
	Header []byte
	TOCs   []TOC
}
