package bookmark

import (
	"github.com/google/uuid"
)

const oldExtension = "8f2c1e0b9a7d6c5b4a39281706f5e4d3c2b1a09f8e7d6c5b4a3928170615f4e3;00;00000000;00000000;00000000;000000000000001a;com.apple.app-sandbox.read-write;01;01000004;00000000000a1b2c;01;/Volumes/OldDrive/Photos/2019/IMG_0001.JPG\x00"

// handBuiltBlob is a minimal bookmark laid out byte by byte:
// a path array ["Volumes", "Photos"] and one TOC.
func handBuiltBlob() []byte {
	var data []byte
	data = le.AppendUint32(data, 52) // first TOC offset

	// 4: "Volumes"
	data = le.AppendUint32(data, 7)
	data = le.AppendUint32(data, 0x0101)
	data = append(data, "Volumes\x00"...)

	// 20: "Photos"
	data = le.AppendUint32(data, 6)
	data = le.AppendUint32(data, 0x0101)
	data = append(data, "Photos\x00\x00"...)

	// 36: array of the two strings
	data = le.AppendUint32(data, 8)
	data = le.AppendUint32(data, 0x0601)
	data = le.AppendUint32(data, 4)
	data = le.AppendUint32(data, 20)

	// 52: TOC with a single path entry
	data = le.AppendUint32(data, 24)
	data = le.AppendUint32(data, tocMagic)
	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, 0)
	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, KeyPath)
	data = le.AppendUint32(data, 36)
	data = le.AppendUint32(data, 0)

	blob := []byte(magic)
	blob = le.AppendUint32(blob, uint32(48+len(data)))
	blob = le.AppendUint32(blob, defaultVersion)
	blob = le.AppendUint32(blob, 48)
	blob = append(blob, make([]byte, 32)...)
	return append(blob, data...)
}

// photosFixture mirrors the shape Photos stores for a referenced file on an
// external drive. Entries are in key order, as Decode returns them.
func photosFixture() *Bookmark {
	return &Bookmark{
		Version: defaultVersion,
		Header:  make([]byte, 32),
		TOCs: []TOC{{
			ID: 1,
			Entries: []Entry{
				{Key: KeyPath, Value: Array{String("Volumes"), String("OldDrive"), String("Photos"), String("2019"), String("IMG_0001.JPG")}},
				{Key: KeyCNIDPath, Value: Array{Int64(2), Int64(18), Int64(41), Int64(1200), Int64(1300)}},
				{Key: KeyFileProperties, Value: Data{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0f, 0x00, 0x00, 0x00}},
				{Key: KeyFileID, Value: Int64(1300)},
				{Key: KeyFileCreationDate, Value: Date{Seconds: 568024800.5}},
				{Key: KeyVolumePath, Value: String("/Volumes/OldDrive")},
				{Key: KeyVolumeURL, Value: URL{Rel: "file:///Volumes/OldDrive/"}},
				{Key: KeyVolumeName, Value: String("OldDrive")},
				{Key: KeyVolumeUUID, Value: String("0A1B2C3D-4E5F-4A6B-8C7D-9E0F1A2B3C4D")},
				{Key: KeyVolumeSize, Value: Int64(2000398934016)},
				{Key: KeyVolumeCreationDate, Value: Date{Seconds: 500000000}},
				{Key: KeyVolumeIsRoot, Value: Bool(false)},
				{Key: KeyContainingFolder, Value: Int64(3)},
				{Key: KeyUID, Value: Int32(99)},
				{Key: KeyWasFileReference, Value: Bool(true)},
				{Key: KeyCreationOptions, Value: Int32(512)},
				{Key: KeySecurityExtension, Value: Data(oldExtension)},
			},
		}},
	}
}

// allTypesFixture exercises every value type across two TOCs.
func allTypesFixture() *Bookmark {
	b := photosFixture()
	b.TOCs = append(b.TOCs, TOC{
		ID: 2,
		Entries: []Entry{
			{Key: 0x10, Value: Number{Kind: Float64, Float: 3.25}},
			{Key: 0x11, Value: Number{Kind: Float32, Float: 1.5}},
			{Key: 0x12, Value: Number{Kind: SInt8, Int: -3}},
			{Key: 0x13, Value: Number{Kind: SInt16, Int: -300}},
			{Key: 0x14, Value: UUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))},
			{Key: 0x15, Value: URL{Base: URL{Rel: "file:///Volumes/OldDrive/"}, Rel: "Photos/IMG_0001.JPG"}},
			{Key: 0x16, Value: Dict{
				{Key: String("a"), Value: Int64(1)},
				{Key: String("b"), Value: Array{Bool(true), Null{}}},
			}},
			{Key: 0x17, Value: Null{}},
			{Key: 0x18, Value: Raw{TypeCode: 0x0B01, Bytes: []byte{1, 2, 3}}},
			{Key: 0x19, Flags: 7, Value: Bool(false)},
			{Name: "com.example.note", Value: String("kept")},
		},
	})
	return b
}

// arrayChainBlob builds a path whose value is a chain of depth arrays, each
// holding fanout references to the next, ending in a string.
func arrayChainBlob(depth, fanout int) []byte {
	arraySize := 8 + 4*fanout
	data := le.AppendUint32(nil, 0) // patched below

	for i := 0; i < depth; i++ {
		next := uint32(4 + (i+1)*arraySize)
		data = le.AppendUint32(data, uint32(4*fanout))
		data = le.AppendUint32(data, 0x0601)
		for j := 0; j < fanout; j++ {
			data = le.AppendUint32(data, next)
		}
	}

	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, 0x0101)
	data = append(data, "x\x00\x00\x00"...)

	tocOff := uint32(len(data))
	le.PutUint32(data[0:4], tocOff)
	data = le.AppendUint32(data, 24)
	data = le.AppendUint32(data, tocMagic)
	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, 0)
	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, KeyPath)
	data = le.AppendUint32(data, 4)
	data = le.AppendUint32(data, 0)

	blob := []byte(magic)
	blob = le.AppendUint32(blob, uint32(48+len(data)))
	blob = le.AppendUint32(blob, defaultVersion)
	blob = le.AppendUint32(blob, 48)
	blob = append(blob, make([]byte, 32)...)
	return append(blob, data...)
}
