package cyacd

// ChecksumKind selects the checksum algorithm the device expects over the
// wire, as declared by the image header.
type ChecksumKind byte

const (
	// ChecksumKindSum is the two's-complement byte-sum checksum.
	ChecksumKindSum ChecksumKind = 0x00

	// ChecksumKindCRC16 is the CRC-16-CCITT (reflected) checksum.
	ChecksumKindCRC16 ChecksumKind = 0x01
)

// Image is the immutable result of decoding a .cyacd firmware container.
type Image struct {
	// SiliconID is the target device's silicon ID, as declared by the header.
	SiliconID uint32

	// SiliconRev is the target device's silicon revision.
	SiliconRev byte

	// ChecksumKind selects which wire checksum function the device uses.
	ChecksumKind ChecksumKind

	// Arrays maps array ID to the rows decoded for that array, keyed by
	// row number. A row appearing twice for the same (array, row number)
	// overwrites the earlier one.
	Arrays map[byte]map[uint16]*Row
}

// Row is a single flash row decoded from the image.
type Row struct {
	ArrayID   byte
	RowNumber uint16
	Data      []byte

	// Checksum is the record-level checksum read from the file, i.e. the
	// trailing byte of the row's hex block.
	Checksum byte
}

// DeviceChecksum returns the one-byte digest the bootloader reports back
// from a Verify Row command for this row's data: the two's-complement of
// the byte-sum of Data, modulo 256.
func (r *Row) DeviceChecksum() byte {
	var sum byte
	for _, b := range r.Data {
		sum += b
	}
	return byte(1 + ^sum)
}

// LastArrayID returns the highest array ID present in the image.
// Used to locate the metadata footer, which the bootloader always places
// in the last row of the last array.
func (img *Image) LastArrayID() byte {
	var last byte
	first := true
	for id := range img.Arrays {
		if first || id > last {
			last = id
			first = false
		}
	}
	return last
}

// LastRowNumber returns the highest row number within the given array.
func (img *Image) LastRowNumber(arrayID byte) uint16 {
	var last uint16
	first := true
	for num := range img.Arrays[arrayID] {
		if first || num > last {
			last = num
			first = false
		}
	}
	return last
}
