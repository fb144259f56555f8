package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseEnterBootloaderResponse parses the Enter Bootloader response payload.
//
// Layout: silicon_id(4 LE), silicon_rev(1), bl_version(2 LE), bl_version_2(1).
func ParseEnterBootloaderResponse(data []byte) (*DeviceInfo, error) {
	if len(data) != EnterBootloaderResponseSize {
		return nil, fmt.Errorf("invalid EnterBootloader response length: got %d, expected %d", len(data), EnterBootloaderResponseSize)
	}
	return &DeviceInfo{
		SiliconID:  binary.LittleEndian.Uint32(data[0:4]),
		SiliconRev: data[4],
		BLVersion:  binary.LittleEndian.Uint16(data[5:7]),
		BLVersion2: data[7],
	}, nil
}

// ParseGetFlashSizeResponse parses the Get Flash Size response payload.
//
// Layout: first_row(2 LE), last_row(2 LE).
func ParseGetFlashSizeResponse(data []byte) (*FlashSize, error) {
	if len(data) != GetFlashSizeResponseSize {
		return nil, fmt.Errorf("invalid GetFlashSize response length: got %d, expected %d", len(data), GetFlashSizeResponseSize)
	}
	return &FlashSize{
		StartRow: binary.LittleEndian.Uint16(data[0:2]),
		EndRow:   binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// ParseVerifyRowResponse parses the Verify Row response payload: the
// device's one-byte digest for the row just programmed.
func ParseVerifyRowResponse(data []byte) (byte, error) {
	if len(data) != VerifyRowResponseSize {
		return 0, fmt.Errorf("invalid VerifyRow response length: got %d, expected %d", len(data), VerifyRowResponseSize)
	}
	return data[0], nil
}

// ParseVerifyChecksumResponse parses the Verify Checksum response payload.
// A nonzero byte means the whole-image checksum is valid.
func ParseVerifyChecksumResponse(data []byte) (bool, error) {
	if len(data) != VerifyChecksumResponseSize {
		return false, fmt.Errorf("invalid VerifyChecksum response length: got %d, expected %d", len(data), VerifyChecksumResponseSize)
	}
	return data[0] != 0, nil
}

// ParseMetadata decodes a 56-byte metadata record, shared by the wire
// GetMetadata response and the image's locally embedded metadata footer.
//
// Layout: checksum(1), bootloadable_addr(4 LE), bootloader_last_row(4 LE),
// bootloadable_len(4 LE), reserved(7), active(1), verified(1),
// app_version(2 LE), app_id(2 LE), custom_id(2 LE), reserved(28).
func ParseMetadata(data []byte) (*Metadata, error) {
	if len(data) != MetadataSize {
		return nil, fmt.Errorf("invalid metadata record length: got %d, expected %d", len(data), MetadataSize)
	}
	return &Metadata{
		Checksum:          data[0],
		BootloadableAddr:  binary.LittleEndian.Uint32(data[1:5]),
		BootloaderLastRow: binary.LittleEndian.Uint32(data[5:9]),
		BootloadableLen:   binary.LittleEndian.Uint32(data[9:13]),
		Active:            data[20],
		Verified:          data[21],
		AppVersion:        binary.LittleEndian.Uint16(data[22:24]),
		AppID:             binary.LittleEndian.Uint16(data[24:26]),
		CustomID:          binary.LittleEndian.Uint16(data[26:28]),
	}, nil
}
