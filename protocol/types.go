package protocol

// DeviceInfo is the device identification returned by EnterBootloader.
type DeviceInfo struct {
	SiliconID   uint32
	SiliconRev  byte
	BLVersion   uint16
	BLVersion2  byte
}

// CombinedVersion packs the two bootloader version fields into one value:
// bl_version | (bl_version_2 << 16).
func (d *DeviceInfo) CombinedVersion() uint32 {
	return uint32(d.BLVersion) | uint32(d.BLVersion2)<<16
}

// FlashSize is the valid row range for an array, returned by GetFlashSize.
type FlashSize struct {
	StartRow uint16
	EndRow   uint16
}

// Metadata is the 56-byte application metadata record shared by the wire
// GetMetadata response and the image's locally embedded metadata footer.
type Metadata struct {
	Checksum          byte
	BootloadableAddr  uint32
	BootloaderLastRow uint32
	BootloadableLen   uint32
	Active            byte
	Verified          byte
	AppVersion        uint16
	AppID             uint16
	CustomID          uint16
}

// MetadataSize is the fixed length of a Metadata record in bytes.
const MetadataSize = GetMetadataResponseSize
