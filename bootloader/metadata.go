package bootloader

import (
	"fmt"

	"github.com/moffa90/psocflash/cyacd"
	"github.com/moffa90/psocflash/protocol"
)

// metadataOffsetBase and metadataOffsetPSoC5 are the byte offsets of the
// metadata footer within the image's last row of its last array.
const (
	metadataOffsetBase  = 64
	metadataOffsetPSoC5 = 192
)

// imageMetadata reads the application metadata the bootloader would embed
// in the final flash row, so the driver can compare it against the
// device's own GetMetadata response before writing anything.
func imageMetadata(img *cyacd.Image, psoc5 bool) (*protocol.Metadata, error) {
	lastArray := img.LastArrayID()
	lastRowNum := img.LastRowNumber(lastArray)

	row, ok := img.Arrays[lastArray][lastRowNum]
	if !ok {
		return nil, fmt.Errorf("image has no rows in its last array %d", lastArray)
	}

	offset := metadataOffsetBase
	if psoc5 {
		offset = metadataOffsetPSoC5
	}

	end := offset + protocol.MetadataSize
	if len(row.Data) < end {
		return nil, fmt.Errorf("last row (array %d row %d) is %d bytes, too short to hold metadata at offset %d",
			lastArray, lastRowNum, len(row.Data), offset)
	}

	return protocol.ParseMetadata(row.Data[offset:end])
}
