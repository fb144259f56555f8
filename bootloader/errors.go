package bootloader

import "fmt"

// DeviceMismatchError reports that the device's silicon id or revision
// does not match the image header. Always fatal, never prompted.
type DeviceMismatchError struct {
	Field    string
	Expected uint32
	Actual   uint32
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch: image expects %s 0x%X, device reports 0x%X",
		e.Field, e.Expected, e.Actual)
}

// RowOutOfRangeError reports that an image row falls outside the device's
// reported flash range for its array.
type RowOutOfRangeError struct {
	ArrayID byte
	RowNum  uint16
	MinRow  uint16
	MaxRow  uint16
}

func (e *RowOutOfRangeError) Error() string {
	return fmt.Sprintf("array %d row %d is out of range: valid range is %d-%d",
		e.ArrayID, e.RowNum, e.MinRow, e.MaxRow)
}

// ChecksumMismatchError reports that a row's device-reported digest never
// matched the image after exhausting the configured retries.
type ChecksumMismatchError struct {
	ArrayID  byte
	RowNum   uint16
	Expected byte
	Actual   byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for array %d row %d: expected 0x%02X, got 0x%02X",
		e.ArrayID, e.RowNum, e.Expected, e.Actual)
}

// VerificationError reports that the whole-image checksum the device holds
// after WRITE is not valid.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("firmware verification failed: %s", e.Message)
}

// DowngradeRejectedError reports that the device's application version is
// newer than the image's and the configured DowngradeDecider refused it.
type DowngradeRejectedError struct {
	DeviceVersion uint16
	ImageVersion  uint16
}

func (e *DowngradeRejectedError) Error() string {
	return fmt.Sprintf("refusing downgrade: device has app version %d, image has %d",
		e.DeviceVersion, e.ImageVersion)
}

// NewAppRejectedError reports that the device's application id differs
// from the image's and the configured NewAppDecider refused it.
type NewAppRejectedError struct {
	DeviceAppID uint16
	ImageAppID  uint16
}

func (e *NewAppRejectedError) Error() string {
	return fmt.Sprintf("refusing application change: device has app id %d, image has %d",
		e.DeviceAppID, e.ImageAppID)
}
