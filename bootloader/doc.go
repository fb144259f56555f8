// Package bootloader drives the high-level programming sequence on top of
// a session.Session: enter the bootloader, validate the device against the
// image, optionally erase, write and verify every row, verify the whole
// image, and exit.
//
// # Basic usage
//
//	link, _ := transport.OpenSerial("/dev/ttyUSB0", 115200, serial.NoParity, serial.OneStopBit, 5*time.Second)
//	defer link.Close()
//
//	img, err := cyacd.Parse("firmware.cyacd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess := session.New(link, session.Config{ChecksumKind: img.ChecksumKind, ChunkSize: 57}, nil)
//	prog := bootloader.New(sess, bootloader.WithProgressCallback(printProgress))
//
//	key := []byte{0x0A, 0x1B, 0x2C, 0x3D, 0x4E, 0x5F}
//	if err := prog.Program(context.Background(), img, key); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress tracking
//
// WithProgressCallback reports each phase transition and, during
// PhaseProgramming, a running row count, byte count, and elapsed time.
//
// # Policy decisions
//
// The METADATA phase consults WithDowngradeDecider and WithNewAppDecider
// when the device's existing application looks newer, or different, than
// the image being written. Both default to AlwaysReject; pass AlwaysAllow
// or an interactive prompt to change that.
//
// # Error handling
//
// A failed run never issues ExitBootloader — the device is left exactly
// where the failure occurred. Typed errors (DeviceMismatchError,
// RowOutOfRangeError, ChecksumMismatchError, VerificationError,
// DowngradeRejectedError, NewAppRejectedError) distinguish driver-level
// failures from session-level protocol.ProtocolError and
// session.LinkNoisyError.
//
// # Hardware independence
//
// This package never touches a transport directly; it is built entirely
// on session.Session, so any transport.Link implementation — serial, CAN,
// or a test double — works unchanged.
package bootloader
